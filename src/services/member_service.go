package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clubops/memberbook/src/models"
	"github.com/clubops/memberbook/src/storage"
)

// MemberService owns member identity and lifecycle: allocating and
// recycling member IDs, status transitions, and duplicate detection.
// The permanent MemberUUID never changes across any number of
// deactivate/reactivate cycles; only the human-facing member ID moves.
type MemberService struct {
	store storage.Store
}

// NewMemberService creates a new member service
func NewMemberService(store storage.Store) *MemberService {
	return &MemberService{store: store}
}

// MemberProfile carries the contact fields shared by create and
// reactivate operations
type MemberProfile struct {
	FirstName     string
	LastName      string
	Email         string
	MilestoneDate *time.Time
	HomeAddress   string
	HomeCity      string
	HomeState     string
	HomeZip       string
	HomePhone     string
}

// CreateMemberInput contains parameters for creating a member
type CreateMemberInput struct {
	Profile      MemberProfile
	MemberTypeID int64
	MemberID     *int // Optional caller-chosen ID; allocated when nil
	Now          time.Time
}

// ReactivateInput contains parameters for reactivating an inactive member
type ReactivateInput struct {
	Profile      MemberProfile
	MemberTypeID int64
	Now          time.Time
}

// NextAvailableID returns the lowest member ID in 1-1000 not held by any
// active member
func (s *MemberService) NextAvailableID(ctx context.Context) (int, error) {
	ids, err := s.store.ActiveMemberIDs(ctx)
	if err != nil {
		return 0, err
	}
	return nextFreeID(ids)
}

// AvailableIDs returns every free member ID in ascending order
func (s *MemberService) AvailableIDs(ctx context.Context) ([]int, error) {
	ids, err := s.store.ActiveMemberIDs(ctx)
	if err != nil {
		return nil, err
	}
	taken := toSet(ids)
	var free []int
	for id := models.MinMemberID; id <= models.MaxMemberID; id++ {
		if !taken[id] {
			free = append(free, id)
		}
	}
	return free, nil
}

// SuggestedIDs returns the next available ID plus the first count free
// IDs, for workflows that let a human pick one of several suggestions.
// Counts below one still yield the next available ID as the single
// suggestion.
func (s *MemberService) SuggestedIDs(ctx context.Context, count int) (int, []int, error) {
	free, err := s.AvailableIDs(ctx)
	if err != nil {
		return 0, nil, err
	}
	if len(free) == 0 {
		return 0, nil, ErrCapacityExhausted
	}
	if count < 1 {
		count = 1
	}
	if len(free) > count {
		free = free[:count]
	}
	return free[0], free, nil
}

// IsIDAvailable checks whether a specific member ID is free to claim
func (s *MemberService) IsIDAvailable(ctx context.Context, id int) (bool, error) {
	if !models.ValidMemberID(id) {
		return false, nil
	}
	ids, err := s.store.ActiveMemberIDs(ctx)
	if err != nil {
		return false, err
	}
	return !toSet(ids)[id], nil
}

// CreateMember creates a new active member with a fresh permanent UUID.
// The requested member ID is validated against active members, or the
// lowest free ID is allocated. The expiration date is left unset; callers
// pair creation with an initial payment via the payment service, which
// fills it in the same transaction.
func (s *MemberService) CreateMember(ctx context.Context, in CreateMemberInput) (*models.Member, error) {
	var created *models.Member
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		m, err := buildNewMember(ctx, tx, in)
		if err != nil {
			return err
		}
		if err := tx.InsertMember(ctx, m); err != nil {
			return claimErr(err)
		}
		created = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// buildNewMember assembles a Member row inside the caller's transaction,
// claiming a member ID from the in-transaction free list
func buildNewMember(ctx context.Context, tx storage.Tx, in CreateMemberInput) (*models.Member, error) {
	if _, err := tx.GetMemberType(ctx, in.MemberTypeID); err != nil {
		return nil, fmt.Errorf("member type %d: %w", in.MemberTypeID, err)
	}

	memberID, err := claimID(ctx, tx, in.MemberID)
	if err != nil {
		return nil, err
	}

	now := in.Now
	m := &models.Member{
		MemberUUID:        uuid.New(),
		MemberID:          &memberID,
		PreferredMemberID: &memberID,
		MemberTypeID:      in.MemberTypeID,
		Status:            models.MemberStatusActive,
		DateJoined:        now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	applyProfile(m, in.Profile)
	return m, nil
}

// claimID resolves the member ID for a claim: validates a requested ID
// against the in-transaction active set, or allocates the lowest free one
func claimID(ctx context.Context, tx storage.Tx, requested *int) (int, error) {
	active, err := tx.ActiveMemberIDs(ctx)
	if err != nil {
		return 0, err
	}
	if requested != nil {
		id := *requested
		if !models.ValidMemberID(id) {
			return 0, fmt.Errorf("%w: %d out of range", ErrIDUnavailable, id)
		}
		if toSet(active)[id] {
			return 0, fmt.Errorf("%w: %d", ErrIDUnavailable, id)
		}
		return id, nil
	}
	return nextFreeID(active)
}

// Deactivate moves an active member to inactive, releasing the member ID
// back to the pool and remembering it as the preferred ID for later
// reactivation. The expiration date is left untouched for reporting.
func (s *MemberService) Deactivate(ctx context.Context, memberUUID uuid.UUID, now time.Time) (*models.Member, error) {
	var updated *models.Member
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		m, err := tx.GetMember(ctx, memberUUID)
		if err != nil {
			return err
		}
		if m.Status != models.MemberStatusActive {
			return fmt.Errorf("%w: deactivate requires active, member is %s", ErrInvalidTransition, m.Status)
		}
		releaseID(m)
		m.Status = models.MemberStatusInactive
		inactivated := now
		m.DateInactivated = &inactivated
		m.UpdatedAt = now
		if err := tx.UpdateMember(ctx, m); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Reactivate moves an inactive member back to active. The preferred
// member ID is restored when still free; otherwise the lowest free ID is
// allocated. DateJoined resets to now and the profile and member type are
// overwritten. Reactivating a deceased member is rejected. Like creation,
// this leaves the expiration date alone; the surrounding workflow pairs
// reactivation with a payment.
func (s *MemberService) Reactivate(ctx context.Context, memberUUID uuid.UUID, in ReactivateInput) (*models.Member, error) {
	var updated *models.Member
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		m, err := reactivateInTx(ctx, tx, memberUUID, in)
		if err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// reactivateInTx performs the reactivation inside the caller's
// transaction so the payment service can pair it with a payment
func reactivateInTx(ctx context.Context, tx storage.Tx, memberUUID uuid.UUID, in ReactivateInput) (*models.Member, error) {
	m, err := tx.GetMember(ctx, memberUUID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MemberStatusInactive {
		return nil, fmt.Errorf("%w: reactivate requires inactive, member is %s", ErrInvalidTransition, m.Status)
	}
	if _, err := tx.GetMemberType(ctx, in.MemberTypeID); err != nil {
		return nil, fmt.Errorf("member type %d: %w", in.MemberTypeID, err)
	}

	active, err := tx.ActiveMemberIDs(ctx)
	if err != nil {
		return nil, err
	}
	memberID, err := restoreOrAllocate(active, m.PreferredMemberID)
	if err != nil {
		return nil, err
	}

	m.MemberID = &memberID
	m.Status = models.MemberStatusActive
	m.DateJoined = in.Now
	m.DateInactivated = nil
	m.MemberTypeID = in.MemberTypeID
	applyProfile(m, in.Profile)
	m.UpdatedAt = in.Now

	if err := tx.UpdateMember(ctx, m); err != nil {
		return nil, claimErr(err)
	}
	return m, nil
}

// MarkDeceased moves a member to the terminal deceased status from either
// active or inactive, releasing any held member ID
func (s *MemberService) MarkDeceased(ctx context.Context, memberUUID uuid.UUID, now time.Time) (*models.Member, error) {
	var updated *models.Member
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		m, err := tx.GetMember(ctx, memberUUID)
		if err != nil {
			return err
		}
		if m.Status == models.MemberStatusDeceased {
			return fmt.Errorf("%w: member already deceased", ErrInvalidTransition)
		}
		releaseID(m)
		m.Status = models.MemberStatusDeceased
		if m.DateInactivated == nil {
			inactivated := now
			m.DateInactivated = &inactivated
		}
		m.UpdatedAt = now
		if err := tx.UpdateMember(ctx, m); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MatchReason identifies which field matched during duplicate detection
type MatchReason string

const (
	MatchReasonName  MatchReason = "name"
	MatchReasonPhone MatchReason = "phone"
	MatchReasonEmail MatchReason = "email"
)

// DuplicateMatch pairs a possible duplicate with the field that matched
type DuplicateMatch struct {
	Member    models.Member
	Reason    MatchReason
	MatchText string
}

// FindPossibleDuplicates returns members of any status whose name matches
// case-insensitively, phone exactly, or email case-insensitively. The
// check is advisory: it reports findings and never blocks creation. A
// member matched by several fields appears once, under the first reason
// in name, phone, email order.
func (s *MemberService) FindPossibleDuplicates(ctx context.Context, firstName, lastName, phone, email string) ([]DuplicateMatch, error) {
	var matches []DuplicateMatch
	seen := make(map[uuid.UUID]bool)

	byName, err := s.store.MembersByName(ctx, firstName, lastName)
	if err != nil {
		return nil, err
	}
	for _, m := range byName {
		seen[m.MemberUUID] = true
		matches = append(matches, DuplicateMatch{
			Member:    m,
			Reason:    MatchReasonName,
			MatchText: fmt.Sprintf("%s %s", firstName, lastName),
		})
	}

	if phone != "" {
		byPhone, err := s.store.MembersByPhone(ctx, phone)
		if err != nil {
			return nil, err
		}
		for _, m := range byPhone {
			if seen[m.MemberUUID] {
				continue
			}
			seen[m.MemberUUID] = true
			matches = append(matches, DuplicateMatch{Member: m, Reason: MatchReasonPhone, MatchText: phone})
		}
	}

	if email != "" {
		byEmail, err := s.store.MembersByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		for _, m := range byEmail {
			if seen[m.MemberUUID] {
				continue
			}
			seen[m.MemberUUID] = true
			matches = append(matches, DuplicateMatch{Member: m, Reason: MatchReasonEmail, MatchText: email})
		}
	}

	return matches, nil
}

// DeactivateExpired deactivates every active member expired at least
// graceDays days with no payment dated after their expiration, and
// returns the members that were (or with dryRun, would be) deactivated
func (s *MemberService) DeactivateExpired(ctx context.Context, graceDays int, now time.Time, dryRun bool) ([]models.Member, error) {
	cutoff := now.AddDate(0, 0, -graceDays)
	expired, err := s.store.ExpiredWithoutPayment(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return expired, nil
	}

	var processed []models.Member
	for _, m := range expired {
		updated, err := s.Deactivate(ctx, m.MemberUUID, now)
		if err != nil {
			return processed, fmt.Errorf("deactivate %s: %w", m.FullName(), err)
		}
		processed = append(processed, *updated)
	}
	return processed, nil
}

// releaseID frees the member ID back to the pool, remembering it as the
// preferred ID for a later reactivation
func releaseID(m *models.Member) {
	if m.MemberID != nil {
		preferred := *m.MemberID
		m.PreferredMemberID = &preferred
		m.MemberID = nil
	}
}

// restoreOrAllocate prefers the member's previous ID when free, falling
// back to the lowest free ID without erroring
func restoreOrAllocate(active []int, preferred *int) (int, error) {
	if preferred != nil && models.ValidMemberID(*preferred) && !toSet(active)[*preferred] {
		return *preferred, nil
	}
	return nextFreeID(active)
}

// nextFreeID scans 1-1000 in ascending order for the lowest ID not in use
func nextFreeID(active []int) (int, error) {
	taken := toSet(active)
	for id := models.MinMemberID; id <= models.MaxMemberID; id++ {
		if !taken[id] {
			return id, nil
		}
	}
	return 0, ErrCapacityExhausted
}

func toSet(ids []int) map[int]bool {
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// claimErr keeps a lost ID-claim race recoverable the same way as a
// taken requested ID
func claimErr(err error) error {
	if errors.Is(err, storage.ErrMemberIDConflict) {
		return fmt.Errorf("%w: lost claim race", ErrIDUnavailable)
	}
	return err
}

func applyProfile(m *models.Member, p MemberProfile) {
	m.FirstName = p.FirstName
	m.LastName = p.LastName
	m.Email = p.Email
	m.MilestoneDate = p.MilestoneDate
	m.HomeAddress = p.HomeAddress
	m.HomeCity = p.HomeCity
	m.HomeState = p.HomeState
	m.HomeZip = p.HomeZip
	m.HomePhone = p.HomePhone
}

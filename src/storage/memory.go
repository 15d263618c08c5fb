package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clubops/memberbook/src/models"
)

// MemoryStore is an in-memory Store used by unit tests and local demos.
// Transactions operate on a copy of the data and swap it in only when the
// transaction function succeeds, so a failed transaction leaves no trace.
type MemoryStore struct {
	mu             sync.Mutex
	members        map[uuid.UUID]models.Member
	payments       []models.Payment
	memberTypes    map[int64]models.MemberType
	paymentMethods map[int64]models.PaymentMethod
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members:        make(map[uuid.UUID]models.Member),
		memberTypes:    make(map[int64]models.MemberType),
		paymentMethods: make(map[int64]models.PaymentMethod),
	}
}

// AddMemberType seeds a membership type
func (s *MemoryStore) AddMemberType(mt models.MemberType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberTypes[mt.ID] = mt
}

// AddPaymentMethod seeds a payment method
func (s *MemoryStore) AddPaymentMethod(pm models.PaymentMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentMethods[pm.ID] = pm
}

// PaymentCount reports the number of stored payments
func (s *MemoryStore) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

// MemberCount reports the number of stored members
func (s *MemoryStore) MemberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

func (s *MemoryStore) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (s *MemoryStore) GetMemberType(ctx context.Context, id int64) (*models.MemberType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mt, ok := s.memberTypes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &mt, nil
}

func (s *MemoryStore) GetPaymentMethod(ctx context.Context, id int64) (*models.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pm, ok := s.paymentMethods[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &pm, nil
}

func (s *MemoryStore) ActiveMemberIDs(ctx context.Context) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return activeIDs(s.members), nil
}

func (s *MemoryStore) MembersByName(ctx context.Context, firstName, lastName string) ([]models.Member, error) {
	return s.selectMembers(func(m models.Member) bool {
		return strings.EqualFold(m.FirstName, firstName) && strings.EqualFold(m.LastName, lastName)
	})
}

func (s *MemoryStore) MembersByPhone(ctx context.Context, phone string) ([]models.Member, error) {
	return s.selectMembers(func(m models.Member) bool {
		return m.HomePhone != "" && m.HomePhone == phone
	})
}

func (s *MemoryStore) MembersByEmail(ctx context.Context, email string) ([]models.Member, error) {
	return s.selectMembers(func(m models.Member) bool {
		return m.Email != "" && strings.EqualFold(m.Email, email)
	})
}

func (s *MemoryStore) ExpiredWithoutPayment(ctx context.Context, cutoff time.Time) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Latest payment date after each member's expiration.
	paidAfterExpiration := make(map[uuid.UUID]bool)
	for _, p := range s.payments {
		m, ok := s.members[p.MemberUUID]
		if ok && p.Date.After(m.ExpirationDate) {
			paidAfterExpiration[p.MemberUUID] = true
		}
	}

	var out []models.Member
	for _, m := range s.members {
		if m.Status != models.MemberStatusActive {
			continue
		}
		if !m.ExpirationDate.Before(cutoff) {
			continue
		}
		if paidAfterExpiration[m.MemberUUID] {
			continue
		}
		out = append(out, m)
	}
	sortMembers(out)
	return out, nil
}

func (s *MemoryStore) MembersExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Member, error) {
	return s.selectMembers(func(m models.Member) bool {
		return m.Status == models.MemberStatusActive &&
			!m.ExpirationDate.Before(from) && !m.ExpirationDate.After(to)
	})
}

func (s *MemoryStore) MembersJoinedBetween(ctx context.Context, from, to time.Time) ([]models.Member, error) {
	return s.selectMembers(func(m models.Member) bool {
		return !m.DateJoined.Before(from) && !m.DateJoined.After(to)
	})
}

func (s *MemoryStore) MembersWithMilestoneInMonth(ctx context.Context, month time.Month) ([]models.Member, error) {
	return s.selectMembers(func(m models.Member) bool {
		return m.Status == models.MemberStatusActive &&
			m.MilestoneDate != nil && m.MilestoneDate.Month() == month
	})
}

func (s *MemoryStore) PaymentsByMember(ctx context.Context, id uuid.UUID) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Payment
	for _, p := range s.payments {
		if p.MemberUUID == id {
			out = append(out, p)
		}
	}
	sortPayments(out)
	return out, nil
}

func (s *MemoryStore) PaymentsBetween(ctx context.Context, from, to time.Time) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Payment
	for _, p := range s.payments {
		if !p.Date.Before(from) && !p.Date.After(to) {
			out = append(out, p)
		}
	}
	sortPayments(out)
	return out, nil
}

// WithinTx copies the member map and payment slice, runs fn against the
// copies, and swaps them in only on success.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:    s,
		members:  make(map[uuid.UUID]models.Member, len(s.members)),
		payments: append([]models.Payment(nil), s.payments...),
	}
	for id, m := range s.members {
		tx.members[id] = m
	}

	if err := fn(tx); err != nil {
		return err
	}

	s.members = tx.members
	s.payments = tx.payments
	return nil
}

func (s *MemoryStore) selectMembers(keep func(models.Member) bool) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Member
	for _, m := range s.members {
		if keep(m) {
			out = append(out, m)
		}
	}
	sortMembers(out)
	return out, nil
}

// memoryTx is the transactional view over copied state
type memoryTx struct {
	store    *MemoryStore
	members  map[uuid.UUID]models.Member
	payments []models.Payment
}

func (t *memoryTx) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	m, ok := t.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (t *memoryTx) GetMemberType(ctx context.Context, id int64) (*models.MemberType, error) {
	mt, ok := t.store.memberTypes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &mt, nil
}

func (t *memoryTx) GetPaymentMethod(ctx context.Context, id int64) (*models.PaymentMethod, error) {
	pm, ok := t.store.paymentMethods[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &pm, nil
}

func (t *memoryTx) ActiveMemberIDs(ctx context.Context) ([]int, error) {
	return activeIDs(t.members), nil
}

func (t *memoryTx) InsertMember(ctx context.Context, m *models.Member) error {
	if _, exists := t.members[m.MemberUUID]; exists {
		return ErrMemberExists
	}
	if err := t.checkIDClaim(m); err != nil {
		return err
	}
	t.members[m.MemberUUID] = *m
	return nil
}

func (t *memoryTx) UpdateMember(ctx context.Context, m *models.Member) error {
	if _, exists := t.members[m.MemberUUID]; !exists {
		return ErrNotFound
	}
	if err := t.checkIDClaim(m); err != nil {
		return err
	}
	t.members[m.MemberUUID] = *m
	return nil
}

func (t *memoryTx) InsertPayment(ctx context.Context, p *models.Payment) error {
	if _, exists := t.members[p.MemberUUID]; !exists {
		return ErrNotFound
	}
	t.payments = append(t.payments, *p)
	return nil
}

// checkIDClaim mirrors the partial unique index on (member_id) for active
// members in the Postgres schema
func (t *memoryTx) checkIDClaim(m *models.Member) error {
	if m.Status != models.MemberStatusActive || m.MemberID == nil {
		return nil
	}
	for id, other := range t.members {
		if id == m.MemberUUID {
			continue
		}
		if other.Status == models.MemberStatusActive &&
			other.MemberID != nil && *other.MemberID == *m.MemberID {
			return ErrMemberIDConflict
		}
	}
	return nil
}

func activeIDs(members map[uuid.UUID]models.Member) []int {
	var ids []int
	for _, m := range members {
		if m.Status == models.MemberStatusActive && m.MemberID != nil {
			ids = append(ids, *m.MemberID)
		}
	}
	sort.Ints(ids)
	return ids
}

func sortMembers(members []models.Member) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].LastName != members[j].LastName {
			return members[i].LastName < members[j].LastName
		}
		if members[i].FirstName != members[j].FirstName {
			return members[i].FirstName < members[j].FirstName
		}
		return members[i].MemberUUID.String() < members[j].MemberUUID.String()
	})
}

func sortPayments(payments []models.Payment) {
	sort.Slice(payments, func(i, j int) bool {
		if !payments[i].Date.Equal(payments[j].Date) {
			return payments[i].Date.After(payments[j].Date)
		}
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
}

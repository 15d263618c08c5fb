package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MemberStatus represents the lifecycle status of a member
type MemberStatus string

const (
	MemberStatusActive   MemberStatus = "active"   // Holds a member ID, membership current or lapsing
	MemberStatusInactive MemberStatus = "inactive" // Member ID released, eligible for reactivation
	MemberStatusDeceased MemberStatus = "deceased" // Terminal; member ID released, never reactivated
)

// Member ID pool boundaries. The club issues human-facing membership
// numbers from a fixed pool of 1000 slots; the range is a business
// constraint, not a tunable.
const (
	MinMemberID = 1
	MaxMemberID = 1000
)

// Member represents a club member with the dual-key identity scheme:
// MemberUUID is the permanent identity every payment references, and
// MemberID is the small recyclable membership number shown to humans.
// MemberID is nil whenever the member is not active.
type Member struct {
	MemberUUID        uuid.UUID `json:"member_uuid" db:"member_uuid"`
	MemberID          *int      `json:"member_id" db:"member_id"`                     // Recyclable, 1-1000, active members only
	PreferredMemberID *int      `json:"preferred_member_id" db:"preferred_member_id"` // Last held ID, tried first on reactivation

	// Basic information
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email" db:"email"`

	// Membership information
	MemberTypeID   int64        `json:"member_type_id" db:"member_type_id"`
	Status         MemberStatus `json:"status" db:"status"`
	ExpirationDate time.Time    `json:"expiration_date" db:"expiration_date"` // Always last day of a month

	// Important dates
	MilestoneDate   *time.Time `json:"milestone_date" db:"milestone_date"`
	DateJoined      time.Time  `json:"date_joined" db:"date_joined"` // Reset on each reactivation
	DateInactivated *time.Time `json:"date_inactivated" db:"date_inactivated"`

	// Contact information
	HomeAddress string `json:"home_address" db:"home_address"`
	HomeCity    string `json:"home_city" db:"home_city"`
	HomeState   string `json:"home_state" db:"home_state"`
	HomeZip     string `json:"home_zip" db:"home_zip"`
	HomePhone   string `json:"home_phone" db:"home_phone"`

	// Audit
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FullName returns the member's display name
func (m *Member) FullName() string {
	return fmt.Sprintf("%s %s", m.FirstName, m.LastName)
}

// DisplayID returns the membership number as a string, or "No ID" when
// the member holds none
func (m *Member) DisplayID() string {
	if m.MemberID == nil {
		return "No ID"
	}
	return fmt.Sprintf("#%d", *m.MemberID)
}

// IsActive returns true if the member currently holds active status
func (m *Member) IsActive() bool {
	return m.Status == MemberStatusActive
}

// IsMembershipExpired checks whether the membership has lapsed as of the
// given date
func (m *Member) IsMembershipExpired(asOf time.Time) bool {
	return m.ExpirationDate.Before(truncateToDate(asOf))
}

// DaysExpired returns the number of days since the expiration date, or 0
// if the membership is still current
func (m *Member) DaysExpired(asOf time.Time) int {
	days := int(truncateToDate(asOf).Sub(m.ExpirationDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// IsExpiredForDeactivation checks whether the member has been expired
// past the standard 90-day grace period
func (m *Member) IsExpiredForDeactivation(asOf time.Time) bool {
	return m.DaysExpired(asOf) > 90
}

// ValidMemberID reports whether id falls inside the issuable pool
func ValidMemberID(id int) bool {
	return id >= MinMemberID && id <= MaxMemberID
}

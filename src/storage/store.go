package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clubops/memberbook/src/models"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrMemberExists is returned when an insert reuses an existing member UUID.
var ErrMemberExists = errors.New("storage: member already exists")

// ErrMemberIDConflict is returned when a transaction attempts to claim a
// member ID already held by another active member.
var ErrMemberIDConflict = errors.New("storage: member id already claimed")

// Store is the persistence boundary for the membership ledger. Reads are
// plain queries; every write goes through WithinTx so a payment and the
// member update it belongs to commit or roll back together.
type Store interface {
	GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error)
	GetMemberType(ctx context.Context, id int64) (*models.MemberType, error)
	GetPaymentMethod(ctx context.Context, id int64) (*models.PaymentMethod, error)

	// ActiveMemberIDs returns the member IDs currently held by active
	// members, sorted ascending.
	ActiveMemberIDs(ctx context.Context) ([]int, error)

	// Duplicate-detection searches. Name and email match case-insensitively,
	// phone matches exactly.
	MembersByName(ctx context.Context, firstName, lastName string) ([]models.Member, error)
	MembersByPhone(ctx context.Context, phone string) ([]models.Member, error)
	MembersByEmail(ctx context.Context, email string) ([]models.Member, error)

	// Report queries.
	ExpiredWithoutPayment(ctx context.Context, cutoff time.Time) ([]models.Member, error)
	MembersExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Member, error)
	MembersJoinedBetween(ctx context.Context, from, to time.Time) ([]models.Member, error)
	MembersWithMilestoneInMonth(ctx context.Context, month time.Month) ([]models.Member, error)
	PaymentsByMember(ctx context.Context, id uuid.UUID) ([]models.Payment, error)
	PaymentsBetween(ctx context.Context, from, to time.Time) ([]models.Payment, error)

	// WithinTx runs fn inside a single transaction. If fn returns an
	// error nothing it wrote is persisted.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes the writes, plus the reads a claim decision depends on, inside
// one transaction. ActiveMemberIDs inside a Tx observes pending writes so a
// scan-and-claim cannot hand out an ID the same transaction already took.
type Tx interface {
	GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error)
	GetMemberType(ctx context.Context, id int64) (*models.MemberType, error)
	GetPaymentMethod(ctx context.Context, id int64) (*models.PaymentMethod, error)
	ActiveMemberIDs(ctx context.Context) ([]int, error)

	InsertMember(ctx context.Context, m *models.Member) error
	UpdateMember(ctx context.Context, m *models.Member) error
	InsertPayment(ctx context.Context, p *models.Payment) error
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clubops/memberbook/src/models"
	"github.com/clubops/memberbook/src/storage"
)

// PaymentService translates dues payments into expiration dates and
// records both sides atomically: a payment row never exists without the
// matching member update, and vice versa.
type PaymentService struct {
	store storage.Store
}

// NewPaymentService creates a new payment service
func NewPaymentService(store storage.Store) *PaymentService {
	return &PaymentService{store: store}
}

// PaymentInput contains the fields of a dues payment
type PaymentInput struct {
	PaymentMethodID    int64
	Amount             decimal.Decimal
	Date               time.Time
	ReceiptNumber      string
	OverrideExpiration *time.Time // Manually picked expiration; skips the dues computation
}

// CalculateExpiration computes the new expiration date for a payment.
//
// The override, when present, always wins and is simply normalized to
// end of month. Otherwise the amount buys floor(amount/dues) whole
// months on top of the end-of-month-normalized base date; fractional
// leftover is not tracked, so 1.99x dues buys exactly 1 month. Zero-dues
// (honorary) types and amounts below one month's dues default to a
// single month. The result is always the last day of a month.
func (s *PaymentService) CalculateExpiration(baseDate time.Time, memberType *models.MemberType, amount decimal.Decimal, override *time.Time) time.Time {
	if override != nil {
		return models.EndOfMonth(*override)
	}
	return models.AddMonths(models.EndOfMonth(baseDate), monthsPurchased(memberType, amount))
}

// monthsPurchased truncates amount/dues toward zero, with a floor of one
// month. Truncation over rounding is deliberate business policy.
func monthsPurchased(memberType *models.MemberType, amount decimal.Decimal) int {
	if memberType == nil || !memberType.HasDues() {
		return 1
	}
	months := int(amount.Div(memberType.MonthlyDues).IntPart())
	if months < 1 {
		return 1
	}
	return months
}

// ProcessPayment records a renewal payment for an existing member and
// advances the expiration date in the same transaction. The new coverage
// starts where the old coverage ended, so early and late payments both
// stack sequentially. A payment against an inactive member flips the
// member back to active as a convenience reactivation; the returned bool
// reports whether that happened.
func (s *PaymentService) ProcessPayment(ctx context.Context, memberUUID uuid.UUID, in PaymentInput) (*models.Payment, bool, error) {
	if err := validateAmount(in.Amount); err != nil {
		return nil, false, err
	}

	var (
		payment     *models.Payment
		reactivated bool
	)
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		m, err := tx.GetMember(ctx, memberUUID)
		if err != nil {
			return err
		}
		memberType, err := tx.GetMemberType(ctx, m.MemberTypeID)
		if err != nil {
			return fmt.Errorf("member type %d: %w", m.MemberTypeID, err)
		}
		if _, err := tx.GetPaymentMethod(ctx, in.PaymentMethodID); err != nil {
			return fmt.Errorf("payment method %d: %w", in.PaymentMethodID, err)
		}

		// Coverage always stacks on the member's retained expiration,
		// inactive or not; only a member with no expiration on record
		// starts from the payment date.
		base := m.ExpirationDate
		wasInactive := m.Status == models.MemberStatusInactive
		if m.ExpirationDate.IsZero() {
			base = in.Date
		}

		m.ExpirationDate = s.expirationFor(base, memberType, in)
		if wasInactive {
			m.Status = models.MemberStatusActive
			m.DateInactivated = nil
			reactivated = true
		}
		m.UpdatedAt = in.Date

		p := newPayment(m.MemberUUID, in)
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}
		if err := tx.UpdateMember(ctx, m); err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return payment, reactivated, nil
}

// CreateMemberWithInitialPayment creates a member and records the first
// payment as one atomic unit. A member with no expiration and no payment
// is not a valid terminal state, so any failure in either half aborts
// the whole operation.
func (s *PaymentService) CreateMemberWithInitialPayment(ctx context.Context, memberIn CreateMemberInput, paymentIn PaymentInput) (*models.Member, *models.Payment, error) {
	if err := validateAmount(paymentIn.Amount); err != nil {
		return nil, nil, err
	}

	var (
		member  *models.Member
		payment *models.Payment
	)
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		m, err := buildNewMember(ctx, tx, memberIn)
		if err != nil {
			return err
		}
		memberType, err := tx.GetMemberType(ctx, m.MemberTypeID)
		if err != nil {
			return err
		}
		if _, err := tx.GetPaymentMethod(ctx, paymentIn.PaymentMethodID); err != nil {
			return fmt.Errorf("payment method %d: %w", paymentIn.PaymentMethodID, err)
		}

		// New coverage starts from the payment date; there is no prior
		// expiration to stack on.
		m.ExpirationDate = s.expirationFor(paymentIn.Date, memberType, paymentIn)

		if err := tx.InsertMember(ctx, m); err != nil {
			return claimErr(err)
		}
		p := newPayment(m.MemberUUID, paymentIn)
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}
		member = m
		payment = p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return member, payment, nil
}

// ReactivateWithPayment reactivates an inactive member and records the
// accompanying payment atomically, mirroring creation: coverage starts
// from the payment date, the preferred member ID is restored when free,
// and DateJoined resets. The permanent UUID and all payment history are
// untouched.
func (s *PaymentService) ReactivateWithPayment(ctx context.Context, memberUUID uuid.UUID, reactivateIn ReactivateInput, paymentIn PaymentInput) (*models.Member, *models.Payment, error) {
	if err := validateAmount(paymentIn.Amount); err != nil {
		return nil, nil, err
	}

	var (
		member  *models.Member
		payment *models.Payment
	)
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		m, err := reactivateInTx(ctx, tx, memberUUID, reactivateIn)
		if err != nil {
			return err
		}
		memberType, err := tx.GetMemberType(ctx, m.MemberTypeID)
		if err != nil {
			return err
		}
		if _, err := tx.GetPaymentMethod(ctx, paymentIn.PaymentMethodID); err != nil {
			return fmt.Errorf("payment method %d: %w", paymentIn.PaymentMethodID, err)
		}

		m.ExpirationDate = s.expirationFor(paymentIn.Date, memberType, paymentIn)
		if err := tx.UpdateMember(ctx, m); err != nil {
			return err
		}
		p := newPayment(m.MemberUUID, paymentIn)
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}
		member = m
		payment = p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return member, payment, nil
}

// expirationFor applies the lifetime convention on top of the core
// calculation: lifetime types get the far-future sentinel unless a human
// supplied an explicit override
func (s *PaymentService) expirationFor(base time.Time, memberType *models.MemberType, in PaymentInput) time.Time {
	if memberType.IsLifetime() && in.OverrideExpiration == nil {
		return models.LifetimeExpiration()
	}
	return s.CalculateExpiration(base, memberType, in.Amount, in.OverrideExpiration)
}

func newPayment(memberUUID uuid.UUID, in PaymentInput) *models.Payment {
	return &models.Payment{
		ID:              uuid.New(),
		MemberUUID:      memberUUID,
		PaymentMethodID: in.PaymentMethodID,
		Amount:          in.Amount,
		Date:            in.Date,
		ReceiptNumber:   in.ReceiptNumber,
		CreatedAt:       in.Date,
	}
}

func validateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	return nil
}

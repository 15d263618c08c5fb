package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubops/memberbook/src/models"
	"github.com/clubops/memberbook/src/services"
	"github.com/clubops/memberbook/src/storage"
)

func cashPayment(amount float64, paymentDate time.Time) services.PaymentInput {
	return services.PaymentInput{
		PaymentMethodID: cashMethodID,
		Amount:          decimal.NewFromFloat(amount),
		Date:            paymentDate,
	}
}

// End-to-end scenario: Regular type ($30/month), new member pays $95 on
// 2025-03-15. floor(95/30)=3 months on top of Mar 31 gives Jun 30.
func TestNewMemberWithInitialPayment(t *testing.T) {
	store := newTestStore()
	svc := services.NewPaymentService(store)
	ctx := context.Background()
	payDate := date(2025, time.March, 15)

	member, payment, err := svc.CreateMemberWithInitialPayment(ctx,
		services.CreateMemberInput{
			Profile:      profile("Nina", "Nowak"),
			MemberTypeID: regularTypeID,
			Now:          payDate,
		},
		cashPayment(95.00, payDate))
	require.NoError(t, err)

	assert.True(t, member.ExpirationDate.Equal(date(2025, time.June, 30)),
		"expected 2025-06-30, got %s", member.ExpirationDate.Format("2006-01-02"))
	assert.Equal(t, member.MemberUUID, payment.MemberUUID, "payment references the permanent UUID")
	assert.Equal(t, 1, *member.MemberID)
	assert.Equal(t, 1, store.PaymentCount())
}

func TestRenewalStacksOnCurrentExpiration(t *testing.T) {
	store := newTestStore()
	svc := services.NewPaymentService(store)
	ctx := context.Background()

	member, _, err := svc.CreateMemberWithInitialPayment(ctx,
		services.CreateMemberInput{
			Profile:      profile("Nina", "Nowak"),
			MemberTypeID: regularTypeID,
			Now:          date(2025, time.March, 15),
		},
		cashPayment(30.00, date(2025, time.March, 15)))
	require.NoError(t, err)
	require.True(t, member.ExpirationDate.Equal(date(2025, time.April, 30)))

	// Early renewal: coverage starts where the old coverage ends, not at
	// the payment date.
	_, reactivated, err := svc.ProcessPayment(ctx, member.MemberUUID, cashPayment(60.00, date(2025, time.March, 20)))
	require.NoError(t, err)
	assert.False(t, reactivated)

	renewed, err := store.GetMember(ctx, member.MemberUUID)
	require.NoError(t, err)
	assert.True(t, renewed.ExpirationDate.Equal(date(2025, time.June, 30)),
		"expected 2025-06-30, got %s", renewed.ExpirationDate.Format("2006-01-02"))
}

func TestPaymentAgainstInactiveMemberReactivates(t *testing.T) {
	store := newTestStore()
	memberSvc := services.NewMemberService(store)
	paymentSvc := services.NewPaymentService(store)
	ctx := context.Background()
	start := date(2025, time.January, 15)

	member, _, err := paymentSvc.CreateMemberWithInitialPayment(ctx,
		services.CreateMemberInput{
			Profile:      profile("Omar", "Osei"),
			MemberTypeID: regularTypeID,
			Now:          start,
		},
		cashPayment(30.00, start))
	require.NoError(t, err)

	_, err = memberSvc.Deactivate(ctx, member.MemberUUID, date(2025, time.May, 1))
	require.NoError(t, err)

	// Paying without going through Reactivate first is a convenience
	// reactivation; coverage still stacks on the retained expiration
	// (Feb 28), not the payment date.
	payDate := date(2025, time.August, 10)
	_, wasReactivated, err := paymentSvc.ProcessPayment(ctx, member.MemberUUID, cashPayment(30.00, payDate))
	require.NoError(t, err)
	assert.True(t, wasReactivated)

	after, err := store.GetMember(ctx, member.MemberUUID)
	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusActive, after.Status)
	assert.Nil(t, after.DateInactivated)
	assert.True(t, after.ExpirationDate.Equal(date(2025, time.March, 31)),
		"expected 2025-03-31, got %s", after.ExpirationDate.Format("2006-01-02"))
}

func TestOverrideExpirationWins(t *testing.T) {
	store := newTestStore()
	svc := services.NewPaymentService(store)
	ctx := context.Background()
	payDate := date(2025, time.March, 15)

	override := date(2027, time.May, 10)
	in := cashPayment(5000.00, payDate)
	in.OverrideExpiration = &override

	member, _, err := svc.CreateMemberWithInitialPayment(ctx,
		services.CreateMemberInput{
			Profile:      profile("Pia", "Park"),
			MemberTypeID: regularTypeID,
			Now:          payDate,
		},
		in)
	require.NoError(t, err)
	assert.True(t, member.ExpirationDate.Equal(date(2027, time.May, 31)),
		"override normalized to end of month, got %s", member.ExpirationDate.Format("2006-01-02"))
}

func TestHonoraryMemberGetsOneMonth(t *testing.T) {
	store := newTestStore()
	svc := services.NewPaymentService(store)
	ctx := context.Background()
	payDate := date(2025, time.March, 15)

	member, _, err := svc.CreateMemberWithInitialPayment(ctx,
		services.CreateMemberInput{
			Profile:      profile("Hana", "Holt"),
			MemberTypeID: honoraryTypeID,
			Now:          payDate,
		},
		cashPayment(500.00, payDate))
	require.NoError(t, err)
	assert.True(t, member.ExpirationDate.Equal(date(2025, time.April, 30)))
}

func TestLifetimeMemberGetsSentinelExpiration(t *testing.T) {
	store := newTestStore()
	svc := services.NewPaymentService(store)
	ctx := context.Background()
	payDate := date(2025, time.March, 15)

	member, _, err := svc.CreateMemberWithInitialPayment(ctx,
		services.CreateMemberInput{
			Profile:      profile("Liv", "Lund"),
			MemberTypeID: lifetimeTypeID,
			Now:          payDate,
		},
		cashPayment(1000.00, payDate))
	require.NoError(t, err)
	assert.True(t, member.ExpirationDate.Equal(models.LifetimeExpiration()))
}

func TestPaymentAmountMustBePositive(t *testing.T) {
	store := newTestStore()
	svc := services.NewPaymentService(store)
	ctx := context.Background()
	payDate := date(2025, time.March, 15)

	_, _, err := svc.CreateMemberWithInitialPayment(ctx,
		services.CreateMemberInput{
			Profile:      profile("Zero", "Pay"),
			MemberTypeID: regularTypeID,
			Now:          payDate,
		},
		cashPayment(0, payDate))
	assert.ErrorIs(t, err, services.ErrInvalidAmount)
	assert.Equal(t, 0, store.MemberCount())
}

// A failure in either half of the combined operation must leave no
// member and no payment behind.
func TestAtomicPairing(t *testing.T) {
	store := newTestStore()
	svc := services.NewPaymentService(store)
	ctx := context.Background()
	payDate := date(2025, time.March, 15)

	// Unknown payment method fails the payment half after the member
	// half has been prepared.
	in := cashPayment(30.00, payDate)
	in.PaymentMethodID = 999
	_, _, err := svc.CreateMemberWithInitialPayment(ctx,
		services.CreateMemberInput{
			Profile:      profile("Ghost", "Row"),
			MemberTypeID: regularTypeID,
			Now:          payDate,
		},
		in)
	require.Error(t, err)
	assert.Equal(t, 0, store.MemberCount(), "no orphan member")
	assert.Equal(t, 0, store.PaymentCount(), "no orphan payment")

	// Unknown member type fails the member half before any payment.
	_, _, err = svc.CreateMemberWithInitialPayment(ctx,
		services.CreateMemberInput{
			Profile:      profile("Ghost", "Row"),
			MemberTypeID: 999,
			Now:          payDate,
		},
		cashPayment(30.00, payDate))
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.Equal(t, 0, store.MemberCount())
	assert.Equal(t, 0, store.PaymentCount())
}

// End-to-end scenario: member A held #5, deactivated; member B now holds
// #5. Reactivating A with a $30 payment assigns the lowest free ID != 5,
// resets date joined, and expires one month from the payment.
func TestReactivationWithIDConflictScenario(t *testing.T) {
	store := newTestStore()
	memberSvc := services.NewMemberService(store)
	paymentSvc := services.NewPaymentService(store)
	ctx := context.Background()
	start := date(2025, time.January, 15)

	five := 5
	a, _, err := paymentSvc.CreateMemberWithInitialPayment(ctx,
		services.CreateMemberInput{
			Profile:      profile("Avery", "Ames"),
			MemberTypeID: regularTypeID,
			MemberID:     &five,
			Now:          start,
		},
		cashPayment(30.00, start))
	require.NoError(t, err)
	require.Equal(t, 5, *a.MemberID)

	_, err = memberSvc.Deactivate(ctx, a.MemberUUID, date(2025, time.April, 1))
	require.NoError(t, err)

	b, err := memberSvc.CreateMember(ctx, services.CreateMemberInput{
		Profile:      profile("Blair", "Boone"),
		MemberTypeID: regularTypeID,
		MemberID:     &five,
		Now:          date(2025, time.April, 2),
	})
	require.NoError(t, err)
	require.Equal(t, 5, *b.MemberID)

	today := date(2025, time.July, 10)
	reactivated, payment, err := paymentSvc.ReactivateWithPayment(ctx, a.MemberUUID,
		services.ReactivateInput{
			Profile:      profile("Avery", "Ames"),
			MemberTypeID: regularTypeID,
			Now:          today,
		},
		cashPayment(30.00, today))
	require.NoError(t, err)

	assert.Equal(t, 1, *reactivated.MemberID, "lowest free ID, not the taken #5")
	assert.Equal(t, models.MemberStatusActive, reactivated.Status)
	assert.True(t, reactivated.DateJoined.Equal(today))
	assert.True(t, reactivated.ExpirationDate.Equal(date(2025, time.August, 31)),
		"one month from the payment date, got %s", reactivated.ExpirationDate.Format("2006-01-02"))
	assert.Equal(t, a.MemberUUID, payment.MemberUUID)

	// The full payment history stays attached to the permanent UUID.
	history, err := store.PaymentsByMember(ctx, a.MemberUUID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestActiveIDUniquenessHeldThroughFlows(t *testing.T) {
	store := newTestStore()
	memberSvc := services.NewMemberService(store)
	paymentSvc := services.NewPaymentService(store)
	ctx := context.Background()
	now := date(2025, time.March, 1)

	for i := 0; i < 5; i++ {
		_, _, err := paymentSvc.CreateMemberWithInitialPayment(ctx,
			services.CreateMemberInput{
				Profile:      profile("Member", string(rune('A'+i))),
				MemberTypeID: regularTypeID,
				Now:          now,
			},
			cashPayment(30.00, now))
		require.NoError(t, err)
	}

	ids, err := store.ActiveMemberIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids)

	// Deactivate #3, recycle it, and confirm the set is still unique.
	members, err := store.MembersJoinedBetween(ctx, now, now)
	require.NoError(t, err)
	var third *models.Member
	for i := range members {
		if members[i].MemberID != nil && *members[i].MemberID == 3 {
			third = &members[i]
			break
		}
	}
	require.NotNil(t, third)

	_, err = memberSvc.Deactivate(ctx, third.MemberUUID, now)
	require.NoError(t, err)

	replacement := createMember(t, memberSvc, "New", "Holder", now)
	assert.Equal(t, 3, *replacement.MemberID)

	ids, err = store.ActiveMemberIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids)
}

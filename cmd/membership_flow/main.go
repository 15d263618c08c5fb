package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/clubops/memberbook/src/config"
	"github.com/clubops/memberbook/src/services"
	"github.com/clubops/memberbook/src/storage"
)

// This example demonstrates the full member lifecycle:
// 1. Create a member with an initial payment
// 2. Record a renewal (coverage stacks on the old expiration)
// 3. Deactivate the member, releasing the member ID
// 4. Claim the freed ID with a second member
// 5. Reactivate the first member (preferred ID taken, next free assigned)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	store := storage.NewPostgresStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal(err)
	}
	if err := seedLookups(ctx, db); err != nil {
		log.Fatal(err)
	}

	memberService := services.NewMemberService(store)
	paymentService := services.NewPaymentService(store)

	now := time.Now()

	fmt.Println("=== Memberbook - Membership Flow Example ===")
	fmt.Println()

	// Step 1: New member with initial payment
	fmt.Println("Step 1: New Member With Initial Payment")
	fmt.Println("---------------------------------------")

	member, payment, err := paymentService.CreateMemberWithInitialPayment(ctx,
		services.CreateMemberInput{
			Profile: services.MemberProfile{
				FirstName: "Walt",
				LastName:  "Kowalski",
				Email:     "walt@example.com",
				HomePhone: "555-0142",
				HomeCity:  "Detroit",
				HomeState: "MI",
			},
			MemberTypeID: 1, // Regular, $30/month
			Now:          now,
		},
		services.PaymentInput{
			PaymentMethodID: 1,
			Amount:          decimal.NewFromFloat(90.00),
			Date:            now,
			ReceiptNumber:   "R-1001",
		})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  ✓ Created %s %s, paid %s, expires %s\n",
		member.DisplayID(), member.FullName(), payment, member.ExpirationDate.Format("2006-01-02"))

	// Step 2: Renewal stacks on the current expiration
	fmt.Println("\nStep 2: Renewal Payment")
	fmt.Println("-----------------------")

	payment, _, err = paymentService.ProcessPayment(ctx, member.MemberUUID, services.PaymentInput{
		PaymentMethodID: 1,
		Amount:          decimal.NewFromFloat(60.00),
		Date:            now,
		ReceiptNumber:   "R-1002",
	})
	if err != nil {
		log.Fatal(err)
	}
	renewed, err := store.GetMember(ctx, member.MemberUUID)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  ✓ Renewal %s → expiration now %s\n",
		payment, renewed.ExpirationDate.Format("2006-01-02"))

	// Step 3: Deactivation releases the member ID
	fmt.Println("\nStep 3: Deactivation")
	fmt.Println("--------------------")

	deactivated, err := memberService.Deactivate(ctx, member.MemberUUID, now)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  ✓ %s is now %s; preferred ID #%d saved for reactivation\n",
		deactivated.FullName(), deactivated.Status, *deactivated.PreferredMemberID)

	// Step 4: Another member claims the freed ID
	fmt.Println("\nStep 4: Freed ID Claimed By Someone Else")
	fmt.Println("----------------------------------------")

	claimedID := *deactivated.PreferredMemberID
	rival, _, err := paymentService.CreateMemberWithInitialPayment(ctx,
		services.CreateMemberInput{
			Profile:      services.MemberProfile{FirstName: "Thao", LastName: "Lor"},
			MemberTypeID: 1,
			MemberID:     &claimedID,
			Now:          now,
		},
		services.PaymentInput{
			PaymentMethodID: 1,
			Amount:          decimal.NewFromFloat(30.00),
			Date:            now,
			ReceiptNumber:   "R-1003",
		})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  ✓ %s claimed %s\n", rival.FullName(), rival.DisplayID())

	// Step 5: Reactivation falls back to the next free ID
	fmt.Println("\nStep 5: Reactivation With ID Conflict")
	fmt.Println("-------------------------------------")

	reactivated, payment, err := paymentService.ReactivateWithPayment(ctx, member.MemberUUID,
		services.ReactivateInput{
			Profile: services.MemberProfile{
				FirstName: "Walt",
				LastName:  "Kowalski",
				Email:     "walt@example.com",
			},
			MemberTypeID: 1,
			Now:          now,
		},
		services.PaymentInput{
			PaymentMethodID: 1,
			Amount:          decimal.NewFromFloat(30.00),
			Date:            now,
			ReceiptNumber:   "R-1004",
		})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  ✓ %s reactivated as %s (preferred #%d was taken), paid %s, expires %s\n",
		reactivated.FullName(), reactivated.DisplayID(), *reactivated.PreferredMemberID,
		payment, reactivated.ExpirationDate.Format("2006-01-02"))

	// Capacity summary
	next, suggested, err := memberService.SuggestedIDs(ctx, 5)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("\nNext available member ID: #%d (suggestions: %v)\n", next, suggested)
}

// seedLookups inserts the demo member type and payment method if missing
func seedLookups(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO member_types (id, name, monthly_dues, coverage_months)
		VALUES (1, 'Regular', 30.00, 1)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO payment_methods (id, name)
		VALUES (1, 'Cash')
		ON CONFLICT (id) DO NOTHING
	`)
	return err
}

package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/clubops/memberbook/src/config"
	"github.com/clubops/memberbook/src/services"
	"github.com/clubops/memberbook/src/storage"
)

// Member lifecycle job: deactivates members expired past the grace
// period with no payment since, and reinstates individual members by
// UUID. Run with -dry-run to preview without writing.

func main() {
	var (
		dryRun    = flag.Bool("dry-run", false, "Show what would be done without making changes")
		graceDays = flag.Int("grace-days", 90, "Days past expiration before auto-deactivation")
		reinstate = flag.String("reinstate", "", "Reinstate a specific inactive member by UUID")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	store := storage.NewPostgresStore(db)
	memberService := services.NewMemberService(store)
	now := time.Now()

	if *reinstate != "" {
		reinstateMember(ctx, store, memberService, *reinstate, now, *dryRun)
		return
	}

	processExpired(ctx, memberService, *graceDays, now, *dryRun)
}

func processExpired(ctx context.Context, memberService *services.MemberService, graceDays int, now time.Time, dryRun bool) {
	members, err := memberService.DeactivateExpired(ctx, graceDays, now, dryRun)
	if err != nil {
		log.Fatalf("Failed to process expired members: %v", err)
	}

	if len(members) == 0 {
		fmt.Printf("No members expired more than %d days without payment\n", graceDays)
		return
	}

	verb := "Deactivated"
	if dryRun {
		verb = "Would deactivate"
	}
	for _, m := range members {
		fmt.Printf("%s %s (expired %s, %d days)\n",
			verb, m.FullName(), m.ExpirationDate.Format("2006-01-02"), m.DaysExpired(now))
	}
	fmt.Printf("%s %d member(s)\n", verb, len(members))
}

func reinstateMember(ctx context.Context, store storage.Store, memberService *services.MemberService, rawUUID string, now time.Time, dryRun bool) {
	memberUUID, err := uuid.Parse(rawUUID)
	if err != nil {
		log.Fatalf("Invalid member UUID %q: %v", rawUUID, err)
	}

	member, err := store.GetMember(ctx, memberUUID)
	if err != nil {
		log.Fatalf("Member not found: %v", err)
	}

	if dryRun {
		preferred := "none"
		if member.PreferredMemberID != nil {
			preferred = fmt.Sprintf("#%d", *member.PreferredMemberID)
		}
		fmt.Printf("Would reinstate %s (status %s, preferred ID %s)\n",
			member.FullName(), member.Status, preferred)
		return
	}

	reactivated, err := memberService.Reactivate(ctx, memberUUID, services.ReactivateInput{
		Profile: services.MemberProfile{
			FirstName:     member.FirstName,
			LastName:      member.LastName,
			Email:         member.Email,
			MilestoneDate: member.MilestoneDate,
			HomeAddress:   member.HomeAddress,
			HomeCity:      member.HomeCity,
			HomeState:     member.HomeState,
			HomeZip:       member.HomeZip,
			HomePhone:     member.HomePhone,
		},
		MemberTypeID: member.MemberTypeID,
		Now:          now,
	})
	if err != nil {
		log.Fatalf("Failed to reinstate member: %v", err)
	}

	if member.PreferredMemberID != nil && *reactivated.MemberID == *member.PreferredMemberID {
		fmt.Printf("Reinstated %s with preferred ID %s\n", reactivated.FullName(), reactivated.DisplayID())
	} else {
		fmt.Printf("Reinstated %s with new ID %s (preferred was taken)\n", reactivated.FullName(), reactivated.DisplayID())
	}
}

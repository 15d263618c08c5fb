package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/clubops/memberbook/src/models"
	"github.com/clubops/memberbook/src/storage"
)

// ReportService exposes the read-only views backing the club's periodic
// exports: lapsed members, upcoming expirations, new members, milestone
// anniversaries, and recent payments. Rendering beyond CSV is left to
// the callers.
type ReportService struct {
	store storage.Store
}

// NewReportService creates a new report service
func NewReportService(store storage.Store) *ReportService {
	return &ReportService{store: store}
}

// ExpiredWithoutPayment lists active members expired at least graceDays
// days with no payment dated after their expiration
func (s *ReportService) ExpiredWithoutPayment(ctx context.Context, graceDays int, now time.Time) ([]models.Member, error) {
	return s.store.ExpiredWithoutPayment(ctx, now.AddDate(0, 0, -graceDays))
}

// ExpiringWithinMonths lists active members whose membership runs out
// between now and the end of the month months calendar months away
func (s *ReportService) ExpiringWithinMonths(ctx context.Context, months int, now time.Time) ([]models.Member, error) {
	return s.store.MembersExpiringBetween(ctx, now, models.AddMonths(now, months))
}

// NewMembersBetween lists members who joined in the given window
func (s *ReportService) NewMembersBetween(ctx context.Context, from, to time.Time) ([]models.Member, error) {
	return s.store.MembersJoinedBetween(ctx, from, to)
}

// MilestonesInMonth lists active members with a milestone anniversary in
// the given month
func (s *ReportService) MilestonesInMonth(ctx context.Context, month time.Month) ([]models.Member, error) {
	return s.store.MembersWithMilestoneInMonth(ctx, month)
}

// RecentPayments lists payments recorded in the given window, newest
// first
func (s *ReportService) RecentPayments(ctx context.Context, from, to time.Time) ([]models.Payment, error) {
	return s.store.PaymentsBetween(ctx, from, to)
}

// WriteMembersCSV writes a member roster export
func (s *ReportService) WriteMembersCSV(w io.Writer, members []models.Member) error {
	cw := csv.NewWriter(w)
	header := []string{
		"Member ID", "Last Name", "First Name", "Status",
		"Expiration Date", "Date Joined", "E Mail", "Phone",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range members {
		m := &members[i]
		memberID := ""
		if m.MemberID != nil {
			memberID = fmt.Sprintf("%d", *m.MemberID)
		}
		record := []string{
			memberID,
			m.LastName,
			m.FirstName,
			string(m.Status),
			m.ExpirationDate.Format("2006-01-02"),
			m.DateJoined.Format("2006-01-02"),
			m.Email,
			m.HomePhone,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePaymentsCSV writes a recent-payments export. Each row carries the
// paying member's name and current member ID alongside the payment.
func (s *ReportService) WritePaymentsCSV(ctx context.Context, w io.Writer, payments []models.Payment) error {
	cw := csv.NewWriter(w)
	header := []string{
		"Date", "Last Name", "First Name", "Member ID",
		"Payment Amount", "Receipt Number",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range payments {
		p := &payments[i]
		lastName, firstName, memberID := "", "", ""
		if m, err := s.store.GetMember(ctx, p.MemberUUID); err == nil {
			lastName, firstName = m.LastName, m.FirstName
			if m.MemberID != nil {
				memberID = fmt.Sprintf("%d", *m.MemberID)
			}
		}
		record := []string{
			p.Date.Format("2006-01-02"),
			lastName,
			firstName,
			memberID,
			p.Amount.StringFixed(2),
			p.ReceiptNumber,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

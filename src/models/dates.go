package models

import "time"

// Membership expirations are always carried as the last calendar day of
// some month, so a member who pays mid-month still gets the whole month.
// The helpers here are the single source of that normalization.

// EndOfMonth forces a date to the last day of its month
func EndOfMonth(d time.Time) time.Time {
	// Day 0 of the next month is the last day of this one.
	return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, d.Location())
}

// AddMonths adds calendar months to a date and returns the last day of
// the resulting month. Landing on the month (not the day) avoids the
// time.AddDate overflow where Jan 31 + 1 month becomes Mar 3:
//
//	Mar 15 + 1 month = Apr 30
//	Jan 31 + 1 month = Feb 28 (Feb 29 in leap years)
//	Dec 15 + 2 months = Feb 28/29
func AddMonths(d time.Time, months int) time.Time {
	return time.Date(d.Year(), d.Month()+time.Month(months)+1, 0, 0, 0, 0, 0, d.Location())
}

// truncateToDate drops the time-of-day component
func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

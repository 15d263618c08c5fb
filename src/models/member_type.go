package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LifetimeCoverageMonths is the sentinel coverage used for lifetime
// membership types. Lifetime members never renew; their expiration is
// pinned to LifetimeExpiration because the expiration column is
// non-nullable.
const LifetimeCoverageMonths = 300

// LifetimeExpiration returns the far-future expiration date used for
// lifetime members
func LifetimeExpiration() time.Time {
	return time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// MemberType represents a membership category and its dues schedule
type MemberType struct {
	ID             int64           `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	MonthlyDues    decimal.Decimal `json:"monthly_dues" db:"monthly_dues"`       // Zero for honorary types
	CoverageMonths int             `json:"coverage_months" db:"coverage_months"` // 1=monthly, 12=annual, 300=lifetime
}

// IsLifetime returns true for lifetime membership types
func (mt *MemberType) IsLifetime() bool {
	return mt.CoverageMonths >= LifetimeCoverageMonths
}

// HasDues returns true if the type charges monthly dues
func (mt *MemberType) HasDues() bool {
	return mt.MonthlyDues.GreaterThan(decimal.Zero)
}

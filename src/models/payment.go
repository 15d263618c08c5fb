package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod represents a dues payment channel (cash, check, card, ...)
type PaymentMethod struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Payment represents a single dues payment. Payments are immutable once
// created and always reference the member's permanent UUID, never the
// recyclable member ID, so the audit trail survives deactivation cycles.
type Payment struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	MemberUUID      uuid.UUID       `json:"member_uuid" db:"member_uuid"`
	PaymentMethodID int64           `json:"payment_method_id" db:"payment_method_id"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Date            time.Time       `json:"date" db:"date"`
	ReceiptNumber   string          `json:"receipt_number" db:"receipt_number"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// String renders the payment the way receipts reference it
func (p *Payment) String() string {
	return fmt.Sprintf("$%s on %s", p.Amount.StringFixed(2), p.Date.Format("2006-01-02"))
}

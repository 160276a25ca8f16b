package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMode is how the debtor chose to pay. The zero value means not chosen yet.
type PaymentMode string

const (
	PaymentModeNone PaymentMode = ""
	PaymentModeUPI  PaymentMode = "upi"
	PaymentModeCash PaymentMode = "cash"
)

// Valid reports whether m is a selectable payment mode.
func (m PaymentMode) Valid() bool {
	return m == PaymentModeUPI || m == PaymentModeCash
}

// SettlementState is the lifecycle state derived from a settlement's fields.
type SettlementState string

const (
	StateCreated      SettlementState = "CREATED"
	StateModeSelected SettlementState = "MODE_SELECTED"
	StateReceived     SettlementState = "RECEIVED"
)

// Settlement is a debt from one group member to another, created when the group
// is finalized. It is never deleted or re-derived.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group this settlement belongs to.
	GroupID string

	// FromUserID is the debtor, who pays.
	FromUserID string

	// ToUserID is the creditor, who receives.
	ToUserID string

	// Amount is the payment amount, rounded to 2 decimal places.
	Amount decimal.Decimal

	// PaymentMode is set once by the debtor.
	PaymentMode PaymentMode

	// IsPaid is set by the creditor confirming receipt. Terminal.
	IsPaid bool

	// CreatedAt is when the group was finalized.
	CreatedAt time.Time

	// PaidAt is when receipt was confirmed.
	PaidAt *time.Time

	// PointsEarned is the debtor's award for this settlement, set with PaidAt.
	PointsEarned *int
}

// State derives the lifecycle state.
func (s *Settlement) State() SettlementState {
	switch {
	case s.IsPaid:
		return StateReceived
	case s.PaymentMode != PaymentModeNone:
		return StateModeSelected
	default:
		return StateCreated
	}
}

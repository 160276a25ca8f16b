package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitType records how an expense's partitions were produced.
type SplitType string

const (
	SplitEqual  SplitType = "equal"
	SplitCustom SplitType = "custom"
)

// Expense is an amount one member paid on behalf of some of the group.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group the expense belongs to.
	GroupID string

	// Name is a short description (e.g., "Dinner", "Taxi").
	Name string

	// PaidBy is the user ID of the member who paid.
	PaidBy string

	// TotalAmount is what the payer paid. The expense's partitions sum to it.
	TotalAmount decimal.Decimal

	// Category is a free-form grouping label (e.g., "Food", "Travel").
	Category string

	// SplitType is how the partitions were produced.
	SplitType SplitType

	// Partitions are the members' shares. Replaced wholesale on edit.
	Partitions []Partition

	// CreatedAt is when the expense was recorded.
	CreatedAt time.Time
}

// Partition is one member's share of one expense.
type Partition struct {
	ExpenseID string
	UserID    string
	Amount    decimal.Decimal
}

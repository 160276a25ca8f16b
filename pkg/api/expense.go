package api

import (
	"time"

	"github.com/shopspring/decimal"
)

type Partition struct {
	UserID string          `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
}

type Expense struct {
	ID          string          `json:"id"`
	GroupID     string          `json:"groupId"`
	Name        string          `json:"name"`
	PaidBy      string          `json:"paidBy"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Category    string          `json:"category,omitempty"`
	SplitType   string          `json:"splitType"`
	Partitions  []Partition     `json:"partitions"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ExpenseInput is the editable part of an expense.
//
// For an "equal" split, Participants lists who shares the total (default: the
// whole group, in roster order). For a "custom" split, Partitions gives each
// share explicitly; they must sum to TotalAmount.
type ExpenseInput struct {
	Name         string          `json:"name"`
	PaidBy       string          `json:"paidBy,omitempty"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	Category     string          `json:"category,omitempty"`
	SplitType    string          `json:"splitType"`
	Participants []string        `json:"participants,omitempty"`
	Partitions   []Partition     `json:"partitions,omitempty"`
}

type CreateExpenseRequest struct {
	GroupID string       `json:"groupId"`
	Expense ExpenseInput `json:"expense"`
}

type CreateExpenseResponse struct {
	Expense Expense `json:"expense"`
}

type UpdateExpenseRequest struct {
	ExpenseID string       `json:"expenseId"`
	Expense   ExpenseInput `json:"expense"`
}

type UpdateExpenseResponse struct {
	Expense Expense `json:"expense"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expenseId"`
}

type DeleteExpenseResponse struct{}

type ListExpensesRequest struct {
	GroupID string `json:"groupId"`
}

type ListExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
}

package api

import (
	"time"

	"github.com/shopspring/decimal"
)

type Balance struct {
	UserID     string          `json:"userId"`
	Name       string          `json:"name"`
	NetBalance decimal.Decimal `json:"netBalance"`
	Paid       decimal.Decimal `json:"paid"`
	Owed       decimal.Decimal `json:"owed"`
}

type Transfer struct {
	FromUserID string          `json:"fromUserId"`
	From       string          `json:"from"`
	ToUserID   string          `json:"toUserId"`
	To         string          `json:"to"`
	Amount     decimal.Decimal `json:"amount"`
}

// Settlement is a debt record. State is CREATED, MODE_SELECTED or RECEIVED.
type Settlement struct {
	ID           string          `json:"id"`
	GroupID      string          `json:"groupId"`
	FromUserID   string          `json:"fromUserId"`
	ToUserID     string          `json:"toUserId"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentMode  string          `json:"paymentMode,omitempty"`
	State        string          `json:"state"`
	IsPaid       bool            `json:"isPaid"`
	CreatedAt    time.Time       `json:"createdAt"`
	PaidAt       *time.Time      `json:"paidAt,omitempty"`
	PointsEarned *int            `json:"pointsEarned,omitempty"`
}

type ComputePreviewRequest struct {
	GroupID string `json:"groupId"`
}

type ComputePreviewResponse struct {
	GroupID     string     `json:"groupId"`
	IsFinalized bool       `json:"isFinalized"`
	Balances    []Balance  `json:"balances"`
	Transfers   []Transfer `json:"transfers"`
}

type FinalizeGroupRequest struct {
	GroupID string `json:"groupId"`
}

type FinalizeGroupResponse struct {
	Settlements []Settlement `json:"settlements"`
	// FullySettled is true when finalization found nothing to settle.
	FullySettled bool `json:"fullySettled"`
}

type SelectPaymentModeRequest struct {
	SettlementID string `json:"settlementId"`
	Mode         string `json:"mode"`
}

type SelectPaymentModeResponse struct {
	Settlement Settlement `json:"settlement"`
	DeepLink   string     `json:"deepLink,omitempty"`
	// NoPaymentHandler is set when the mode was saved but the payment link
	// could not be opened. Message explains it.
	NoPaymentHandler bool   `json:"noPaymentHandler,omitempty"`
	Message          string `json:"message,omitempty"`
}

type ConfirmReceivedRequest struct {
	SettlementID string `json:"settlementId"`
}

type ConfirmReceivedResponse struct {
	Settlement   Settlement `json:"settlement"`
	PointsEarned int        `json:"pointsEarned"`
	DebtorPoints int        `json:"debtorPoints"`
}

type ListSettlementsRequest struct {
	GroupID string `json:"groupId"`
}

type ListSettlementsResponse struct {
	Settlements []Settlement `json:"settlements"`
}

type ListPaymentsRequest struct{}

type ListPaymentsResponse struct {
	Payments []Settlement `json:"payments"`
}

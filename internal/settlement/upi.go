package settlement

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultCurrency = "INR"
	DefaultNote     = "FairShare Payment"
)

// Dispatcher hands a payment link to whatever can open it. Implementations
// return ErrNoPaymentHandler when nothing can.
type Dispatcher interface {
	Dispatch(ctx context.Context, link string) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, link string) error

func (f DispatcherFunc) Dispatch(ctx context.Context, link string) error {
	return f(ctx, link)
}

// PaymentLink builds a UPI deep link:
//
//	upi://pay?pa=<payee id>&pn=<payee name>&am=<amount>&cu=<currency>&tn=<note>
//
// The amount is formatted with exactly two decimals. Name and note are
// percent-encoded; the payee id is used as is.
func PaymentLink(payeeID, payeeName string, amount decimal.Decimal, currency, note string) string {
	return fmt.Sprintf("upi://pay?pa=%s&pn=%s&am=%s&cu=%s&tn=%s",
		payeeID, encodeComponent(payeeName), amount.StringFixed(2), currency, encodeComponent(note))
}

// encodeComponent percent-encodes s, with spaces as %20 rather than '+'.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fairshare/internal/models"
)

// Tolerance is the amount below which a balance counts as settled.
var Tolerance = decimal.New(1, -2)

// NetBalance represents the balance information for one group member.
type NetBalance struct {
	UserID     string
	Name       string
	NetBalance decimal.Decimal // Positive = owed money, Negative = owes money
	Paid       decimal.Decimal // Total amount paid as expense payer
	Owed       decimal.Decimal // Total of this member's partitions
}

// Transfer represents a payment from one member to another.
type Transfer struct {
	FromUserID string
	From       string // Debtor's display name
	ToUserID   string
	To         string // Creditor's display name
	Amount     decimal.Decimal
}

// AggregateBalances computes one NetBalance per roster member, in roster order.
//
// Algorithm:
//   - For each expense: payer's paid += total
//   - For each partition: member's owed += amount
//   - net_balance = paid - owed
//
// Members with no expenses get zero. Payers or partition holders that are not on
// the roster are ignored. Partition sums are not re-validated here; the expense
// write path guarantees they match each expense total.
func AggregateBalances(members []models.Member, expenses []models.Expense, partitions []models.Partition) []NetBalance {
	paid := make(map[string]decimal.Decimal)
	owed := make(map[string]decimal.Decimal)

	for _, e := range expenses {
		// Skip expenses without payer
		if e.PaidBy == "" {
			continue
		}
		paid[e.PaidBy] = paid[e.PaidBy].Add(e.TotalAmount)
	}

	for _, p := range partitions {
		owed[p.UserID] = owed[p.UserID].Add(p.Amount)
	}

	balances := make([]NetBalance, 0, len(members))
	for _, m := range members {
		balances = append(balances, NetBalance{
			UserID:     m.UserID,
			Name:       m.Name,
			NetBalance: paid[m.UserID].Sub(owed[m.UserID]),
			Paid:       paid[m.UserID],
			Owed:       owed[m.UserID],
		})
	}

	return balances
}

// ReduceBalances turns net balances into a short list of transfers that, once all
// paid, bring every balance to zero.
//
// Creditors are matched largest first against debtors most-negative first (ties
// broken by user ID, so the input order never changes the output). Each step
// settles min(debt, credit), and advances whichever side is within Tolerance of
// zero. Transfers are returned in the order they were produced, rounded to cents.
func ReduceBalances(balances []NetBalance) []Transfer {
	// Create lists of creditors (owed money) and debtors (owe money)
	var creditors, debtors []NetBalance
	for _, b := range balances {
		switch b.NetBalance.Sign() {
		case 1:
			creditors = append(creditors, b)
		case -1:
			debtors = append(debtors, b)
		}
	}

	sort.SliceStable(creditors, func(i, j int) bool {
		if c := creditors[i].NetBalance.Cmp(creditors[j].NetBalance); c != 0 {
			return c > 0
		}
		return creditors[i].UserID < creditors[j].UserID
	})
	sort.SliceStable(debtors, func(i, j int) bool {
		if c := debtors[i].NetBalance.Cmp(debtors[j].NetBalance); c != 0 {
			return c < 0
		}
		return debtors[i].UserID < debtors[j].UserID
	})

	transfers := make([]Transfer, 0, len(debtors))
	i, j := 0, 0

	// Greedy: every pass advances at least one index, so the walk is bounded
	// by len(debtors)+len(creditors) passes.
	for i < len(debtors) && j < len(creditors) {
		debtor := &debtors[i]
		creditor := &creditors[j]

		// Amount to settle is minimum of what debtor owes and creditor is owed
		amount := decimal.Min(debtor.NetBalance.Neg(), creditor.NetBalance)

		if rounded := amount.Round(2); rounded.IsPositive() {
			transfers = append(transfers, Transfer{
				FromUserID: debtor.UserID,
				From:       debtor.Name,
				ToUserID:   creditor.UserID,
				To:         creditor.Name,
				Amount:     rounded,
			})
		}

		debtor.NetBalance = debtor.NetBalance.Add(amount)
		creditor.NetBalance = creditor.NetBalance.Sub(amount)

		debtorDone := debtor.NetBalance.Abs().LessThan(Tolerance)
		creditorDone := creditor.NetBalance.Abs().LessThan(Tolerance)
		if !debtorDone && !creditorDone {
			// Neither side closed: retire the one nearer zero.
			if debtor.NetBalance.Abs().LessThanOrEqual(creditor.NetBalance.Abs()) {
				debtorDone = true
			} else {
				creditorDone = true
			}
		}

		if debtorDone {
			i++
		}
		if creditorDone {
			j++
		}
	}

	return transfers
}

package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fairshare/internal/models"
)

// ErrInvalidSplit is wrapped by every split validation failure.
var ErrInvalidSplit = errors.New("invalid split")

// EqualSplit divides total into per-member cent shares.
// The remainder cents go to the first members in the given order, so the shares
// always sum to total exactly (100.00 / 3 = 33.34 + 33.33 + 33.33).
func EqualSplit(total decimal.Decimal, userIDs []string) ([]models.Partition, error) {
	if err := validateTotal(total); err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, fmt.Errorf("%w: must have at least one participant", ErrInvalidSplit)
	}
	if dup := firstDuplicate(userIDs); dup != "" {
		return nil, fmt.Errorf("%w: participant %s listed twice", ErrInvalidSplit, dup)
	}

	cents := total.Shift(2).IntPart()
	n := int64(len(userIDs))
	base, remainder := cents/n, cents%n

	partitions := make([]models.Partition, len(userIDs))
	for i, id := range userIDs {
		share := base
		if int64(i) < remainder {
			share++
		}
		partitions[i] = models.Partition{
			UserID: id,
			Amount: decimal.New(share, -2),
		}
	}
	return partitions, nil
}

// ValidateCustomSplit checks that explicit shares are well formed, whole cents,
// and sum to total to the cent.
func ValidateCustomSplit(total decimal.Decimal, partitions []models.Partition) error {
	if err := validateTotal(total); err != nil {
		return err
	}
	if len(partitions) == 0 {
		return fmt.Errorf("%w: must have at least one participant", ErrInvalidSplit)
	}

	ids := make([]string, len(partitions))
	sum := decimal.Zero
	for i, p := range partitions {
		if p.UserID == "" {
			return fmt.Errorf("%w: partition %d has no user", ErrInvalidSplit, i)
		}
		if p.Amount.IsNegative() {
			return fmt.Errorf("%w: share for %s is negative", ErrInvalidSplit, p.UserID)
		}
		if !p.Amount.Round(2).Equal(p.Amount) {
			return fmt.Errorf("%w: share for %s has more than two decimal places", ErrInvalidSplit, p.UserID)
		}
		ids[i] = p.UserID
		sum = sum.Add(p.Amount)
	}
	if dup := firstDuplicate(ids); dup != "" {
		return fmt.Errorf("%w: participant %s listed twice", ErrInvalidSplit, dup)
	}

	if !sum.Round(2).Equal(total.Round(2)) {
		return fmt.Errorf("%w: custom amounts sum to %s, total is %s", ErrInvalidSplit, sum.StringFixed(2), total.StringFixed(2))
	}
	return nil
}

func validateTotal(total decimal.Decimal) error {
	if !total.IsPositive() {
		return fmt.Errorf("%w: total must be positive", ErrInvalidSplit)
	}
	if !total.Round(2).Equal(total) {
		return fmt.Errorf("%w: total %s has more than 2 decimal places", ErrInvalidSplit, total)
	}
	return nil
}

func firstDuplicate(ids []string) string {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return id
		}
		seen[id] = true
	}
	return ""
}

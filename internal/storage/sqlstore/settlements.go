package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/fairshare/internal/models"
	"github.com/mmynk/fairshare/internal/storage"
)

const settlementColumns = "id, group_id, from_user_id, to_user_id, amount, payment_mode, is_paid, created_at, paid_at, points_earned"

type settlementRow struct {
	ID           string          `db:"id"`
	GroupID      string          `db:"group_id"`
	FromUserID   string          `db:"from_user_id"`
	ToUserID     string          `db:"to_user_id"`
	Amount       decimal.Decimal `db:"amount"`
	PaymentMode  sql.NullString  `db:"payment_mode"`
	IsPaid       bool            `db:"is_paid"`
	CreatedAt    int64           `db:"created_at"`
	PaidAt       sql.NullInt64   `db:"paid_at"`
	PointsEarned sql.NullInt64   `db:"points_earned"`
}

func (r settlementRow) model() *models.Settlement {
	s := &models.Settlement{
		ID:          r.ID,
		GroupID:     r.GroupID,
		FromUserID:  r.FromUserID,
		ToUserID:    r.ToUserID,
		Amount:      r.Amount,
		PaymentMode: models.PaymentMode(r.PaymentMode.String),
		IsPaid:      r.IsPaid,
		CreatedAt:   fromMillis(r.CreatedAt),
		PaidAt:      nullMillis(r.PaidAt),
	}
	if r.PointsEarned.Valid {
		points := int(r.PointsEarned.Int64)
		s.PointsEarned = &points
	}
	return s
}

func settlementModels(rows []settlementRow) []*models.Settlement {
	settlements := make([]*models.Settlement, len(rows))
	for i, r := range rows {
		settlements[i] = r.model()
	}
	return settlements
}

// InsertSettlements persists new settlements in CREATED state. Their slice order
// is kept as the listing order within one finalization.
func (q *queries) InsertSettlements(ctx context.Context, settlements []*models.Settlement) error {
	for i, s := range settlements {
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		stamp(&s.CreatedAt)

		_, err := q.exec(ctx, `
			INSERT INTO settlements (id, group_id, from_user_id, to_user_id, amount, is_paid, created_at, seq)
			VALUES (?, ?, ?, ?, ?, FALSE, ?, ?)`,
			s.ID, s.GroupID, s.FromUserID, s.ToUserID, s.Amount, toMillis(s.CreatedAt), i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert settlement: %w", err)
		}
	}
	return nil
}

// GetSettlement retrieves a settlement by ID.
func (q *queries) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	var row settlementRow
	err := q.get(ctx, &row, "SELECT "+settlementColumns+" FROM settlements WHERE id = ?", settlementID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return row.model(), nil
}

// ListSettlements retrieves all settlements for a group.
func (q *queries) ListSettlements(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	var rows []settlementRow
	err := q.selectAll(ctx, &rows,
		"SELECT "+settlementColumns+" FROM settlements WHERE group_id = ? ORDER BY created_at DESC, seq",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements by group: %w", err)
	}
	return settlementModels(rows), nil
}

// ListPayments retrieves the settlements the user has paid.
func (q *queries) ListPayments(ctx context.Context, userID string) ([]*models.Settlement, error) {
	var rows []settlementRow
	err := q.selectAll(ctx, &rows,
		"SELECT "+settlementColumns+" FROM settlements WHERE from_user_id = ? AND is_paid ORDER BY paid_at DESC, id",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return settlementModels(rows), nil
}

// SelectSettlementMode records the debtor's payment mode on a CREATED settlement.
func (q *queries) SelectSettlementMode(ctx context.Context, settlementID string, mode models.PaymentMode) error {
	n, err := q.exec(ctx,
		"UPDATE settlements SET payment_mode = ? WHERE id = ? AND payment_mode IS NULL AND NOT is_paid",
		string(mode), settlementID,
	)
	if err != nil {
		return fmt.Errorf("failed to select payment mode: %w", err)
	}
	if n == 0 {
		return q.settlementMissingOrConflict(ctx, settlementID)
	}
	return nil
}

// MarkSettlementReceived moves a MODE_SELECTED settlement to RECEIVED. The
// state check and the write are one statement, so two confirmations of the
// same settlement cannot both succeed.
func (q *queries) MarkSettlementReceived(ctx context.Context, settlementID string, paidAt time.Time, points int) error {
	n, err := q.exec(ctx,
		"UPDATE settlements SET is_paid = TRUE, paid_at = ?, points_earned = ? WHERE id = ? AND payment_mode IS NOT NULL AND NOT is_paid",
		toMillis(paidAt), points, settlementID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark settlement received: %w", err)
	}
	if n == 0 {
		return q.settlementMissingOrConflict(ctx, settlementID)
	}
	return nil
}

func (q *queries) settlementMissingOrConflict(ctx context.Context, settlementID string) error {
	ok, err := q.exists(ctx, "settlements", settlementID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	return fmt.Errorf("settlement %s: %w", settlementID, storage.ErrConflict)
}

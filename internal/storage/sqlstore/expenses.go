package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/mmynk/fairshare/internal/models"
	"github.com/mmynk/fairshare/internal/storage"
)

const expenseColumns = "id, group_id, name, paid_by, total_amount, category, split_type, created_at"

type expenseRow struct {
	ID          string          `db:"id"`
	GroupID     string          `db:"group_id"`
	Name        string          `db:"name"`
	PaidBy      string          `db:"paid_by"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	Category    string          `db:"category"`
	SplitType   string          `db:"split_type"`
	CreatedAt   int64           `db:"created_at"`
}

func (r expenseRow) model() models.Expense {
	return models.Expense{
		ID:          r.ID,
		GroupID:     r.GroupID,
		Name:        r.Name,
		PaidBy:      r.PaidBy,
		TotalAmount: r.TotalAmount,
		Category:    r.Category,
		SplitType:   models.SplitType(r.SplitType),
		CreatedAt:   fromMillis(r.CreatedAt),
	}
}

type partitionRow struct {
	ExpenseID string          `db:"expense_id"`
	UserID    string          `db:"user_id"`
	Amount    decimal.Decimal `db:"amount"`
}

// CreateExpense inserts the expense row followed by its partitions.
func (q *queries) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	stamp(&expense.CreatedAt)

	_, err := q.exec(ctx,
		"INSERT INTO expenses ("+expenseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		expense.ID, expense.GroupID, expense.Name, expense.PaidBy, expense.TotalAmount,
		expense.Category, string(expense.SplitType), toMillis(expense.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	return q.insertPartitions(ctx, expense)
}

// ReplaceExpense updates the expense row, then deletes and reinserts all of its
// partitions.
func (q *queries) ReplaceExpense(ctx context.Context, expense *models.Expense) error {
	n, err := q.exec(ctx,
		"UPDATE expenses SET name = ?, paid_by = ?, total_amount = ?, category = ?, split_type = ? WHERE id = ?",
		expense.Name, expense.PaidBy, expense.TotalAmount, expense.Category, string(expense.SplitType), expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrNotFound)
	}

	if _, err := q.exec(ctx, "DELETE FROM partitions WHERE expense_id = ?", expense.ID); err != nil {
		return fmt.Errorf("failed to delete partitions: %w", err)
	}

	return q.insertPartitions(ctx, expense)
}

func (q *queries) insertPartitions(ctx context.Context, expense *models.Expense) error {
	for i := range expense.Partitions {
		p := &expense.Partitions[i]
		p.ExpenseID = expense.ID

		_, err := q.exec(ctx,
			"INSERT INTO partitions (expense_id, user_id, amount, position) VALUES (?, ?, ?, ?)",
			p.ExpenseID, p.UserID, p.Amount, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert partition: %w", err)
		}
	}
	return nil
}

// DeleteExpense removes an expense and its partitions.
func (q *queries) DeleteExpense(ctx context.Context, expenseID string) error {
	if _, err := q.exec(ctx, "DELETE FROM partitions WHERE expense_id = ?", expenseID); err != nil {
		return fmt.Errorf("failed to delete partitions: %w", err)
	}

	n, err := q.exec(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	return nil
}

// GetExpense retrieves an expense with its partitions.
func (q *queries) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	var row expenseRow
	err := q.get(ctx, &row, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", expenseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	expense := row.model()
	expense.Partitions, err = q.ListPartitions(ctx, []string{expenseID})
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

// ListExpenses retrieves the group's expenses in creation order.
func (q *queries) ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error) {
	var rows []expenseRow
	err := q.selectAll(ctx, &rows,
		"SELECT "+expenseColumns+" FROM expenses WHERE group_id = ? ORDER BY created_at, id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	expenses := make([]models.Expense, len(rows))
	for i, r := range rows {
		expenses[i] = r.model()
	}
	return expenses, nil
}

// ListPartitions retrieves the partitions of the given expenses.
func (q *queries) ListPartitions(ctx context.Context, expenseIDs []string) ([]models.Partition, error) {
	if len(expenseIDs) == 0 {
		return []models.Partition{}, nil
	}

	query, args, err := sqlx.In(
		"SELECT expense_id, user_id, amount FROM partitions WHERE expense_id IN (?) ORDER BY expense_id, position",
		expenseIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build partitions query: %w", err)
	}

	var rows []partitionRow
	if err := q.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}

	partitions := make([]models.Partition, len(rows))
	for i, r := range rows {
		partitions[i] = models.Partition{ExpenseID: r.ExpenseID, UserID: r.UserID, Amount: r.Amount}
	}
	return partitions, nil
}

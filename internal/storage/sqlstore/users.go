package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/fairshare/internal/models"
	"github.com/mmynk/fairshare/internal/storage"
)

type userRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	UPI       sql.NullString `db:"upi"`
	Points    int            `db:"points"`
	CreatedAt int64          `db:"created_at"`
}

func (r userRow) model() *models.User {
	return &models.User{
		ID:        r.ID,
		Name:      r.Name,
		UPI:       r.UPI.String,
		Points:    r.Points,
		CreatedAt: fromMillis(r.CreatedAt),
	}
}

// UpsertUser inserts the user, or updates name and UPI id of an existing one.
func (q *queries) UpsertUser(ctx context.Context, user *models.User) error {
	stamp(&user.CreatedAt)

	_, err := q.exec(ctx, `
		INSERT INTO users (id, name, upi, points, created_at)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, upi = excluded.upi`,
		user.ID, user.Name, nullString(user.UPI), toMillis(user.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (q *queries) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var row userRow
	err := q.get(ctx, &row,
		"SELECT id, name, upi, points, created_at FROM users WHERE id = ?",
		userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return row.model(), nil
}

// GetUPIIdentifier returns the user's UPI id, or "" if none is linked.
func (q *queries) GetUPIIdentifier(ctx context.Context, userID string) (string, error) {
	var upi sql.NullString
	err := q.get(ctx, &upi, "SELECT upi FROM users WHERE id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get UPI identifier: %w", err)
	}
	return upi.String, nil
}

// GetUserPoints returns the user's current score.
func (q *queries) GetUserPoints(ctx context.Context, userID string) (int, error) {
	var points int
	err := q.get(ctx, &points, "SELECT points FROM users WHERE id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get user points: %w", err)
	}
	return points, nil
}

// SetUserPoints overwrites the user's score.
func (q *queries) SetUserPoints(ctx context.Context, userID string, points int) error {
	n, err := q.exec(ctx, "UPDATE users SET points = ? WHERE id = ?", points, userID)
	if err != nil {
		return fmt.Errorf("failed to set user points: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	return nil
}

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/fairshare/internal/models"
	"github.com/mmynk/fairshare/internal/storage"
)

const groupColumns = "g.id, g.name, g.created_by, g.is_finalized, g.finalized_at, g.created_at"

type groupRow struct {
	ID          string        `db:"id"`
	Name        string        `db:"name"`
	CreatedBy   string        `db:"created_by"`
	IsFinalized bool          `db:"is_finalized"`
	FinalizedAt sql.NullInt64 `db:"finalized_at"`
	CreatedAt   int64         `db:"created_at"`
}

func (r groupRow) model() *models.Group {
	return &models.Group{
		ID:          r.ID,
		Name:        r.Name,
		CreatedBy:   r.CreatedBy,
		IsFinalized: r.IsFinalized,
		FinalizedAt: nullMillis(r.FinalizedAt),
		CreatedAt:   fromMillis(r.CreatedAt),
	}
}

type memberRow struct {
	UserID string `db:"user_id"`
	Name   string `db:"name"`
	Role   string `db:"role"`
}

// CreateGroup persists a new group. Members are added separately.
func (q *queries) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	stamp(&group.CreatedAt)

	created := toMillis(group.CreatedAt)
	_, err := q.exec(ctx,
		"INSERT INTO groups (id, name, created_by, is_finalized, created_at, updated_at) VALUES (?, ?, ?, FALSE, ?, ?)",
		group.ID, group.Name, group.CreatedBy, created, created,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID.
func (q *queries) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	var row groupRow
	err := q.get(ctx, &row, "SELECT "+groupColumns+" FROM groups g WHERE g.id = ?", groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return row.model(), nil
}

// ListGroupsForUser retrieves all groups the user belongs to.
func (q *queries) ListGroupsForUser(ctx context.Context, userID string) ([]*models.Group, error) {
	var rows []groupRow
	err := q.selectAll(ctx, &rows, `
		SELECT `+groupColumns+`
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = ?
		ORDER BY g.created_at DESC, g.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	groups := make([]*models.Group, len(rows))
	for i, r := range rows {
		groups[i] = r.model()
	}
	return groups, nil
}

// AddMember appends the user to the group's roster.
func (q *queries) AddMember(ctx context.Context, groupID, userID string, role models.Role) error {
	if _, err := q.GetMember(ctx, groupID, userID); err == nil {
		return fmt.Errorf("member %s of group %s: %w", userID, groupID, storage.ErrDuplicate)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	_, err := q.exec(ctx, `
		INSERT INTO group_members (group_id, user_id, role, position)
		SELECT ?, ?, ?, COUNT(*) FROM group_members WHERE group_id = ?`,
		groupID, userID, string(role), groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group member: %w", err)
	}
	return nil
}

// GetMember retrieves one membership with the user's display name.
func (q *queries) GetMember(ctx context.Context, groupID, userID string) (*models.Member, error) {
	var row memberRow
	err := q.get(ctx, &row, `
		SELECT m.user_id, u.name, m.role
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = ? AND m.user_id = ?`,
		groupID, userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %s of group %s: %w", userID, groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group member: %w", err)
	}
	return &models.Member{UserID: row.UserID, Name: row.Name, Role: models.Role(row.Role)}, nil
}

// ListMembers retrieves the group's roster in join order.
func (q *queries) ListMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	var rows []memberRow
	err := q.selectAll(ctx, &rows, `
		SELECT m.user_id, u.name, m.role
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = ?
		ORDER BY m.position, m.user_id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}

	members := make([]models.Member, len(rows))
	for i, r := range rows {
		members[i] = models.Member{UserID: r.UserID, Name: r.Name, Role: models.Role(r.Role)}
	}
	return members, nil
}

// EnsureGroupOpen bumps updated_at, gated on the group not being finalized.
// Inside a transaction this also takes the group's row lock on PostgreSQL, so a
// concurrent finalize waits for the expense write to commit (or vice versa).
func (q *queries) EnsureGroupOpen(ctx context.Context, groupID string, at time.Time) error {
	n, err := q.exec(ctx,
		"UPDATE groups SET updated_at = ? WHERE id = ? AND NOT is_finalized",
		toMillis(at), groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to check group state: %w", err)
	}
	if n == 0 {
		return q.groupMissingOr(ctx, groupID, storage.ErrGroupFinalized)
	}
	return nil
}

// SetGroupFinalized flips is_finalized. The WHERE clause re-checks the flag at
// write time, so of two racing finalizes only one changes a row.
func (q *queries) SetGroupFinalized(ctx context.Context, groupID string, at time.Time) error {
	ms := toMillis(at)
	n, err := q.exec(ctx,
		"UPDATE groups SET is_finalized = TRUE, finalized_at = ?, updated_at = ? WHERE id = ? AND NOT is_finalized",
		ms, ms, groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize group: %w", err)
	}
	if n == 0 {
		return q.groupMissingOr(ctx, groupID, storage.ErrAlreadyFinalized)
	}
	return nil
}

// groupMissingOr explains a conditional update on groups that matched no row.
func (q *queries) groupMissingOr(ctx context.Context, groupID string, stateErr error) error {
	ok, err := q.exists(ctx, "groups", groupID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return fmt.Errorf("group %s: %w", groupID, stateErr)
}

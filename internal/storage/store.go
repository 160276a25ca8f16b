// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/fairshare/internal/models"
)

var (
	// ErrNotFound is returned when a row addressed by ID does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional update matched no row because
	// the record was not in the required prior state.
	ErrConflict = errors.New("record not in expected state")

	// ErrGroupFinalized is returned by expense writes on a finalized group.
	ErrGroupFinalized = errors.New("group is finalized")

	// ErrAlreadyFinalized is returned when finalizing a group a second time.
	ErrAlreadyFinalized = errors.New("group already finalized")

	// ErrDuplicate is returned when inserting a row whose key already exists.
	ErrDuplicate = errors.New("already exists")
)

// Queries holds every store operation. It is implemented by the store itself
// and by the transaction handle passed to WithTx.
//
// Multi-row writes (CreateExpense, ReplaceExpense, InsertSettlements) are only
// atomic when issued through WithTx.
type Queries interface {
	// UpsertUser creates the user or updates its name and UPI id.
	// Points and CreatedAt of an existing user are left alone.
	UpsertUser(ctx context.Context, user *models.User) error

	// GetUser returns ErrNotFound for unknown users.
	GetUser(ctx context.Context, userID string) (*models.User, error)

	// GetUPIIdentifier returns "" when the user has not linked one.
	GetUPIIdentifier(ctx context.Context, userID string) (string, error)

	// GetUserPoints returns 0 for users with no score yet.
	GetUserPoints(ctx context.Context, userID string) (int, error)

	// SetUserPoints overwrites the user's score.
	SetUserPoints(ctx context.Context, userID string, points int) error

	// CreateGroup persists a new group. The ID is generated when empty.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup returns ErrNotFound for unknown groups.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroupsForUser returns the groups the user is a member of, newest first.
	ListGroupsForUser(ctx context.Context, userID string) ([]*models.Group, error)

	// AddMember returns ErrDuplicate when the user is already a member.
	AddMember(ctx context.Context, groupID, userID string, role models.Role) error

	// GetMember returns ErrNotFound when the user is not in the group.
	GetMember(ctx context.Context, groupID, userID string) (*models.Member, error)

	// ListMembers returns the roster in join order, with display names.
	ListMembers(ctx context.Context, groupID string) ([]models.Member, error)

	// EnsureGroupOpen touches the group row only while it is not finalized.
	// It returns ErrGroupFinalized (or ErrNotFound) otherwise. Run inside the
	// same transaction as an expense write so the check holds at commit time.
	EnsureGroupOpen(ctx context.Context, groupID string, at time.Time) error

	// SetGroupFinalized flips the finalized flag, gated on it being unset.
	// It returns ErrAlreadyFinalized (or ErrNotFound) when no row changed.
	SetGroupFinalized(ctx context.Context, groupID string, at time.Time) error

	// CreateExpense persists the expense and its partitions.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// ReplaceExpense updates the expense row and replaces all its partitions.
	ReplaceExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes the expense and its partitions.
	DeleteExpense(ctx context.Context, expenseID string) error

	// GetExpense returns the expense with its partitions.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListExpenses returns the group's expenses, oldest first, without partitions.
	ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error)

	// ListPartitions returns the partitions of the given expenses.
	ListPartitions(ctx context.Context, expenseIDs []string) ([]models.Partition, error)

	// InsertSettlements persists new settlements. IDs are generated when empty.
	InsertSettlements(ctx context.Context, settlements []*models.Settlement) error

	// GetSettlement returns ErrNotFound for unknown settlements.
	GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error)

	// ListSettlements returns the group's settlements, newest first.
	ListSettlements(ctx context.Context, groupID string) ([]*models.Settlement, error)

	// ListPayments returns the paid settlements where the user was the debtor,
	// most recently paid first.
	ListPayments(ctx context.Context, userID string) ([]*models.Settlement, error)

	// SelectSettlementMode sets the payment mode of a CREATED settlement.
	// It returns ErrConflict when the settlement is in any other state.
	SelectSettlementMode(ctx context.Context, settlementID string, mode models.PaymentMode) error

	// MarkSettlementReceived moves a MODE_SELECTED settlement to RECEIVED.
	// It returns ErrConflict when the settlement is in any other state.
	MarkSettlementReceived(ctx context.Context, settlementID string, paidAt time.Time, points int) error
}

// Store is a storage backend.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, memory)
// without changing the service layer.
type Store interface {
	Queries

	// WithTx runs fn against a transaction handle. A nil return commits;
	// an error rolls back where the backend supports it.
	WithTx(ctx context.Context, fn func(q Queries) error) error

	// Transactional reports whether WithTx rolls back on error. When false,
	// writes made by fn before a failure stay applied.
	Transactional() bool

	// Close releases any resources held by the store.
	Close() error
}

// Package storagetest holds the behavior every storage.Store backend must share.
// Backends call Run from their own tests.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/fairshare/internal/models"
	"github.com/mmynk/fairshare/internal/storage"
)

// Factory returns a fresh, empty store. Run closes it.
type Factory func(t *testing.T) storage.Store

// Run exercises a store implementation.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"Users", testUsers},
		{"Groups", testGroups},
		{"Finalize", testFinalize},
		{"Expenses", testExpenses},
		{"Settlements", testSettlements},
		{"WithTx", testWithTx},
		{"ConcurrentFinalize", testConcurrentFinalize},
		{"ConcurrentReceive", testConcurrentReceive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			tt.fn(t, s)
		})
	}
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedGroup creates users alice, bob and charlie and a group holding all three,
// with alice as admin.
func seedGroup(t *testing.T, s storage.Store) *models.Group {
	t.Helper()
	ctx := context.Background()

	for _, u := range []models.User{
		{ID: "alice", Name: "Alice", UPI: "alice@okbank"},
		{ID: "bob", Name: "Bob"},
		{ID: "charlie", Name: "Charlie"},
	} {
		u := u
		require.NoError(t, s.UpsertUser(ctx, &u))
	}

	group := &models.Group{Name: "Goa Trip", CreatedBy: "alice", CreatedAt: epoch}
	require.NoError(t, s.CreateGroup(ctx, group))
	require.NotEmpty(t, group.ID)

	require.NoError(t, s.AddMember(ctx, group.ID, "alice", models.RoleAdmin))
	require.NoError(t, s.AddMember(ctx, group.ID, "bob", models.RoleMember))
	require.NoError(t, s.AddMember(ctx, group.ID, "charlie", models.RoleMember))
	return group
}

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()

	user := &models.User{ID: "alice", Name: "Alice", UPI: "alice@okbank"}
	require.NoError(t, s.UpsertUser(ctx, user))

	got, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, "alice@okbank", got.UPI)
	assert.Equal(t, 0, got.Points)

	require.NoError(t, s.SetUserPoints(ctx, "alice", 7))
	points, err := s.GetUserPoints(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 7, points)

	// Upsert keeps the score and can unlink UPI
	require.NoError(t, s.UpsertUser(ctx, &models.User{ID: "alice", Name: "Alice B"}))
	got, err = s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice B", got.Name)
	assert.Equal(t, 7, got.Points)

	upi, err := s.GetUPIIdentifier(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, upi)

	_, err = s.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetUPIIdentifier(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.SetUserPoints(ctx, "nobody", 1), storage.ErrNotFound)
}

func testGroups(t *testing.T, s storage.Store) {
	ctx := context.Background()
	group := seedGroup(t, s)

	got, err := s.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, "Goa Trip", got.Name)
	assert.Equal(t, "alice", got.CreatedBy)
	assert.False(t, got.IsFinalized)
	assert.Nil(t, got.FinalizedAt)
	assert.True(t, got.CreatedAt.Equal(epoch))

	members, err := s.ListMembers(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, models.Member{UserID: "alice", Name: "Alice", Role: models.RoleAdmin}, members[0])
	assert.Equal(t, "bob", members[1].UserID)
	assert.Equal(t, "charlie", members[2].UserID)

	m, err := s.GetMember(ctx, group.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, m.Role)

	_, err = s.GetMember(ctx, group.ID, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = s.AddMember(ctx, group.ID, "bob", models.RoleAdmin)
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	groups, err := s.ListGroupsForUser(ctx, "charlie")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, group.ID, groups[0].ID)

	groups, err = s.ListGroupsForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, groups)

	_, err = s.GetGroup(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testFinalize(t *testing.T, s storage.Store) {
	ctx := context.Background()
	group := seedGroup(t, s)

	require.NoError(t, s.EnsureGroupOpen(ctx, group.ID, epoch))

	at := epoch.Add(time.Hour)
	require.NoError(t, s.SetGroupFinalized(ctx, group.ID, at))

	got, err := s.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFinalized)
	require.NotNil(t, got.FinalizedAt)
	assert.True(t, got.FinalizedAt.Equal(at))

	assert.ErrorIs(t, s.SetGroupFinalized(ctx, group.ID, at), storage.ErrAlreadyFinalized)
	assert.ErrorIs(t, s.EnsureGroupOpen(ctx, group.ID, at), storage.ErrGroupFinalized)

	assert.ErrorIs(t, s.SetGroupFinalized(ctx, "missing", at), storage.ErrNotFound)
	assert.ErrorIs(t, s.EnsureGroupOpen(ctx, "missing", at), storage.ErrNotFound)
}

func testExpenses(t *testing.T, s storage.Store) {
	ctx := context.Background()
	group := seedGroup(t, s)

	expense := &models.Expense{
		GroupID:     group.ID,
		Name:        "Dinner",
		PaidBy:      "alice",
		TotalAmount: d("100"),
		Category:    "Food",
		SplitType:   models.SplitCustom,
		CreatedAt:   epoch,
		Partitions: []models.Partition{
			{UserID: "alice", Amount: d("30")},
			{UserID: "bob", Amount: d("40")},
			{UserID: "charlie", Amount: d("30")},
		},
	}
	require.NoError(t, s.CreateExpense(ctx, expense))
	require.NotEmpty(t, expense.ID)

	got, err := s.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dinner", got.Name)
	assert.True(t, got.TotalAmount.Equal(d("100")))
	assert.Equal(t, models.SplitCustom, got.SplitType)
	require.Len(t, got.Partitions, 3)
	assert.Equal(t, "alice", got.Partitions[0].UserID)
	assert.True(t, got.Partitions[1].Amount.Equal(d("40")))

	second := &models.Expense{
		GroupID: group.ID, Name: "Taxi", PaidBy: "bob", TotalAmount: d("9.99"),
		SplitType: models.SplitEqual, CreatedAt: epoch.Add(time.Minute),
		Partitions: []models.Partition{
			{UserID: "bob", Amount: d("5")},
			{UserID: "charlie", Amount: d("4.99")},
		},
	}
	require.NoError(t, s.CreateExpense(ctx, second))

	expenses, err := s.ListExpenses(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, expenses, 2)
	assert.Equal(t, expense.ID, expenses[0].ID)
	assert.Equal(t, second.ID, expenses[1].ID)

	partitions, err := s.ListPartitions(ctx, []string{expense.ID, second.ID})
	require.NoError(t, err)
	assert.Len(t, partitions, 5)

	partitions, err = s.ListPartitions(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, partitions)

	// Replace swaps all partitions
	expense.TotalAmount = d("60")
	expense.Partitions = []models.Partition{
		{UserID: "bob", Amount: d("60")},
	}
	require.NoError(t, s.ReplaceExpense(ctx, expense))

	got, err = s.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(d("60")))
	require.Len(t, got.Partitions, 1)
	assert.Equal(t, "bob", got.Partitions[0].UserID)

	require.NoError(t, s.DeleteExpense(ctx, expense.ID))
	_, err = s.GetExpense(ctx, expense.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	partitions, err = s.ListPartitions(ctx, []string{expense.ID})
	require.NoError(t, err)
	assert.Empty(t, partitions)

	assert.ErrorIs(t, s.DeleteExpense(ctx, expense.ID), storage.ErrNotFound)
	assert.ErrorIs(t, s.ReplaceExpense(ctx, &models.Expense{ID: "missing"}), storage.ErrNotFound)
}

func testSettlements(t *testing.T, s storage.Store) {
	ctx := context.Background()
	group := seedGroup(t, s)

	settlements := []*models.Settlement{
		{GroupID: group.ID, FromUserID: "bob", ToUserID: "alice", Amount: d("40"), CreatedAt: epoch},
		{GroupID: group.ID, FromUserID: "charlie", ToUserID: "alice", Amount: d("30"), CreatedAt: epoch},
	}
	require.NoError(t, s.InsertSettlements(ctx, settlements))

	listed, err := s.ListSettlements(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "bob", listed[0].FromUserID)
	assert.Equal(t, "charlie", listed[1].FromUserID)
	assert.Equal(t, models.StateCreated, listed[0].State())

	id := settlements[0].ID

	// CREATED cannot be received
	assert.ErrorIs(t, s.MarkSettlementReceived(ctx, id, epoch, 10), storage.ErrConflict)

	require.NoError(t, s.SelectSettlementMode(ctx, id, models.PaymentModeCash))
	assert.ErrorIs(t, s.SelectSettlementMode(ctx, id, models.PaymentModeUPI), storage.ErrConflict)

	got, err := s.GetSettlement(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StateModeSelected, got.State())
	assert.Equal(t, models.PaymentModeCash, got.PaymentMode)

	paidAt := epoch.Add(2 * time.Hour)
	require.NoError(t, s.MarkSettlementReceived(ctx, id, paidAt, 10))
	assert.ErrorIs(t, s.MarkSettlementReceived(ctx, id, paidAt, 10), storage.ErrConflict)

	got, err = s.GetSettlement(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StateReceived, got.State())
	require.NotNil(t, got.PaidAt)
	assert.True(t, got.PaidAt.Equal(paidAt))
	require.NotNil(t, got.PointsEarned)
	assert.Equal(t, 10, *got.PointsEarned)

	payments, err := s.ListPayments(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, id, payments[0].ID)

	payments, err = s.ListPayments(ctx, "charlie")
	require.NoError(t, err)
	assert.Empty(t, payments)

	_, err = s.GetSettlement(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.SelectSettlementMode(ctx, "missing", models.PaymentModeUPI), storage.ErrNotFound)
	assert.ErrorIs(t, s.MarkSettlementReceived(ctx, "missing", epoch, 2), storage.ErrNotFound)
}

func testWithTx(t *testing.T, s storage.Store) {
	ctx := context.Background()
	group := seedGroup(t, s)

	err := s.WithTx(ctx, func(q storage.Queries) error {
		if err := q.SetGroupFinalized(ctx, group.ID, epoch); err != nil {
			return err
		}
		return q.InsertSettlements(ctx, []*models.Settlement{
			{GroupID: group.ID, FromUserID: "bob", ToUserID: "alice", Amount: d("1"), CreatedAt: epoch},
		})
	})
	require.NoError(t, err)

	listed, err := s.ListSettlements(ctx, group.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	if !s.Transactional() {
		return
	}

	// A failing unit leaves nothing behind
	other := &models.Group{Name: "Flat 4B", CreatedBy: "alice", CreatedAt: epoch}
	require.NoError(t, s.CreateGroup(ctx, other))

	boom := errors.New("boom")
	err = s.WithTx(ctx, func(q storage.Queries) error {
		if err := q.SetGroupFinalized(ctx, other.ID, epoch); err != nil {
			return err
		}
		if err := q.InsertSettlements(ctx, []*models.Settlement{
			{GroupID: other.ID, FromUserID: "bob", ToUserID: "alice", Amount: d("1"), CreatedAt: epoch},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetGroup(ctx, other.ID)
	require.NoError(t, err)
	assert.False(t, got.IsFinalized)

	listed, err = s.ListSettlements(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func testConcurrentFinalize(t *testing.T, s storage.Store) {
	ctx := context.Background()
	group := seedGroup(t, s)

	const workers = 8
	var wg sync.WaitGroup
	var succeeded, rejected atomic.Int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(q storage.Queries) error {
				if err := q.SetGroupFinalized(ctx, group.ID, epoch); err != nil {
					return err
				}
				return q.InsertSettlements(ctx, []*models.Settlement{
					{GroupID: group.ID, FromUserID: "bob", ToUserID: "alice", Amount: d("5"), CreatedAt: epoch},
				})
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, storage.ErrAlreadyFinalized):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(workers-1), rejected.Load())

	listed, err := s.ListSettlements(ctx, group.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1, "settlements must be created exactly once")
}

func testConcurrentReceive(t *testing.T, s storage.Store) {
	ctx := context.Background()
	group := seedGroup(t, s)

	settlement := &models.Settlement{GroupID: group.ID, FromUserID: "bob", ToUserID: "alice", Amount: d("40"), CreatedAt: epoch}
	require.NoError(t, s.InsertSettlements(ctx, []*models.Settlement{settlement}))
	require.NoError(t, s.SelectSettlementMode(ctx, settlement.ID, models.PaymentModeUPI))

	const workers = 8
	var wg sync.WaitGroup
	var succeeded, conflicts atomic.Int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.MarkSettlementReceived(ctx, settlement.ID, epoch, 10)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, storage.ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(workers-1), conflicts.Load())
}

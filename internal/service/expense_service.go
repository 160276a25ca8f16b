package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/fairshare/internal/calculator"
	"github.com/mmynk/fairshare/internal/models"
	"github.com/mmynk/fairshare/internal/storage"
	"github.com/mmynk/fairshare/pkg/api"
	"github.com/mmynk/fairshare/pkg/api/apiconnect"
)

// ExpenseService implements the Connect ExpenseService. Every write checks
// that the group is still open in the same transaction as the write.
type ExpenseService struct {
	store storage.Store
	now   func() time.Time
}

var _ apiconnect.ExpenseServiceHandler = (*ExpenseService)(nil)

// NewExpenseService creates a new ExpenseService with the given storage backend.
func NewExpenseService(store storage.Store) *ExpenseService {
	return &ExpenseService{store: store, now: time.Now}
}

// CreateExpense records an expense and its partitions.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	groupID := req.Msg.GroupID
	slog.Info("CreateExpense request received",
		"group_id", groupID,
		"name", req.Msg.Expense.Name,
		"total", req.Msg.Expense.TotalAmount,
		"split_type", req.Msg.Expense.SplitType,
	)

	if groupID == "" {
		return nil, invalidArgument("group_id required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	var expense *models.Expense
	err = s.store.WithTx(ctx, func(q storage.Queries) error {
		if _, err := requireMember(ctx, q, groupID, caller); err != nil {
			return err
		}
		if err := q.EnsureGroupOpen(ctx, groupID, s.now()); err != nil {
			return err
		}
		roster, err := q.ListMembers(ctx, groupID)
		if err != nil {
			return err
		}
		expense, err = buildExpense(req.Msg.Expense, caller, roster)
		if err != nil {
			return err
		}
		expense.GroupID = groupID
		return q.CreateExpense(ctx, expense)
	})
	if err != nil {
		slog.Error("CreateExpense failed", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Expense created", "expense_id", expense.ID, "group_id", groupID)

	return connect.NewResponse(&api.CreateExpenseResponse{Expense: toAPIExpense(expense)}), nil
}

// UpdateExpense replaces an expense's fields and partitions in one transaction.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	expenseID := req.Msg.ExpenseID
	slog.Info("UpdateExpense request received", "expense_id", expenseID)

	if expenseID == "" {
		return nil, invalidArgument("expense_id required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	var expense *models.Expense
	err = s.store.WithTx(ctx, func(q storage.Queries) error {
		existing, err := q.GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}
		if _, err := requireMember(ctx, q, existing.GroupID, caller); err != nil {
			return err
		}
		if err := q.EnsureGroupOpen(ctx, existing.GroupID, s.now()); err != nil {
			return err
		}
		roster, err := q.ListMembers(ctx, existing.GroupID)
		if err != nil {
			return err
		}
		expense, err = buildExpense(req.Msg.Expense, existing.PaidBy, roster)
		if err != nil {
			return err
		}
		expense.ID = existing.ID
		expense.GroupID = existing.GroupID
		expense.CreatedAt = existing.CreatedAt
		for i := range expense.Partitions {
			expense.Partitions[i].ExpenseID = existing.ID
		}
		return q.ReplaceExpense(ctx, expense)
	})
	if err != nil {
		slog.Error("UpdateExpense failed", "expense_id", expenseID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Expense updated", "expense_id", expenseID)

	return connect.NewResponse(&api.UpdateExpenseResponse{Expense: toAPIExpense(expense)}), nil
}

// DeleteExpense removes an expense from an open group.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	expenseID := req.Msg.ExpenseID
	slog.Info("DeleteExpense request received", "expense_id", expenseID)

	if expenseID == "" {
		return nil, invalidArgument("expense_id required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(q storage.Queries) error {
		existing, err := q.GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}
		if _, err := requireMember(ctx, q, existing.GroupID, caller); err != nil {
			return err
		}
		if err := q.EnsureGroupOpen(ctx, existing.GroupID, s.now()); err != nil {
			return err
		}
		return q.DeleteExpense(ctx, expenseID)
	})
	if err != nil {
		slog.Error("DeleteExpense failed", "expense_id", expenseID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Expense deleted", "expense_id", expenseID)

	return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
}

// ListExpenses returns the group's expenses, oldest first, with partitions.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	groupID := req.Msg.GroupID
	if groupID == "" {
		return nil, invalidArgument("group_id required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.store, groupID, caller); err != nil {
		return nil, toConnectError(err)
	}

	expenses, err := s.store.ListExpenses(ctx, groupID)
	if err != nil {
		slog.Error("ListExpenses failed", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}

	ids := make([]string, len(expenses))
	for i, e := range expenses {
		ids[i] = e.ID
	}
	partitions, err := s.store.ListPartitions(ctx, ids)
	if err != nil {
		slog.Error("ListExpenses failed - could not list partitions", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}

	byExpense := make(map[string][]models.Partition, len(expenses))
	for _, p := range partitions {
		byExpense[p.ExpenseID] = append(byExpense[p.ExpenseID], p)
	}

	out := make([]api.Expense, len(expenses))
	for i := range expenses {
		expenses[i].Partitions = byExpense[expenses[i].ID]
		out[i] = toAPIExpense(&expenses[i])
	}

	slog.Info("ListExpenses successful", "group_id", groupID, "count", len(out))

	return connect.NewResponse(&api.ListExpensesResponse{Expenses: out}), nil
}

// buildExpense validates input against the group roster and computes the
// partitions. defaultPayer is used when input names no payer.
func buildExpense(input api.ExpenseInput, defaultPayer string, roster []models.Member) (*models.Expense, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, invalidArgument("expense name required")
	}

	onRoster := make(map[string]bool, len(roster))
	for _, m := range roster {
		onRoster[m.UserID] = true
	}

	paidBy := input.PaidBy
	if paidBy == "" {
		paidBy = defaultPayer
	}
	if !onRoster[paidBy] {
		return nil, invalidArgument("payer %s is not a member of the group", paidBy)
	}

	expense := &models.Expense{
		Name:        name,
		PaidBy:      paidBy,
		TotalAmount: input.TotalAmount,
		Category:    strings.TrimSpace(input.Category),
	}

	switch models.SplitType(strings.ToLower(input.SplitType)) {
	case models.SplitEqual, "":
		participants := input.Participants
		if len(participants) == 0 {
			participants = make([]string, len(roster))
			for i, m := range roster {
				participants[i] = m.UserID
			}
		}
		for _, id := range participants {
			if !onRoster[id] {
				return nil, invalidArgument("participant %s is not a member of the group", id)
			}
		}
		partitions, err := calculator.EqualSplit(input.TotalAmount, participants)
		if err != nil {
			return nil, err
		}
		expense.SplitType = models.SplitEqual
		expense.Partitions = partitions

	case models.SplitCustom:
		partitions := make([]models.Partition, len(input.Partitions))
		for i, p := range input.Partitions {
			if p.UserID != "" && !onRoster[p.UserID] {
				return nil, invalidArgument("participant %s is not a member of the group", p.UserID)
			}
			partitions[i] = models.Partition{UserID: p.UserID, Amount: p.Amount}
		}
		if err := calculator.ValidateCustomSplit(input.TotalAmount, partitions); err != nil {
			return nil, err
		}
		expense.SplitType = models.SplitCustom
		expense.Partitions = partitions

	default:
		return nil, invalidArgument("unknown split type %q", input.SplitType)
	}

	return expense, nil
}

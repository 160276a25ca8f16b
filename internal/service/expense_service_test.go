package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/fairshare/pkg/api"
)

func setupExpenseGroup(t *testing.T, ts *testServer) (alice, bob testClients, groupID string) {
	t.Helper()

	alice = ts.registerUser(t, "alice", "Alice", "")
	bob = ts.registerUser(t, "bob", "Bob", "")
	ts.registerUser(t, "charlie", "Charlie", "")

	resp, err := alice.groups.CreateGroup(context.Background(), connect.NewRequest(&api.CreateGroupRequest{
		Name:      "Flat 4B",
		MemberIDs: []string{"bob", "charlie"},
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return alice, bob, resp.Msg.Group.ID
}

func amounts(partitions []api.Partition) map[string]string {
	out := make(map[string]string, len(partitions))
	for _, p := range partitions {
		out[p.UserID] = p.Amount.StringFixed(2)
	}
	return out
}

func TestCreateExpense_EqualSplit(t *testing.T) {
	ts := setupTestServer(t)
	alice, _, groupID := setupExpenseGroup(t, ts)

	resp, err := alice.expenses.CreateExpense(context.Background(), connect.NewRequest(&api.CreateExpenseRequest{
		GroupID: groupID,
		Expense: api.ExpenseInput{
			Name:        "Groceries",
			TotalAmount: decimal.NewFromInt(100),
			Category:    "Food",
		},
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	e := resp.Msg.Expense
	if e.ID == "" {
		t.Error("expected non-empty expense ID")
	}
	if e.PaidBy != "alice" {
		t.Errorf("paid_by: expected caller 'alice', got '%s'", e.PaidBy)
	}
	if e.SplitType != "equal" {
		t.Errorf("split_type: expected 'equal', got '%s'", e.SplitType)
	}

	// Remainder cents go to the first members in roster order.
	want := map[string]string{"alice": "33.34", "bob": "33.33", "charlie": "33.33"}
	got := amounts(e.Partitions)
	for id, amount := range want {
		if got[id] != amount {
			t.Errorf("%s: expected %s, got %s", id, amount, got[id])
		}
	}
}

func TestCreateExpense_Validation(t *testing.T) {
	ts := setupTestServer(t)
	alice, _, groupID := setupExpenseGroup(t, ts)
	ts.registerUser(t, "mallory", "Mallory", "")

	tests := []struct {
		name  string
		input api.ExpenseInput
	}{
		{
			name:  "missing name",
			input: api.ExpenseInput{TotalAmount: decimal.NewFromInt(10)},
		},
		{
			name:  "zero total",
			input: api.ExpenseInput{Name: "Nothing", TotalAmount: decimal.Zero},
		},
		{
			name:  "sub-cent total",
			input: api.ExpenseInput{Name: "Odd", TotalAmount: decimal.RequireFromString("10.005")},
		},
		{
			name:  "payer not in group",
			input: api.ExpenseInput{Name: "Cab", PaidBy: "mallory", TotalAmount: decimal.NewFromInt(10)},
		},
		{
			name: "participant not in group",
			input: api.ExpenseInput{
				Name: "Cab", TotalAmount: decimal.NewFromInt(10),
				Participants: []string{"alice", "mallory"},
			},
		},
		{
			name: "custom shares do not sum",
			input: api.ExpenseInput{
				Name: "Rent", TotalAmount: decimal.NewFromInt(100), SplitType: "custom",
				Partitions: []api.Partition{
					{UserID: "alice", Amount: decimal.NewFromInt(50)},
					{UserID: "bob", Amount: decimal.NewFromInt(40)},
				},
			},
		},
		{
			name: "custom share listed twice",
			input: api.ExpenseInput{
				Name: "Rent", TotalAmount: decimal.NewFromInt(100), SplitType: "custom",
				Partitions: []api.Partition{
					{UserID: "bob", Amount: decimal.NewFromInt(50)},
					{UserID: "bob", Amount: decimal.NewFromInt(50)},
				},
			},
		},
		{
			name:  "unknown split type",
			input: api.ExpenseInput{Name: "Rent", TotalAmount: decimal.NewFromInt(100), SplitType: "shares"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := alice.expenses.CreateExpense(context.Background(), connect.NewRequest(&api.CreateExpenseRequest{
				GroupID: groupID,
				Expense: tt.input,
			}))
			assertCode(t, err, connect.CodeInvalidArgument)
		})
	}

	listResp, err := alice.expenses.ListExpenses(context.Background(), connect.NewRequest(&api.ListExpensesRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(listResp.Msg.Expenses) != 0 {
		t.Errorf("rejected expenses must not be stored, got %d", len(listResp.Msg.Expenses))
	}
}

func TestUpdateExpense(t *testing.T) {
	ts := setupTestServer(t)
	alice, bob, groupID := setupExpenseGroup(t, ts)
	ctx := context.Background()

	createResp, err := alice.expenses.CreateExpense(ctx, connect.NewRequest(&api.CreateExpenseRequest{
		GroupID: groupID,
		Expense: api.ExpenseInput{Name: "Rent", TotalAmount: decimal.NewFromInt(90)},
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	created := createResp.Msg.Expense

	updateResp, err := bob.expenses.UpdateExpense(ctx, connect.NewRequest(&api.UpdateExpenseRequest{
		ExpenseID: created.ID,
		Expense: api.ExpenseInput{
			Name:        "Rent (March)",
			TotalAmount: decimal.NewFromInt(120),
			SplitType:   "custom",
			Partitions: []api.Partition{
				{UserID: "bob", Amount: decimal.NewFromInt(70)},
				{UserID: "charlie", Amount: decimal.NewFromInt(50)},
			},
		},
	}))
	if err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}

	updated := updateResp.Msg.Expense
	if updated.ID != created.ID {
		t.Errorf("id changed: %s -> %s", created.ID, updated.ID)
	}
	if updated.PaidBy != "alice" {
		t.Errorf("payer should be kept when not given, got %s", updated.PaidBy)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}

	listResp, err := alice.expenses.ListExpenses(ctx, connect.NewRequest(&api.ListExpensesRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(listResp.Msg.Expenses) != 1 {
		t.Fatalf("expenses: expected 1, got %d", len(listResp.Msg.Expenses))
	}
	stored := listResp.Msg.Expenses[0]
	if stored.Name != "Rent (March)" || !stored.TotalAmount.Equal(decimal.NewFromInt(120)) {
		t.Errorf("unexpected stored expense: %+v", stored)
	}
	if !stored.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("created_at returned on create differs from stored: %v vs %v", created.CreatedAt, stored.CreatedAt)
	}
	got := amounts(stored.Partitions)
	if len(got) != 2 || got["bob"] != "70.00" || got["charlie"] != "50.00" {
		t.Errorf("partitions should be replaced, got %v", got)
	}

	_, err = alice.expenses.UpdateExpense(ctx, connect.NewRequest(&api.UpdateExpenseRequest{
		ExpenseID: "missing",
		Expense:   api.ExpenseInput{Name: "x", TotalAmount: decimal.NewFromInt(1)},
	}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestDeleteExpense(t *testing.T) {
	ts := setupTestServer(t)
	alice, bob, groupID := setupExpenseGroup(t, ts)
	mallory := ts.registerUser(t, "mallory", "Mallory", "")
	ctx := context.Background()

	createResp, err := alice.expenses.CreateExpense(ctx, connect.NewRequest(&api.CreateExpenseRequest{
		GroupID: groupID,
		Expense: api.ExpenseInput{Name: "Cab", TotalAmount: decimal.NewFromInt(30)},
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	id := createResp.Msg.Expense.ID

	_, err = mallory.expenses.DeleteExpense(ctx, connect.NewRequest(&api.DeleteExpenseRequest{ExpenseID: id}))
	assertCode(t, err, connect.CodePermissionDenied)

	if _, err := bob.expenses.DeleteExpense(ctx, connect.NewRequest(&api.DeleteExpenseRequest{ExpenseID: id})); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}

	_, err = bob.expenses.DeleteExpense(ctx, connect.NewRequest(&api.DeleteExpenseRequest{ExpenseID: id}))
	assertCode(t, err, connect.CodeNotFound)

	listResp, err := alice.expenses.ListExpenses(ctx, connect.NewRequest(&api.ListExpensesRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(listResp.Msg.Expenses) != 0 {
		t.Errorf("expected no expenses after delete, got %d", len(listResp.Msg.Expenses))
	}
}

func TestExpensesFrozenAfterFinalize(t *testing.T) {
	ts := setupTestServer(t)
	alice, bob, groupID := setupExpenseGroup(t, ts)
	ctx := context.Background()

	createResp, err := bob.expenses.CreateExpense(ctx, connect.NewRequest(&api.CreateExpenseRequest{
		GroupID: groupID,
		Expense: api.ExpenseInput{Name: "Cab", TotalAmount: decimal.NewFromInt(30)},
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	id := createResp.Msg.Expense.ID

	if _, err := alice.settlements.FinalizeGroup(ctx, connect.NewRequest(&api.FinalizeGroupRequest{GroupID: groupID})); err != nil {
		t.Fatalf("FinalizeGroup failed: %v", err)
	}

	_, err = bob.expenses.UpdateExpense(ctx, connect.NewRequest(&api.UpdateExpenseRequest{
		ExpenseID: id,
		Expense:   api.ExpenseInput{Name: "Cab", TotalAmount: decimal.NewFromInt(60)},
	}))
	assertCode(t, err, connect.CodeFailedPrecondition)

	_, err = bob.expenses.DeleteExpense(ctx, connect.NewRequest(&api.DeleteExpenseRequest{ExpenseID: id}))
	assertCode(t, err, connect.CodeFailedPrecondition)

	_, err = alice.groups.AddMember(ctx, connect.NewRequest(&api.AddMemberRequest{GroupID: groupID, UserID: "bob"}))
	assertCode(t, err, connect.CodeFailedPrecondition)

	listResp, err := alice.expenses.ListExpenses(ctx, connect.NewRequest(&api.ListExpensesRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(listResp.Msg.Expenses) != 1 || !listResp.Msg.Expenses[0].TotalAmount.Equal(decimal.NewFromInt(30)) {
		t.Errorf("expense should be unchanged, got %+v", listResp.Msg.Expenses)
	}
}

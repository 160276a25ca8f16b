// Package memstore is an in-memory implementation of storage.Store.
//
// Every operation is atomic on its own. WithTx only serializes units of work;
// it cannot roll back, so writes made before a failure stay applied.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/fairshare/internal/models"
	"github.com/mmynk/fairshare/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

type membership struct {
	userID string
	role   models.Role
}

type settlementRecord struct {
	settlement models.Settlement
	seq        int
}

// Store keeps all data in maps guarded by one mutex.
type Store struct {
	// txMu serializes WithTx units; mu guards the maps.
	txMu sync.Mutex
	mu   sync.RWMutex

	users       map[string]*models.User
	groups      map[string]*models.Group
	members     map[string][]membership
	expenses    map[string]*models.Expense
	settlements map[string]*settlementRecord
	seq         int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:       make(map[string]*models.User),
		groups:      make(map[string]*models.Group),
		members:     make(map[string][]membership),
		expenses:    make(map[string]*models.Expense),
		settlements: make(map[string]*settlementRecord),
	}
}

// WithTx runs fn while holding the transaction lock.
func (s *Store) WithTx(ctx context.Context, fn func(q storage.Queries) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s)
}

// Transactional is false: there is no rollback.
func (s *Store) Transactional() bool {
	return false
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// UpsertUser creates the user or updates its name and UPI id.
func (s *Store) UpsertUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[user.ID]; ok {
		existing.Name = user.Name
		existing.UPI = user.UPI
		return nil
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	userCopy := *user
	userCopy.Points = 0
	s.users[user.ID] = &userCopy
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	userCopy := *u
	return &userCopy, nil
}

// GetUPIIdentifier returns the user's UPI id, or "" if none is linked.
func (s *Store) GetUPIIdentifier(ctx context.Context, userID string) (string, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.UPI, nil
}

// GetUserPoints returns the user's current score.
func (s *Store) GetUserPoints(ctx context.Context, userID string) (int, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.Points, nil
}

// SetUserPoints overwrites the user's score.
func (s *Store) SetUserPoints(ctx context.Context, userID string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	u.Points = points
	return nil
}

// CreateGroup persists a new group.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now()
	}
	if _, exists := s.groups[group.ID]; exists {
		return fmt.Errorf("group %s: %w", group.ID, storage.ErrDuplicate)
	}

	groupCopy := *group
	groupCopy.IsFinalized = false
	groupCopy.FinalizedAt = nil
	s.groups[group.ID] = &groupCopy
	return nil
}

// GetGroup retrieves a group by ID.
func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return copyGroup(g), nil
}

// ListGroupsForUser retrieves all groups the user belongs to, newest first.
func (s *Store) ListGroupsForUser(ctx context.Context, userID string) ([]*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := []*models.Group{}
	for groupID, roster := range s.members {
		for _, m := range roster {
			if m.userID == userID {
				groups = append(groups, copyGroup(s.groups[groupID]))
				break
			}
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		if !groups[i].CreatedAt.Equal(groups[j].CreatedAt) {
			return groups[i].CreatedAt.After(groups[j].CreatedAt)
		}
		return groups[i].ID < groups[j].ID
	})
	return groups, nil
}

// AddMember appends the user to the group's roster.
func (s *Store) AddMember(ctx context.Context, groupID, userID string, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[groupID]; !ok {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if _, ok := s.users[userID]; !ok {
		return fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	for _, m := range s.members[groupID] {
		if m.userID == userID {
			return fmt.Errorf("member %s of group %s: %w", userID, groupID, storage.ErrDuplicate)
		}
	}

	s.members[groupID] = append(s.members[groupID], membership{userID: userID, role: role})
	return nil
}

// GetMember retrieves one membership with the user's display name.
func (s *Store) GetMember(ctx context.Context, groupID, userID string) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.members[groupID] {
		if m.userID == userID {
			member := s.member(m)
			return &member, nil
		}
	}
	return nil, fmt.Errorf("member %s of group %s: %w", userID, groupID, storage.ErrNotFound)
}

// ListMembers retrieves the group's roster in join order.
func (s *Store) ListMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roster := s.members[groupID]
	members := make([]models.Member, len(roster))
	for i, m := range roster {
		members[i] = s.member(m)
	}
	return members, nil
}

func (s *Store) member(m membership) models.Member {
	member := models.Member{UserID: m.userID, Role: m.role}
	if u, ok := s.users[m.userID]; ok {
		member.Name = u.Name
	}
	return member
}

// EnsureGroupOpen fails once the group is finalized.
func (s *Store) EnsureGroupOpen(ctx context.Context, groupID string, at time.Time) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if g.IsFinalized {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrGroupFinalized)
	}
	return nil
}

// SetGroupFinalized flips the finalized flag if it is unset.
func (s *Store) SetGroupFinalized(ctx context.Context, groupID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if g.IsFinalized {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrAlreadyFinalized)
	}

	g.IsFinalized = true
	g.FinalizedAt = &at
	return nil
}

// CreateExpense persists the expense and its partitions.
func (s *Store) CreateExpense(ctx context.Context, expense *models.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now()
	}
	if _, exists := s.expenses[expense.ID]; exists {
		return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrDuplicate)
	}

	s.expenses[expense.ID] = copyExpense(expense)
	return nil
}

// ReplaceExpense swaps the stored expense and all its partitions.
func (s *Store) ReplaceExpense(ctx context.Context, expense *models.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.expenses[expense.ID]
	if !ok {
		return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrNotFound)
	}

	replaced := copyExpense(expense)
	replaced.GroupID = existing.GroupID
	replaced.CreatedAt = existing.CreatedAt
	s.expenses[expense.ID] = replaced
	return nil
}

// DeleteExpense removes an expense and its partitions.
func (s *Store) DeleteExpense(ctx context.Context, expenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[expenseID]; !ok {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	delete(s.expenses, expenseID)
	return nil
}

// GetExpense retrieves an expense with its partitions.
func (s *Store) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.expenses[expenseID]
	if !ok {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	return copyExpense(e), nil
}

// ListExpenses retrieves the group's expenses in creation order.
func (s *Store) ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := []models.Expense{}
	for _, e := range s.expenses {
		if e.GroupID == groupID {
			expense := *e
			expense.Partitions = nil
			expenses = append(expenses, expense)
		}
	}

	sort.Slice(expenses, func(i, j int) bool {
		if !expenses[i].CreatedAt.Equal(expenses[j].CreatedAt) {
			return expenses[i].CreatedAt.Before(expenses[j].CreatedAt)
		}
		return expenses[i].ID < expenses[j].ID
	})
	return expenses, nil
}

// ListPartitions retrieves the partitions of the given expenses.
func (s *Store) ListPartitions(ctx context.Context, expenseIDs []string) ([]models.Partition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := append([]string(nil), expenseIDs...)
	sort.Strings(ids)

	partitions := []models.Partition{}
	for _, id := range ids {
		if e, ok := s.expenses[id]; ok {
			partitions = append(partitions, e.Partitions...)
		}
	}
	return partitions, nil
}

// InsertSettlements persists new settlements in CREATED state.
func (s *Store) InsertSettlements(ctx context.Context, settlements []*models.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range settlements {
		if st.ID == "" {
			st.ID = uuid.New().String()
		}
		if st.CreatedAt.IsZero() {
			st.CreatedAt = time.Now()
		}
		if _, exists := s.settlements[st.ID]; exists {
			return fmt.Errorf("settlement %s: %w", st.ID, storage.ErrDuplicate)
		}

		record := &settlementRecord{settlement: *st, seq: s.seq}
		record.settlement.PaymentMode = models.PaymentModeNone
		record.settlement.IsPaid = false
		record.settlement.PaidAt = nil
		record.settlement.PointsEarned = nil
		s.settlements[st.ID] = record
		s.seq++
	}
	return nil
}

// GetSettlement retrieves a settlement by ID.
func (s *Store) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.settlements[settlementID]
	if !ok {
		return nil, fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	return copySettlement(&r.settlement), nil
}

// ListSettlements retrieves all settlements for a group, newest first.
func (s *Store) ListSettlements(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	return s.listSettlements(func(st *models.Settlement) bool {
		return st.GroupID == groupID
	}, func(a, b *settlementRecord) bool {
		if !a.settlement.CreatedAt.Equal(b.settlement.CreatedAt) {
			return a.settlement.CreatedAt.After(b.settlement.CreatedAt)
		}
		return a.seq < b.seq
	}), nil
}

// ListPayments retrieves the settlements the user has paid, latest first.
func (s *Store) ListPayments(ctx context.Context, userID string) ([]*models.Settlement, error) {
	return s.listSettlements(func(st *models.Settlement) bool {
		return st.FromUserID == userID && st.IsPaid
	}, func(a, b *settlementRecord) bool {
		if !a.settlement.PaidAt.Equal(*b.settlement.PaidAt) {
			return a.settlement.PaidAt.After(*b.settlement.PaidAt)
		}
		return a.settlement.ID < b.settlement.ID
	}), nil
}

func (s *Store) listSettlements(keep func(*models.Settlement) bool, less func(a, b *settlementRecord) bool) []*models.Settlement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*settlementRecord
	for _, r := range s.settlements {
		if keep(&r.settlement) {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool { return less(records[i], records[j]) })

	settlements := make([]*models.Settlement, len(records))
	for i, r := range records {
		settlements[i] = copySettlement(&r.settlement)
	}
	return settlements
}

// SelectSettlementMode records the payment mode on a CREATED settlement.
func (s *Store) SelectSettlementMode(ctx context.Context, settlementID string, mode models.PaymentMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.settlements[settlementID]
	if !ok {
		return fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	if r.settlement.State() != models.StateCreated {
		return fmt.Errorf("settlement %s: %w", settlementID, storage.ErrConflict)
	}

	r.settlement.PaymentMode = mode
	return nil
}

// MarkSettlementReceived moves a MODE_SELECTED settlement to RECEIVED.
func (s *Store) MarkSettlementReceived(ctx context.Context, settlementID string, paidAt time.Time, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.settlements[settlementID]
	if !ok {
		return fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	if r.settlement.State() != models.StateModeSelected {
		return fmt.Errorf("settlement %s: %w", settlementID, storage.ErrConflict)
	}

	r.settlement.IsPaid = true
	r.settlement.PaidAt = &paidAt
	r.settlement.PointsEarned = &points
	return nil
}

func copyGroup(g *models.Group) *models.Group {
	groupCopy := *g
	if g.FinalizedAt != nil {
		at := *g.FinalizedAt
		groupCopy.FinalizedAt = &at
	}
	return &groupCopy
}

func copyExpense(e *models.Expense) *models.Expense {
	expenseCopy := *e
	expenseCopy.Partitions = make([]models.Partition, len(e.Partitions))
	for i, p := range e.Partitions {
		p.ExpenseID = e.ID
		expenseCopy.Partitions[i] = p
	}
	return &expenseCopy
}

func copySettlement(st *models.Settlement) *models.Settlement {
	settlementCopy := *st
	if st.PaidAt != nil {
		at := *st.PaidAt
		settlementCopy.PaidAt = &at
	}
	if st.PointsEarned != nil {
		points := *st.PointsEarned
		settlementCopy.PointsEarned = &points
	}
	return &settlementCopy
}

// Package settlement computes, finalizes and tracks group settlements.
//
// ComputePreview is read-only. FinalizeGroup turns a group's current balances
// into settlement rows exactly once. SelectPaymentMode and ConfirmReceived move
// each settlement through CREATED -> MODE_SELECTED -> RECEIVED.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/fairshare/internal/calculator"
	"github.com/mmynk/fairshare/internal/models"
	"github.com/mmynk/fairshare/internal/storage"
)

// Config holds the UPI link parameters.
type Config struct {
	Currency string
	Note     string
}

// Observer is notified of committed state changes.
type Observer interface {
	GroupFinalized(settlements int)
	PaymentModeSelected(mode models.PaymentMode)
	ReceiptConfirmed(points int)
	PartialCommit(op string)
}

// Engine runs settlement operations against a store.
type Engine struct {
	store      storage.Store
	now        func() time.Time
	cfg        Config
	dispatcher Dispatcher
	observer   Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithConfig sets the UPI link parameters. Empty fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		if cfg.Currency != "" {
			e.cfg.Currency = cfg.Currency
		}
		if cfg.Note != "" {
			e.cfg.Note = cfg.Note
		}
	}
}

// WithDispatcher sets where UPI links are sent after a mode is saved.
func WithDispatcher(d Dispatcher) Option {
	return func(e *Engine) { e.dispatcher = d }
}

// WithObserver sets the observer of committed state changes.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New creates an Engine.
func New(store storage.Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   time.Now,
		cfg:   Config{Currency: DefaultCurrency, Note: DefaultNote},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// clock returns the current time at the millisecond precision the stores
// keep, so returned timestamps match what a later read sees.
func (e *Engine) clock() time.Time {
	return e.now().Truncate(time.Millisecond)
}

// Preview is a group's current balances and the transfers that would settle them.
type Preview struct {
	Group     *models.Group
	Balances  []calculator.NetBalance
	Transfers []calculator.Transfer
}

// ModeSelection is the result of SelectPaymentMode.
type ModeSelection struct {
	Settlement *models.Settlement

	// DeepLink is the UPI payment link; empty for cash.
	DeepLink string

	// DispatchErr is set when the link could not be handed off. The mode was
	// saved anyway.
	DispatchErr error
}

// Receipt is the result of ConfirmReceived.
type Receipt struct {
	Settlement   *models.Settlement
	PointsEarned int
	DebtorPoints int
}

// ComputePreview aggregates and reduces the group's current expenses. It writes
// nothing and caches nothing.
func (e *Engine) ComputePreview(ctx context.Context, groupID string) (*Preview, error) {
	group, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, storeErr("get group", err)
	}

	balances, transfers, err := computeTransfers(ctx, e.store, groupID)
	if err != nil {
		return nil, err
	}

	return &Preview{Group: group, Balances: balances, Transfers: transfers}, nil
}

func computeTransfers(ctx context.Context, q storage.Queries, groupID string) ([]calculator.NetBalance, []calculator.Transfer, error) {
	members, err := q.ListMembers(ctx, groupID)
	if err != nil {
		return nil, nil, storeErr("list members", err)
	}

	expenses, err := q.ListExpenses(ctx, groupID)
	if err != nil {
		return nil, nil, storeErr("list expenses", err)
	}

	ids := make([]string, len(expenses))
	for i, ex := range expenses {
		ids[i] = ex.ID
	}
	partitions, err := q.ListPartitions(ctx, ids)
	if err != nil {
		return nil, nil, storeErr("list partitions", err)
	}

	balances := calculator.AggregateBalances(members, expenses, partitions)
	return balances, calculator.ReduceBalances(balances), nil
}

// FinalizeGroup freezes the group and persists one settlement per transfer.
// Only an admin may call it, once. The finalized flag is flipped first with a
// guard on its previous value, and the transfers are computed from rows read in
// the same transaction, so concurrent finalizes create settlements once.
func (e *Engine) FinalizeGroup(ctx context.Context, callerID, groupID string) ([]*models.Settlement, error) {
	if err := e.requireAdmin(ctx, callerID, groupID); err != nil {
		return nil, err
	}

	now := e.clock()
	var settlements []*models.Settlement
	flipped := false

	err := e.store.WithTx(ctx, func(q storage.Queries) error {
		if err := q.SetGroupFinalized(ctx, groupID, now); err != nil {
			return storeErr("finalize group", err)
		}
		flipped = true

		_, transfers, err := computeTransfers(ctx, q, groupID)
		if err != nil {
			return err
		}

		settlements = make([]*models.Settlement, len(transfers))
		for i, t := range transfers {
			settlements[i] = &models.Settlement{
				GroupID:    groupID,
				FromUserID: t.FromUserID,
				ToUserID:   t.ToUserID,
				Amount:     t.Amount,
				CreatedAt:  now,
			}
		}

		if err := q.InsertSettlements(ctx, settlements); err != nil {
			return storeErr("insert settlements", err)
		}
		return nil
	})
	if err != nil {
		if flipped && !e.store.Transactional() {
			return nil, e.partialCommit("finalize", &PartialCommitError{
				Committed: "group marked finalized",
				Failed:    "settlement creation",
				Err:       err,
			})
		}
		if !isTranslated(err) {
			err = storeErr("finalize transaction", err)
		}
		return nil, err
	}

	slog.Info("Group finalized", "group_id", groupID, "by", callerID, "settlements", len(settlements))
	if e.observer != nil {
		e.observer.GroupFinalized(len(settlements))
	}

	return settlements, nil
}

func (e *Engine) requireAdmin(ctx context.Context, callerID, groupID string) error {
	group, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return storeErr("get group", err)
	}

	member, err := e.store.GetMember(ctx, groupID, callerID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s is not a member of group %s", ErrForbidden, callerID, groupID)
	}
	if err != nil {
		return storeErr("get member", err)
	}
	if member.Role != models.RoleAdmin {
		return fmt.Errorf("%w: only an admin can finalize group %s", ErrForbidden, groupID)
	}

	if group.IsFinalized {
		return fmt.Errorf("%w: group %s", ErrAlreadyFinalized, groupID)
	}
	return nil
}

// SelectPaymentMode records the debtor's chosen payment mode on a CREATED
// settlement. For UPI it also builds the payment link and, if a dispatcher is
// set, hands it off. A missing creditor UPI id fails before anything is written.
func (e *Engine) SelectPaymentMode(ctx context.Context, callerID, settlementID string, mode models.PaymentMode) (*ModeSelection, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown payment mode %q", ErrValidation, mode)
	}

	s, err := e.store.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, storeErr("get settlement", err)
	}
	if s.FromUserID != callerID {
		return nil, fmt.Errorf("%w: only the payer can choose how to pay", ErrForbidden)
	}
	if s.State() != models.StateCreated {
		return nil, fmt.Errorf("%w: settlement %s is %s", ErrInvalidStateTransition, settlementID, s.State())
	}

	result := &ModeSelection{Settlement: s}

	if mode == models.PaymentModeUPI {
		upiID, err := e.store.GetUPIIdentifier(ctx, s.ToUserID)
		if err != nil {
			return nil, storeErr("get UPI identifier", err)
		}
		if upiID == "" {
			return nil, fmt.Errorf("%w: user %s", ErrMissingPayeeIdentifier, s.ToUserID)
		}

		payee, err := e.store.GetUser(ctx, s.ToUserID)
		if err != nil {
			return nil, storeErr("get payee", err)
		}
		result.DeepLink = PaymentLink(upiID, payee.Name, s.Amount, e.cfg.Currency, e.cfg.Note)
	}

	if err := e.store.SelectSettlementMode(ctx, settlementID, mode); err != nil {
		return nil, storeErr("select payment mode", err)
	}
	s.PaymentMode = mode

	slog.Info("Payment mode selected", "settlement_id", settlementID, "mode", mode)
	if e.observer != nil {
		e.observer.PaymentModeSelected(mode)
	}

	if result.DeepLink != "" && e.dispatcher != nil {
		if err := e.dispatcher.Dispatch(ctx, result.DeepLink); err != nil {
			if !errors.Is(err, ErrNoPaymentHandler) {
				err = fmt.Errorf("%w: %w", ErrNoPaymentHandler, err)
			}
			slog.Warn("Payment link not dispatched", "settlement_id", settlementID, "error", err)
			result.DispatchErr = err
		}
	}

	return result, nil
}

// ConfirmReceived marks a MODE_SELECTED settlement as received and folds the
// award into the debtor's score. Only the creditor may call it. Both writes run
// in one store transaction; on a store that cannot roll back, a points failure
// after the settlement write is returned as a *PartialCommitError.
func (e *Engine) ConfirmReceived(ctx context.Context, callerID, settlementID string) (*Receipt, error) {
	s, err := e.store.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, storeErr("get settlement", err)
	}
	if s.ToUserID != callerID {
		return nil, fmt.Errorf("%w: only the receiver can confirm receipt", ErrForbidden)
	}
	if s.State() != models.StateModeSelected {
		return nil, fmt.Errorf("%w: settlement %s is %s", ErrInvalidStateTransition, settlementID, s.State())
	}

	paidAt := e.clock()
	earned := calculator.PointsForSettlement(s.CreatedAt, paidAt)
	var debtorPoints int
	marked := false

	err = e.store.WithTx(ctx, func(q storage.Queries) error {
		if err := q.MarkSettlementReceived(ctx, settlementID, paidAt, earned); err != nil {
			return storeErr("mark settlement received", err)
		}
		marked = true

		prev, err := q.GetUserPoints(ctx, s.FromUserID)
		if err != nil {
			return storeErr("get debtor points", err)
		}
		debtorPoints = calculator.DampedScore(prev, earned)

		if err := q.SetUserPoints(ctx, s.FromUserID, debtorPoints); err != nil {
			return storeErr("set debtor points", err)
		}
		return nil
	})
	if err != nil {
		if marked && !e.store.Transactional() {
			return nil, e.partialCommit("confirm", &PartialCommitError{
				Committed: "settlement marked received",
				Failed:    "debtor points update",
				Err:       err,
			})
		}
		if !isTranslated(err) {
			err = storeErr("confirm transaction", err)
		}
		return nil, err
	}

	s.IsPaid = true
	s.PaidAt = &paidAt
	s.PointsEarned = &earned

	slog.Info("Receipt confirmed", "settlement_id", settlementID, "points_earned", earned, "debtor_points", debtorPoints)
	if e.observer != nil {
		e.observer.ReceiptConfirmed(earned)
	}

	return &Receipt{Settlement: s, PointsEarned: earned, DebtorPoints: debtorPoints}, nil
}

func (e *Engine) partialCommit(op string, err *PartialCommitError) error {
	slog.Error("Partial commit", "op", op, "committed", err.Committed, "failed", err.Failed, "error", err.Err)
	if e.observer != nil {
		e.observer.PartialCommit(op)
	}
	return err
}

// ListSettlements returns the group's settlements. The caller must be a member.
func (e *Engine) ListSettlements(ctx context.Context, callerID, groupID string) ([]*models.Settlement, error) {
	if _, err := e.store.GetGroup(ctx, groupID); err != nil {
		return nil, storeErr("get group", err)
	}
	if _, err := e.store.GetMember(ctx, groupID, callerID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s is not a member of group %s", ErrForbidden, callerID, groupID)
		}
		return nil, storeErr("get member", err)
	}

	settlements, err := e.store.ListSettlements(ctx, groupID)
	if err != nil {
		return nil, storeErr("list settlements", err)
	}
	return settlements, nil
}

// ListPayments returns the settlements the caller has paid, latest first.
func (e *Engine) ListPayments(ctx context.Context, callerID string) ([]*models.Settlement, error) {
	payments, err := e.store.ListPayments(ctx, callerID)
	if err != nil {
		return nil, storeErr("list payments", err)
	}
	return payments, nil
}

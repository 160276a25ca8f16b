package service

import (
	"context"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/fairshare/internal/models"
	"github.com/mmynk/fairshare/internal/settlement"
	"github.com/mmynk/fairshare/internal/storage"
	"github.com/mmynk/fairshare/pkg/api"
	"github.com/mmynk/fairshare/pkg/api/apiconnect"
)

// SettlementService implements the Connect SettlementService on top of the
// settlement engine.
type SettlementService struct {
	store  storage.Store
	engine *settlement.Engine
}

var _ apiconnect.SettlementServiceHandler = (*SettlementService)(nil)

// NewSettlementService creates a new SettlementService.
func NewSettlementService(store storage.Store, engine *settlement.Engine) *SettlementService {
	return &SettlementService{store: store, engine: engine}
}

// ComputePreview returns the group's balances and the transfers that would
// settle them. Nothing is written.
func (s *SettlementService) ComputePreview(ctx context.Context, req *connect.Request[api.ComputePreviewRequest]) (*connect.Response[api.ComputePreviewResponse], error) {
	groupID := req.Msg.GroupID
	slog.Info("ComputePreview request received", "group_id", groupID)

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

	preview, err := s.engine.ComputePreview(ctx, groupID)
	if err != nil {
		slog.Error("ComputePreview failed", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}

	balances := make([]api.Balance, len(preview.Balances))
	for i, b := range preview.Balances {
		balances[i] = api.Balance{
			UserID:     b.UserID,
			Name:       b.Name,
			NetBalance: b.NetBalance,
			Paid:       b.Paid,
			Owed:       b.Owed,
		}
	}
	transfers := make([]api.Transfer, len(preview.Transfers))
	for i, t := range preview.Transfers {
		transfers[i] = api.Transfer{
			FromUserID: t.FromUserID,
			From:       t.From,
			ToUserID:   t.ToUserID,
			To:         t.To,
			Amount:     t.Amount,
		}
	}

	slog.Info("ComputePreview successful",
		"group_id", groupID,
		"members_count", len(balances),
		"transfers_count", len(transfers),
	)

	return connect.NewResponse(&api.ComputePreviewResponse{
		GroupID:     groupID,
		IsFinalized: preview.Group.IsFinalized,
		Balances:    balances,
		Transfers:   transfers,
	}), nil
}

// FinalizeGroup freezes the group and persists its settlements.
func (s *SettlementService) FinalizeGroup(ctx context.Context, req *connect.Request[api.FinalizeGroupRequest]) (*connect.Response[api.FinalizeGroupResponse], error) {
	groupID := req.Msg.GroupID
	slog.Info("FinalizeGroup request received", "group_id", groupID)

	if groupID == "" {
		return nil, invalidArgument("group_id required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	settlements, err := s.engine.FinalizeGroup(ctx, caller, groupID)
	if err != nil {
		slog.Error("FinalizeGroup failed", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.FinalizeGroupResponse{
		Settlements:  toAPISettlements(settlements),
		FullySettled: len(settlements) == 0,
	}), nil
}

// SelectPaymentMode records how the debtor will pay.
func (s *SettlementService) SelectPaymentMode(ctx context.Context, req *connect.Request[api.SelectPaymentModeRequest]) (*connect.Response[api.SelectPaymentModeResponse], error) {
	settlementID := req.Msg.SettlementID
	mode := models.PaymentMode(strings.ToLower(strings.TrimSpace(req.Msg.Mode)))
	slog.Info("SelectPaymentMode request received", "settlement_id", settlementID, "mode", mode)

	if settlementID == "" {
		return nil, invalidArgument("settlement_id required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.SelectPaymentMode(ctx, caller, settlementID, mode)
	if err != nil {
		slog.Error("SelectPaymentMode failed", "settlement_id", settlementID, "error", err)
		return nil, toConnectError(err)
	}

	resp := &api.SelectPaymentModeResponse{
		Settlement: toAPISettlement(result.Settlement),
		DeepLink:   result.DeepLink,
	}
	if result.DispatchErr != nil {
		resp.NoPaymentHandler = true
		resp.Message = settlement.Describe(result.DispatchErr)
	}

	return connect.NewResponse(resp), nil
}

// ConfirmReceived marks a settlement received and awards the debtor points.
func (s *SettlementService) ConfirmReceived(ctx context.Context, req *connect.Request[api.ConfirmReceivedRequest]) (*connect.Response[api.ConfirmReceivedResponse], error) {
	settlementID := req.Msg.SettlementID
	slog.Info("ConfirmReceived request received", "settlement_id", settlementID)

	if settlementID == "" {
		return nil, invalidArgument("settlement_id required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	receipt, err := s.engine.ConfirmReceived(ctx, caller, settlementID)
	if err != nil {
		slog.Error("ConfirmReceived failed", "settlement_id", settlementID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.ConfirmReceivedResponse{
		Settlement:   toAPISettlement(receipt.Settlement),
		PointsEarned: receipt.PointsEarned,
		DebtorPoints: receipt.DebtorPoints,
	}), nil
}

// ListSettlements lists a group's settlements, newest first.
func (s *SettlementService) ListSettlements(ctx context.Context, req *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	groupID := req.Msg.GroupID
	if groupID == "" {
		return nil, invalidArgument("group_id required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	settlements, err := s.engine.ListSettlements(ctx, caller, groupID)
	if err != nil {
		slog.Error("ListSettlements failed", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("ListSettlements successful", "group_id", groupID, "count", len(settlements))

	return connect.NewResponse(&api.ListSettlementsResponse{
		Settlements: toAPISettlements(settlements),
	}), nil
}

// ListPayments lists the settlements the caller has paid.
func (s *SettlementService) ListPayments(ctx context.Context, req *connect.Request[api.ListPaymentsRequest]) (*connect.Response[api.ListPaymentsResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	payments, err := s.engine.ListPayments(ctx, caller)
	if err != nil {
		slog.Error("ListPayments failed", "user_id", caller, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.ListPaymentsResponse{
		Payments: toAPISettlements(payments),
	}), nil
}

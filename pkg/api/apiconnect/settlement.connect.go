// Package apiconnect holds the Connect clients and handlers of the
// fairshare.v1 services.
package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/fairshare/pkg/api"
)

// SettlementServiceName is the fully-qualified name of the SettlementService service.
const SettlementServiceName = "fairshare.v1.SettlementService"

// These constants are the fully-qualified names of the RPCs defined in the
// SettlementService service.
const (
	SettlementServiceComputePreviewProcedure    = "/fairshare.v1.SettlementService/ComputePreview"
	SettlementServiceFinalizeGroupProcedure     = "/fairshare.v1.SettlementService/FinalizeGroup"
	SettlementServiceSelectPaymentModeProcedure = "/fairshare.v1.SettlementService/SelectPaymentMode"
	SettlementServiceConfirmReceivedProcedure   = "/fairshare.v1.SettlementService/ConfirmReceived"
	SettlementServiceListSettlementsProcedure   = "/fairshare.v1.SettlementService/ListSettlements"
	SettlementServiceListPaymentsProcedure      = "/fairshare.v1.SettlementService/ListPayments"
)

// SettlementServiceClient is a client for the fairshare.v1.SettlementService service.
type SettlementServiceClient interface {
	// Computes a group's net balances and the transfers that settle them. Writes nothing.
	ComputePreview(context.Context, *connect.Request[api.ComputePreviewRequest]) (*connect.Response[api.ComputePreviewResponse], error)
	// Freezes a group and creates its settlements. Admin only, once per group.
	FinalizeGroup(context.Context, *connect.Request[api.FinalizeGroupRequest]) (*connect.Response[api.FinalizeGroupResponse], error)
	// Records how the debtor will pay a settlement.
	SelectPaymentMode(context.Context, *connect.Request[api.SelectPaymentModeRequest]) (*connect.Response[api.SelectPaymentModeResponse], error)
	// Marks a settlement received and awards the debtor points. Creditor only.
	ConfirmReceived(context.Context, *connect.Request[api.ConfirmReceivedRequest]) (*connect.Response[api.ConfirmReceivedResponse], error)
	// Lists a group's settlements, newest first.
	ListSettlements(context.Context, *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error)
	// Lists the settlements the caller has paid.
	ListPayments(context.Context, *connect.Request[api.ListPaymentsRequest]) (*connect.Response[api.ListPaymentsResponse], error)
}

// NewSettlementServiceClient constructs a client for the fairshare.v1.SettlementService service.
//
// The URL supplied here should be the base URL for the Connect server
// (for example, http://api.acme.com or https://acme.com/grpc).
func NewSettlementServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SettlementServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(api.Codec)}, opts...)
	return &settlementServiceClient{
		computePreview: connect.NewClient[api.ComputePreviewRequest, api.ComputePreviewResponse](
			httpClient,
			baseURL+SettlementServiceComputePreviewProcedure,
			opts...,
		),
		finalizeGroup: connect.NewClient[api.FinalizeGroupRequest, api.FinalizeGroupResponse](
			httpClient,
			baseURL+SettlementServiceFinalizeGroupProcedure,
			opts...,
		),
		selectPaymentMode: connect.NewClient[api.SelectPaymentModeRequest, api.SelectPaymentModeResponse](
			httpClient,
			baseURL+SettlementServiceSelectPaymentModeProcedure,
			opts...,
		),
		confirmReceived: connect.NewClient[api.ConfirmReceivedRequest, api.ConfirmReceivedResponse](
			httpClient,
			baseURL+SettlementServiceConfirmReceivedProcedure,
			opts...,
		),
		listSettlements: connect.NewClient[api.ListSettlementsRequest, api.ListSettlementsResponse](
			httpClient,
			baseURL+SettlementServiceListSettlementsProcedure,
			opts...,
		),
		listPayments: connect.NewClient[api.ListPaymentsRequest, api.ListPaymentsResponse](
			httpClient,
			baseURL+SettlementServiceListPaymentsProcedure,
			opts...,
		),
	}
}

// settlementServiceClient implements SettlementServiceClient.
type settlementServiceClient struct {
	computePreview    *connect.Client[api.ComputePreviewRequest, api.ComputePreviewResponse]
	finalizeGroup     *connect.Client[api.FinalizeGroupRequest, api.FinalizeGroupResponse]
	selectPaymentMode *connect.Client[api.SelectPaymentModeRequest, api.SelectPaymentModeResponse]
	confirmReceived   *connect.Client[api.ConfirmReceivedRequest, api.ConfirmReceivedResponse]
	listSettlements   *connect.Client[api.ListSettlementsRequest, api.ListSettlementsResponse]
	listPayments      *connect.Client[api.ListPaymentsRequest, api.ListPaymentsResponse]
}

// ComputePreview calls fairshare.v1.SettlementService.ComputePreview.
func (c *settlementServiceClient) ComputePreview(ctx context.Context, req *connect.Request[api.ComputePreviewRequest]) (*connect.Response[api.ComputePreviewResponse], error) {
	return c.computePreview.CallUnary(ctx, req)
}

// FinalizeGroup calls fairshare.v1.SettlementService.FinalizeGroup.
func (c *settlementServiceClient) FinalizeGroup(ctx context.Context, req *connect.Request[api.FinalizeGroupRequest]) (*connect.Response[api.FinalizeGroupResponse], error) {
	return c.finalizeGroup.CallUnary(ctx, req)
}

// SelectPaymentMode calls fairshare.v1.SettlementService.SelectPaymentMode.
func (c *settlementServiceClient) SelectPaymentMode(ctx context.Context, req *connect.Request[api.SelectPaymentModeRequest]) (*connect.Response[api.SelectPaymentModeResponse], error) {
	return c.selectPaymentMode.CallUnary(ctx, req)
}

// ConfirmReceived calls fairshare.v1.SettlementService.ConfirmReceived.
func (c *settlementServiceClient) ConfirmReceived(ctx context.Context, req *connect.Request[api.ConfirmReceivedRequest]) (*connect.Response[api.ConfirmReceivedResponse], error) {
	return c.confirmReceived.CallUnary(ctx, req)
}

// ListSettlements calls fairshare.v1.SettlementService.ListSettlements.
func (c *settlementServiceClient) ListSettlements(ctx context.Context, req *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	return c.listSettlements.CallUnary(ctx, req)
}

// ListPayments calls fairshare.v1.SettlementService.ListPayments.
func (c *settlementServiceClient) ListPayments(ctx context.Context, req *connect.Request[api.ListPaymentsRequest]) (*connect.Response[api.ListPaymentsResponse], error) {
	return c.listPayments.CallUnary(ctx, req)
}

// SettlementServiceHandler is an implementation of the fairshare.v1.SettlementService service.
type SettlementServiceHandler interface {
	// Computes a group's net balances and the transfers that settle them. Writes nothing.
	ComputePreview(context.Context, *connect.Request[api.ComputePreviewRequest]) (*connect.Response[api.ComputePreviewResponse], error)
	// Freezes a group and creates its settlements. Admin only, once per group.
	FinalizeGroup(context.Context, *connect.Request[api.FinalizeGroupRequest]) (*connect.Response[api.FinalizeGroupResponse], error)
	// Records how the debtor will pay a settlement.
	SelectPaymentMode(context.Context, *connect.Request[api.SelectPaymentModeRequest]) (*connect.Response[api.SelectPaymentModeResponse], error)
	// Marks a settlement received and awards the debtor points. Creditor only.
	ConfirmReceived(context.Context, *connect.Request[api.ConfirmReceivedRequest]) (*connect.Response[api.ConfirmReceivedResponse], error)
	// Lists a group's settlements, newest first.
	ListSettlements(context.Context, *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error)
	// Lists the settlements the caller has paid.
	ListPayments(context.Context, *connect.Request[api.ListPaymentsRequest]) (*connect.Response[api.ListPaymentsResponse], error)
}

// NewSettlementServiceHandler builds an HTTP handler from the service implementation. It
// returns the path on which to mount the handler and the handler itself.
func NewSettlementServiceHandler(svc SettlementServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(api.Codec)}, opts...)
	computePreviewHandler := connect.NewUnaryHandler(
		SettlementServiceComputePreviewProcedure,
		svc.ComputePreview,
		opts...,
	)
	finalizeGroupHandler := connect.NewUnaryHandler(
		SettlementServiceFinalizeGroupProcedure,
		svc.FinalizeGroup,
		opts...,
	)
	selectPaymentModeHandler := connect.NewUnaryHandler(
		SettlementServiceSelectPaymentModeProcedure,
		svc.SelectPaymentMode,
		opts...,
	)
	confirmReceivedHandler := connect.NewUnaryHandler(
		SettlementServiceConfirmReceivedProcedure,
		svc.ConfirmReceived,
		opts...,
	)
	listSettlementsHandler := connect.NewUnaryHandler(
		SettlementServiceListSettlementsProcedure,
		svc.ListSettlements,
		opts...,
	)
	listPaymentsHandler := connect.NewUnaryHandler(
		SettlementServiceListPaymentsProcedure,
		svc.ListPayments,
		opts...,
	)
	return "/fairshare.v1.SettlementService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SettlementServiceComputePreviewProcedure:
			computePreviewHandler.ServeHTTP(w, r)
		case SettlementServiceFinalizeGroupProcedure:
			finalizeGroupHandler.ServeHTTP(w, r)
		case SettlementServiceSelectPaymentModeProcedure:
			selectPaymentModeHandler.ServeHTTP(w, r)
		case SettlementServiceConfirmReceivedProcedure:
			confirmReceivedHandler.ServeHTTP(w, r)
		case SettlementServiceListSettlementsProcedure:
			listSettlementsHandler.ServeHTTP(w, r)
		case SettlementServiceListPaymentsProcedure:
			listPaymentsHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

package service

import (
	"context"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/fairshare/internal/models"
	"github.com/mmynk/fairshare/internal/storage"
	"github.com/mmynk/fairshare/pkg/api"
	"github.com/mmynk/fairshare/pkg/api/apiconnect"
)

// UserService implements the Connect UserService. Accounts live with the
// identity provider; this only stores what settlement needs.
type UserService struct {
	store storage.Store
}

var _ apiconnect.UserServiceHandler = (*UserService)(nil)

// NewUserService creates a new UserService with the given storage backend.
func NewUserService(store storage.Store) *UserService {
	return &UserService{store: store}
}

// UpsertProfile stores the caller's display name and UPI id. Points are kept.
func (s *UserService) UpsertProfile(ctx context.Context, req *connect.Request[api.UpsertProfileRequest]) (*connect.Response[api.UpsertProfileResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("UpsertProfile request received", "user_id", caller)

	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, invalidArgument("name required")
	}
	upi := strings.TrimSpace(req.Msg.UPI)
	if upi != "" && !strings.Contains(upi, "@") {
		return nil, invalidArgument("UPI id %q must look like name@bank", upi)
	}

	var user *models.User
	err = s.store.WithTx(ctx, func(q storage.Queries) error {
		if err := q.UpsertUser(ctx, &models.User{ID: caller, Name: name, UPI: upi}); err != nil {
			return err
		}
		user, err = q.GetUser(ctx, caller)
		return err
	})
	if err != nil {
		slog.Error("UpsertProfile failed", "user_id", caller, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.UpsertProfileResponse{Profile: toAPIProfile(user)}), nil
}

// GetProfile returns a profile with its points. UserID defaults to the caller.
func (s *UserService) GetProfile(ctx context.Context, req *connect.Request[api.GetProfileRequest]) (*connect.Response[api.GetProfileResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	userID := req.Msg.UserID
	if userID == "" {
		userID = caller
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		slog.Error("GetProfile failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.GetProfileResponse{Profile: toAPIProfile(user)}), nil
}

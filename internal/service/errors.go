package service

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/mmynk/fairshare/internal/calculator"
	"github.com/mmynk/fairshare/internal/middleware"
	"github.com/mmynk/fairshare/internal/models"
	"github.com/mmynk/fairshare/internal/settlement"
	"github.com/mmynk/fairshare/internal/storage"
)

// userError carries the message shown to the caller while keeping the
// original error in the chain for server-side logging and matching.
type userError struct {
	msg string
	err error
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Unwrap() error { return e.err }

// toConnectError maps engine and storage errors to Connect codes. Errors
// matching no sentinel come from the store, so they map to Unavailable.
func toConnectError(err error) *connect.Error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	code := connect.CodeUnavailable
	msg := settlement.Describe(settlement.ErrStoreUnavailable)

	switch {
	case errors.Is(err, settlement.ErrPartialCommit):
		code = connect.CodeDataLoss
		msg = settlement.Describe(err)
	case errors.Is(err, settlement.ErrValidation), errors.Is(err, calculator.ErrInvalidSplit):
		code = connect.CodeInvalidArgument
		msg = err.Error()
	case errors.Is(err, settlement.ErrMissingPayeeIdentifier),
		errors.Is(err, settlement.ErrInvalidStateTransition):
		code = connect.CodeFailedPrecondition
		msg = settlement.Describe(err)
	case errors.Is(err, storage.ErrGroupFinalized):
		code = connect.CodeFailedPrecondition
		msg = "This group is finalized and its expenses are frozen. Nothing was changed."
	case errors.Is(err, settlement.ErrAlreadyFinalized), errors.Is(err, storage.ErrAlreadyFinalized):
		code = connect.CodeAlreadyExists
		msg = settlement.Describe(settlement.ErrAlreadyFinalized)
	case errors.Is(err, storage.ErrDuplicate):
		code = connect.CodeAlreadyExists
		msg = "That record already exists. Nothing was changed."
	case errors.Is(err, settlement.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		code = connect.CodeNotFound
		msg = settlement.Describe(settlement.ErrNotFound)
	case errors.Is(err, settlement.ErrForbidden):
		code = connect.CodePermissionDenied
		msg = settlement.Describe(err)
	}

	return connect.NewError(code, &userError{msg: msg, err: err})
}

func invalidArgument(format string, args ...any) *connect.Error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf(format, args...))
}

func permissionDenied(format string, args ...any) *connect.Error {
	return connect.NewError(connect.CodePermissionDenied, fmt.Errorf(format, args...))
}

// callerID returns the authenticated user, or Unauthenticated when the
// handler was mounted without the auth interceptor.
func callerID(ctx context.Context) (string, error) {
	id := middleware.GetUserID(ctx)
	if id == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, errors.New("authentication required"))
	}
	return id, nil
}

// requireMember fails with PermissionDenied when userID is not in the group,
// and NotFound when the group does not exist.
func requireMember(ctx context.Context, q storage.Queries, groupID, userID string) (*models.Member, error) {
	if _, err := q.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	member, err := q.GetMember(ctx, groupID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, permissionDenied("not a member of group %s", groupID)
	}
	if err != nil {
		return nil, err
	}
	return member, nil
}

package service

import (
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/fairshare/internal/settlement"
	"github.com/mmynk/fairshare/internal/storage"
	"github.com/mmynk/fairshare/pkg/api"
)

func TestUpsertProfile(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.as(t, "alice", "Alice")
	ctx := context.Background()

	resp, err := alice.users.UpsertProfile(ctx, connect.NewRequest(&api.UpsertProfileRequest{
		Name: "Alice",
		UPI:  "alice@okbank",
	}))
	if err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	want := api.Profile{UserID: "alice", Name: "Alice", UPI: "alice@okbank"}
	if resp.Msg.Profile != want {
		t.Errorf("expected %+v, got %+v", want, resp.Msg.Profile)
	}

	if err := ts.store.SetUserPoints(ctx, "alice", 7); err != nil {
		t.Fatalf("SetUserPoints failed: %v", err)
	}

	// Unlinking UPI keeps points.
	resp, err = alice.users.UpsertProfile(ctx, connect.NewRequest(&api.UpsertProfileRequest{Name: "Alice K"}))
	if err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	want = api.Profile{UserID: "alice", Name: "Alice K", Points: 7}
	if resp.Msg.Profile != want {
		t.Errorf("expected %+v, got %+v", want, resp.Msg.Profile)
	}

	tests := []struct {
		name string
		req  *api.UpsertProfileRequest
	}{
		{"empty name", &api.UpsertProfileRequest{Name: ""}},
		{"malformed UPI", &api.UpsertProfileRequest{Name: "Alice", UPI: "not-an-address"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := alice.users.UpsertProfile(ctx, connect.NewRequest(tt.req))
			assertCode(t, err, connect.CodeInvalidArgument)
		})
	}
}

func TestGetProfile(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.registerUser(t, "alice", "Alice", "alice@okbank")
	bob := ts.registerUser(t, "bob", "Bob", "")
	ctx := context.Background()

	resp, err := bob.users.GetProfile(ctx, connect.NewRequest(&api.GetProfileRequest{UserID: "alice"}))
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if resp.Msg.Profile.Name != "Alice" || resp.Msg.Profile.UPI != "alice@okbank" {
		t.Errorf("unexpected profile: %+v", resp.Msg.Profile)
	}

	self, err := alice.users.GetProfile(ctx, connect.NewRequest(&api.GetProfileRequest{}))
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if self.Msg.Profile.UserID != "alice" {
		t.Errorf("expected the caller's profile, got %+v", self.Msg.Profile)
	}

	_, err = alice.users.GetProfile(ctx, connect.NewRequest(&api.GetProfileRequest{UserID: "ghost"}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestToConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want connect.Code
	}{
		{"validation", settlement.ErrValidation, connect.CodeInvalidArgument},
		{"missing payee", settlement.ErrMissingPayeeIdentifier, connect.CodeFailedPrecondition},
		{"invalid transition", settlement.ErrInvalidStateTransition, connect.CodeFailedPrecondition},
		{"group finalized", storage.ErrGroupFinalized, connect.CodeFailedPrecondition},
		{"already finalized", settlement.ErrAlreadyFinalized, connect.CodeAlreadyExists},
		{"duplicate", storage.ErrDuplicate, connect.CodeAlreadyExists},
		{"not found", storage.ErrNotFound, connect.CodeNotFound},
		{"forbidden", settlement.ErrForbidden, connect.CodePermissionDenied},
		{"store unavailable", settlement.ErrStoreUnavailable, connect.CodeUnavailable},
		{"raw store failure", errors.New("database is locked"), connect.CodeUnavailable},
		{"partial commit", &settlement.PartialCommitError{
			Committed: "settlement marked received",
			Failed:    "debtor points update",
			Err:       settlement.ErrStoreUnavailable,
		}, connect.CodeDataLoss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toConnectError(tt.err)
			if got.Code() != tt.want {
				t.Errorf("code: expected %v, got %v", tt.want, got.Code())
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("expected %v to stay in the chain", tt.err)
			}
			if got.Message() == "" {
				t.Error("expected a user-visible message")
			}
		})
	}
}

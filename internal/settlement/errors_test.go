package settlement

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mmynk/fairshare/internal/storage"
)

func TestStoreErr(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{storage.ErrNotFound, ErrNotFound},
		{storage.ErrAlreadyFinalized, ErrAlreadyFinalized},
		{storage.ErrConflict, ErrInvalidStateTransition},
		{storage.ErrDuplicate, ErrValidation},
		{errors.New("connection refused"), ErrStoreUnavailable},
	}

	for _, tt := range tests {
		err := storeErr("op", fmt.Errorf("wrapped: %w", tt.in))
		if !errors.Is(err, tt.want) {
			t.Errorf("storeErr(%v) = %v, want %v", tt.in, err, tt.want)
		}
		if !errors.Is(err, tt.in) {
			t.Errorf("storeErr(%v) lost the original error", tt.in)
		}
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"partial commit", &PartialCommitError{Committed: "settlement marked received", Failed: "debtor points update", Err: errors.New("x")}, "Settlement marked received, but debtor points update failed"},
		{"missing payee", fmt.Errorf("%w: user a", ErrMissingPayeeIdentifier), "Nothing was changed"},
		{"no handler", ErrNoPaymentHandler, "Payment mode saved"},
		{"invalid transition", ErrInvalidStateTransition, "Nothing was changed"},
		{"already finalized", ErrAlreadyFinalized, "already finalized"},
		{"store", storeErr("get", errors.New("timeout")), "Nothing was saved"},
		{"forbidden", ErrForbidden, "not allowed"},
		{"unknown", errors.New("mystery"), "Something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Describe(tt.err)
			if tt.want == "" {
				if got != "" {
					t.Errorf("Describe(nil) = %q, want empty", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("Describe() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestPartialCommitErrorMatching(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("confirm: %w", &PartialCommitError{Committed: "a", Failed: "b", Err: cause})

	if !errors.Is(err, ErrPartialCommit) {
		t.Error("expected ErrPartialCommit")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause in chain")
	}
	if errors.Is(err, ErrStoreUnavailable) {
		t.Error("unexpected ErrStoreUnavailable")
	}
}

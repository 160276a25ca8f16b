package settlement

import (
	"errors"
	"fmt"

	"github.com/mmynk/fairshare/internal/storage"
)

var (
	// ErrValidation reports malformed input. Nothing was changed.
	ErrValidation = errors.New("validation failed")

	// ErrMissingPayeeIdentifier reports a UPI payment to a creditor with no UPI id.
	ErrMissingPayeeIdentifier = errors.New("payee has no UPI identifier")

	// ErrNoPaymentHandler reports that the payment link could not be opened.
	// The payment mode is saved regardless.
	ErrNoPaymentHandler = errors.New("no handler for payment link")

	// ErrInvalidStateTransition reports a lifecycle move the settlement's state forbids.
	ErrInvalidStateTransition = errors.New("invalid settlement state transition")

	// ErrAlreadyFinalized reports a second finalize of the same group.
	ErrAlreadyFinalized = errors.New("group already finalized")

	// ErrStoreUnavailable wraps any failing store call.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrPartialCommit is matched by *PartialCommitError.
	ErrPartialCommit = errors.New("partial commit")

	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// PartialCommitError reports that one write of a required pair was applied and
// the other was not. It only arises on stores without rollback.
type PartialCommitError struct {
	Committed string
	Failed    string
	Err       error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("partial commit: %s, but %s failed: %v", e.Committed, e.Failed, e.Err)
}

func (e *PartialCommitError) Unwrap() error {
	return e.Err
}

func (e *PartialCommitError) Is(target error) bool {
	return target == ErrPartialCommit
}

// storeErr translates a storage error into this package's sentinels, keeping
// the original in the chain.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %s: %w", ErrNotFound, op, err)
	case errors.Is(err, storage.ErrAlreadyFinalized):
		return fmt.Errorf("%w: %s: %w", ErrAlreadyFinalized, op, err)
	case errors.Is(err, storage.ErrConflict):
		return fmt.Errorf("%w: %s: %w", ErrInvalidStateTransition, op, err)
	case errors.Is(err, storage.ErrDuplicate):
		return fmt.Errorf("%w: %s: %w", ErrValidation, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
	}
}

// isTranslated reports whether err already carries one of this package's
// sentinels, so a WithTx error is not translated twice.
func isTranslated(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrMissingPayeeIdentifier, ErrInvalidStateTransition,
		ErrAlreadyFinalized, ErrStoreUnavailable, ErrPartialCommit, ErrNotFound, ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Describe returns the message shown to the user for err, stating whether any
// state was modified.
func Describe(err error) string {
	var partial *PartialCommitError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &partial):
		return fmt.Sprintf("%s, but %s failed. Contact support to reconcile.", capitalize(partial.Committed), partial.Failed)
	case errors.Is(err, ErrMissingPayeeIdentifier):
		return "The receiver has not linked a UPI ID. Nothing was changed; pick cash or ask them to add one."
	case errors.Is(err, ErrNoPaymentHandler):
		return "Payment mode saved, but no UPI app could open the payment link."
	case errors.Is(err, ErrInvalidStateTransition):
		return "This settlement cannot make that move from its current state. Nothing was changed."
	case errors.Is(err, ErrAlreadyFinalized):
		return "This group is already finalized. Nothing was changed."
	case errors.Is(err, ErrValidation):
		return "The request was invalid. Nothing was changed."
	case errors.Is(err, ErrNotFound):
		return "The requested record does not exist. Nothing was changed."
	case errors.Is(err, ErrForbidden):
		return "You are not allowed to do that. Nothing was changed."
	case errors.Is(err, ErrStoreUnavailable):
		return "The data store could not be reached. Nothing was saved; try again."
	default:
		return "Something went wrong. Nothing was saved."
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

package settlement

import (
	"errors"
	"fmt"
)

var (
	ErrNoVerdict            = errors.New("match has no verdict")
	ErrMatchNotFound        = errors.New("match not found in index")
	ErrMissingAddress       = errors.New("winner address unknown")
	ErrVerdictMismatch      = errors.New("verdict differs from completed record")
	ErrSettlementInProgress = errors.New("settlement already in progress")
	ErrSettlementFailed     = errors.New("settlement failed")
	ErrExternalStateFetch   = errors.New("external state fetch failed")
	ErrLockHeld             = errors.New("lock held by another owner")

	// ErrPayoutUnconfirmed means a payout was started but never recorded as
	// paid. It is not retried automatically; the escrow must be checked first.
	ErrPayoutUnconfirmed = errors.New("payout started but not confirmed")
)

// SettlementFailedError is returned when the payout could not be completed.
// The match stays retryable.
type SettlementFailedError struct {
	MatchID int64
	Stage   string
	Err     error
}

func (e *SettlementFailedError) Error() string {
	return fmt.Sprintf("settlement of match %d failed at %s: %v", e.MatchID, e.Stage, e.Err)
}

func (e *SettlementFailedError) Unwrap() []error {
	return []error{ErrSettlementFailed, e.Err}
}

// Retryable reports whether re-invoking Settle later may succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrSettlementFailed) ||
		errors.Is(err, ErrExternalStateFetch) ||
		errors.Is(err, ErrSettlementInProgress)
}

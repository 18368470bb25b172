package quota

import "errors"

var (
	// ErrInsufficientCredits indicates the balance is zero; nothing was
	// spent.
	ErrInsufficientCredits = errors.New("quota.insufficient_credits")

	// ErrNegativeBalance indicates a corrective grant would push the
	// balance below zero; nothing was changed.
	ErrNegativeBalance = errors.New("quota.negative_balance")

	// ErrLedgerUnavailable wraps infrastructure-level failures. A
	// consume wrapped in it must be treated as not-spent by callers.
	ErrLedgerUnavailable = errors.New("quota.ledger_unavailable")
)

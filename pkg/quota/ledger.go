package quota

import (
	"context"
	"time"
)

// Record is the persisted per-user ledger document.
type Record struct {
	UserID    int64     `json:"user_id" bson:"_id"`
	Credits   int64     `json:"credits" bson:"credits"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Status is the read-side view of a user's balance.
type Status struct {
	Credits int64 `json:"credits"`
	CanUse  bool  `json:"can_use"`
}

// Ledger is a per-user credit counter with atomic mutations.
//
// Consume and Grant must be linearizable with respect to each other on
// the same user id: no two concurrent consumers may both observe and
// decrement from the same starting balance. EnsureInitialized must be
// race-free under concurrent first access, with exactly one writer
// granting the initial allotment.
//
// Error contract: insufficient balance is ErrInsufficientCredits, an
// impossible negative result is ErrNegativeBalance, and any
// infrastructure failure wraps ErrLedgerUnavailable. A consume that
// returns an error did not spend a credit.
type Ledger interface {
	// EnsureInitialized creates the record with the initial grant if it
	// does not exist yet. Losers of a concurrent first-access race
	// observe the winner's record instead of overwriting it.
	EnsureInitialized(ctx context.Context, userID int64) error

	// Consume atomically decrements the balance by one. It fails with
	// ErrInsufficientCredits when the balance is zero, initializing an
	// absent record first.
	Consume(ctx context.Context, userID int64) error

	// Grant atomically adds amount to the balance. Negative amounts are
	// a corrective admin facility and never push the balance below
	// zero.
	Grant(ctx context.Context, userID int64, amount int64) error

	// Status reads the current balance, initializing an absent record.
	Status(ctx context.Context, userID int64) (Status, error)

	// Erase deletes the ledger record. This is the only deletion path;
	// logout never calls it.
	Erase(ctx context.Context, userID int64) error
}

package quota

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/devscout/pkg/pg"
)

// PGLedger implements Ledger on PostgreSQL. Every mutation is a single
// conditional statement, so row-level locking serializes concurrent
// consumers without explicit transactions. The credits table is created
// by the goose migrations under migrations/.
type PGLedger struct {
	pool *pgxpool.Pool
	plan Plan
}

// NewPGLedger creates a ledger on the given connection pool.
func NewPGLedger(pool *pgxpool.Pool, plan Plan) *PGLedger {
	return &PGLedger{pool: pool, plan: plan}
}

func (p *PGLedger) EnsureInitialized(ctx context.Context, userID int64) error {
	// ON CONFLICT DO NOTHING makes first-access races idempotent: one
	// insert wins, the rest observe its row.
	_, err := p.pool.Exec(ctx,
		`INSERT INTO credits (user_id, credits) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, p.plan.InitialCredits,
	)
	if err != nil {
		// A lost first-access race surfaces as success either way.
		if pg.IsDuplicateKeyError(err) {
			return nil
		}
		return errors.Join(ErrLedgerUnavailable, err)
	}
	return nil
}

func (p *PGLedger) Consume(ctx context.Context, userID int64) error {
	spent, err := p.decrement(ctx, userID)
	if err != nil {
		return err
	}
	if spent {
		return nil
	}

	// Absent record or zero balance; initialize and retry once.
	if err := p.EnsureInitialized(ctx, userID); err != nil {
		return err
	}

	spent, err = p.decrement(ctx, userID)
	if err != nil {
		return err
	}
	if !spent {
		return ErrInsufficientCredits
	}
	return nil
}

func (p *PGLedger) decrement(ctx context.Context, userID int64) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE credits
		 SET credits = credits - 1, updated_at = now()
		 WHERE user_id = $1 AND credits > 0`,
		userID,
	)
	if err != nil {
		return false, errors.Join(ErrLedgerUnavailable, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *PGLedger) Grant(ctx context.Context, userID int64, amount int64) error {
	if err := p.EnsureInitialized(ctx, userID); err != nil {
		return err
	}

	tag, err := p.pool.Exec(ctx,
		`UPDATE credits
		 SET credits = credits + $2, updated_at = now()
		 WHERE user_id = $1 AND credits + $2 >= 0`,
		userID, amount,
	)
	if err != nil {
		return errors.Join(ErrLedgerUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNegativeBalance
	}
	return nil
}

func (p *PGLedger) Status(ctx context.Context, userID int64) (Status, error) {
	var credits int64
	err := p.pool.QueryRow(ctx,
		`SELECT credits FROM credits WHERE user_id = $1`, userID,
	).Scan(&credits)
	if err != nil {
		if !pg.IsNotFoundError(err) {
			return Status{}, errors.Join(ErrLedgerUnavailable, err)
		}

		if err := p.EnsureInitialized(ctx, userID); err != nil {
			return Status{}, err
		}

		err = p.pool.QueryRow(ctx,
			`SELECT credits FROM credits WHERE user_id = $1`, userID,
		).Scan(&credits)
		if err != nil {
			return Status{}, errors.Join(ErrLedgerUnavailable, err)
		}
	}

	return Status{Credits: credits, CanUse: credits > 0}, nil
}

func (p *PGLedger) Erase(ctx context.Context, userID int64) error {
	if _, err := p.pool.Exec(ctx,
		`DELETE FROM credits WHERE user_id = $1`, userID,
	); err != nil {
		return errors.Join(ErrLedgerUnavailable, err)
	}
	return nil
}

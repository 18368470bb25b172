package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger implements Ledger with an in-process map guarded by a
// mutex, which makes every operation trivially linearizable. It is the
// development and test backend.
type MemoryLedger struct {
	mu      sync.Mutex
	plan    Plan
	records map[int64]*Record
}

// NewMemoryLedger creates an in-memory ledger granting plan's initial
// credits on first access.
func NewMemoryLedger(plan Plan) *MemoryLedger {
	return &MemoryLedger{
		plan:    plan,
		records: make(map[int64]*Record),
	}
}

// init creates the record if absent. Caller must hold the mutex.
func (m *MemoryLedger) init(userID int64) *Record {
	if rec, ok := m.records[userID]; ok {
		return rec
	}

	now := time.Now().UTC()
	rec := &Record{
		UserID:    userID,
		Credits:   m.plan.InitialCredits,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.records[userID] = rec
	return rec
}

func (m *MemoryLedger) EnsureInitialized(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.init(userID)
	return nil
}

func (m *MemoryLedger) Consume(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.init(userID)
	if rec.Credits <= 0 {
		return ErrInsufficientCredits
	}

	rec.Credits--
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryLedger) Grant(ctx context.Context, userID int64, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.init(userID)
	if rec.Credits+amount < 0 {
		return ErrNegativeBalance
	}

	rec.Credits += amount
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryLedger) Status(ctx context.Context, userID int64) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.init(userID)
	return Status{Credits: rec.Credits, CanUse: rec.Credits > 0}, nil
}

func (m *MemoryLedger) Erase(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, userID)
	return nil
}

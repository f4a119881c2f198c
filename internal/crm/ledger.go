package crm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger remembers successful submissions by idempotency key.
type Ledger interface {
	AlreadySubmitted(ctx context.Context, key string) (bool, error)
	// MarkSubmitted records key, returning false when it was already present.
	MarkSubmitted(ctx context.Context, key, sessionID string) (bool, error)
}

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu   sync.RWMutex
	keys map[string]string
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{keys: make(map[string]string)}
}

func (l *MemoryLedger) AlreadySubmitted(_ context.Context, key string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.keys[key]
	return ok, nil
}

func (l *MemoryLedger) MarkSubmitted(_ context.Context, key, sessionID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.keys[key]; ok {
		return false, nil
	}
	l.keys[key] = sessionID
	return true, nil
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresLedger stores submission keys in crm_submissions.
type PostgresLedger struct {
	pool rowQuerier
}

// NewPostgresLedger creates a ledger on the given pool.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	if pool == nil {
		panic("crm: pgx pool required")
	}
	return &PostgresLedger{pool: pool}
}

func newPostgresLedgerWithExec(exec rowQuerier) *PostgresLedger {
	if exec == nil {
		panic("crm: exec required")
	}
	return &PostgresLedger{pool: exec}
}

func (l *PostgresLedger) AlreadySubmitted(ctx context.Context, key string) (bool, error) {
	query := `SELECT 1 FROM crm_submissions WHERE idempotency_key = $1`
	var exists int
	if err := l.pool.QueryRow(ctx, query, key).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("crm: check submission: %w", err)
	}
	return true, nil
}

func (l *PostgresLedger) MarkSubmitted(ctx context.Context, key, sessionID string) (bool, error) {
	query := `
		INSERT INTO crm_submissions (idempotency_key, session_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := l.pool.Exec(ctx, query, key, sessionID)
	if err != nil {
		return false, fmt.Errorf("crm: mark submission: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

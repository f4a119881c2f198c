package crm

import (
	"context"
	"testing"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestPostgresLedger(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	ledger := newPostgresLedgerWithExec(mock)
	ctx := context.Background()

	mock.ExpectQuery("SELECT 1 FROM crm_submissions").WithArgs("s-1:hash").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	seen, err := ledger.AlreadySubmitted(ctx, "s-1:hash")
	if err != nil || !seen {
		t.Fatalf("expected existing row, got seen=%v err=%v", seen, err)
	}

	mock.ExpectQuery("SELECT 1 FROM crm_submissions").WithArgs("s-1:other").WillReturnError(pgx.ErrNoRows)
	seen, err = ledger.AlreadySubmitted(ctx, "s-1:other")
	if err != nil || seen {
		t.Fatalf("expected missing row, got seen=%v err=%v", seen, err)
	}

	mock.ExpectExec("INSERT INTO crm_submissions").WithArgs("s-1:other", "s-1").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	inserted, err := ledger.MarkSubmitted(ctx, "s-1:other", "s-1")
	if err != nil || !inserted {
		t.Fatalf("expected insert, got %v %v", inserted, err)
	}

	mock.ExpectExec("INSERT INTO crm_submissions").WithArgs("s-1:other", "s-1").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	inserted, err = ledger.MarkSubmitted(ctx, "s-1:other", "s-1")
	if err != nil || inserted {
		t.Fatalf("expected conflict no-op, got %v %v", inserted, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	if seen, _ := l.AlreadySubmitted(ctx, "k"); seen {
		t.Fatalf("empty ledger reported key")
	}
	if ok, _ := l.MarkSubmitted(ctx, "k", "s"); !ok {
		t.Fatalf("first mark should insert")
	}
	if ok, _ := l.MarkSubmitted(ctx, "k", "s"); ok {
		t.Fatalf("second mark should be a no-op")
	}
	if seen, _ := l.AlreadySubmitted(ctx, "k"); !seen {
		t.Fatalf("expected key to be recorded")
	}
}

package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/gotp/internal/audit/entity"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gotp/internal/pkg/valueobject"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("gotp"),
		tcpostgres.WithUsername("gotp"),
		tcpostgres.WithPassword("gotp"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres dsn: %v", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	db := NewDB(pool, instrument.NewNoop())
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestDB_Entries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := range 3 {
		err := db.CreateEntry(ctx, entity.AuditEntry{
			ID:             int64(i + 1),
			UserID:         42,
			FactorConfigID: 7,
			Event:          entity.EventFactorChallengeIssued,
			Data:           valueobject.JSONMap{"challenge_key": int64(1000 + i)},
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	if err := db.CreateEntry(ctx, entity.AuditEntry{ID: 9, UserID: 43, FactorConfigID: 8, Event: entity.EventFactorEnrolled, CreatedAt: base}); err != nil {
		t.Fatalf("create foreign: %v", err)
	}

	items, err := db.ListEntries(ctx, 42, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].ID != 3 || items[1].ID != 2 {
		t.Fatalf("unexpected page %+v", items)
	}
	if items[0].Data.GetInt64("challenge_key") != 1002 || items[0].Event != entity.EventFactorChallengeIssued {
		t.Fatalf("unexpected entry %+v", items[0])
	}

	items, err = db.ListEntries(ctx, 42, 2, 2)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(items) != 1 || items[0].ID != 1 {
		t.Fatalf("unexpected page 2 %+v", items)
	}

	err = db.CreateEntry(ctx, entity.AuditEntry{ID: 1, UserID: 42, FactorConfigID: 7, Event: entity.EventFactorEnrolled, CreatedAt: base})
	if !errors.Is(err, goerror.ErrConflict) {
		t.Fatalf("duplicate id: %v", err)
	}
}

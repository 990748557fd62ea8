package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/gotp/internal/factor/entity"
	"github.com/shandysiswandi/gotp/internal/factor/usecase"
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

func seedFactorConfig(t *testing.T, db *DB, id, userID int64) entity.FactorConfig {
	t.Helper()

	cfg := entity.FactorConfig{
		ID:               id,
		UserID:           userID,
		Kind:             entity.FactorKindTOTP,
		Name:             "phone",
		SecretCiphertext: []byte{1, 0, 9, 9, 9},
		KeyVersion:       1,
		CreatedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := db.CreateFactorConfig(context.Background(), cfg); err != nil {
		t.Fatalf("create factor config: %v", err)
	}
	return cfg
}

func TestDB_FactorConfigs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	want := seedFactorConfig(t, db, 10, 42)
	seedFactorConfig(t, db, 11, 42)
	seedFactorConfig(t, db, 12, 43)

	got, err := db.GetFactorConfig(ctx, 10, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Kind != want.Kind || got.Name != want.Name || string(got.SecretCiphertext) != string(want.SecretCiphertext) || !got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	if _, err := db.GetFactorConfig(ctx, 10, 43); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("foreign user get: %v", err)
	}

	list, err := db.ListFactorConfigs(ctx, 42)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != 10 || list[1].ID != 11 {
		t.Fatalf("unexpected list %+v", list)
	}

	if err := db.CreateFactorConfig(ctx, want); !errors.Is(err, goerror.ErrConflict) {
		t.Fatalf("duplicate create: %v", err)
	}
}

func TestDB_EnrollmentTokens(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)

	tok := entity.EnrollmentToken{
		ID:         1,
		ResourceID: 42,
		TokenType:  entity.TokenTypeTOTPKey,
		CodeHash:   "abc",
		ExpiresAt:  now.Add(time.Hour),
		CreatedAt:  now,
	}
	if err := db.SaveEnrollmentToken(ctx, tok); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := db.FindEnrollmentToken(ctx, 42, entity.TokenTypeTOTPKey, "abc", now); err != nil {
		t.Fatalf("find live token: %v", err)
	}
	if _, err := db.FindEnrollmentToken(ctx, 42, entity.TokenTypeTOTPKey, "abc", now.Add(time.Hour)); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("find expired token: %v", err)
	}
	if _, err := db.FindEnrollmentToken(ctx, 43, entity.TokenTypeTOTPKey, "abc", now); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("find foreign token: %v", err)
	}

	if err := db.DeleteEnrollmentTokens(ctx, 42, entity.TokenTypeTOTPKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.FindEnrollmentToken(ctx, 42, entity.TokenTypeTOTPKey, "abc", now); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("find deleted token: %v", err)
	}
}

func TestDB_Ledger(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedFactorConfig(t, db, 10, 42)

	now := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	ch := entity.Challenge{
		ID:             100,
		FactorConfigID: 10,
		UserID:         42,
		ChallengeKey:   1000,
		SessionID:      "sess-a",
		WorkflowKey:    "login",
		TTLExpiresAt:   now.Add(90 * time.Second),
		Properties:     valueobject.JSONMap{},
		CreatedAt:      now,
	}

	err := db.Atomic(ctx, 10, func(ctx context.Context, tx usecase.LedgerTx) error {
		return tx.SaveChallenge(ctx, ch)
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	err = db.Atomic(ctx, 10, func(ctx context.Context, tx usecase.LedgerTx) error {
		live, err := tx.LiveChallenges(ctx, 10, now.Add(time.Second))
		if err != nil {
			return err
		}
		if len(live) != 1 || live[0].ChallengeKey != 1000 || !live[0].ResponseExpiresAt.IsZero() {
			t.Fatalf("unexpected live challenges %+v", live)
		}

		c := live[0]
		c.Answered = true
		c.ResponseTokenHash = "deadbeef"
		c.ResponseExpiresAt = now.Add(time.Minute)
		c.Properties.Set(entity.PropertyTimestep, int64(1001))
		return tx.UpdateChallenge(ctx, c)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = db.Atomic(ctx, 10, func(ctx context.Context, tx usecase.LedgerTx) error {
		live, err := tx.LiveChallenges(ctx, 10, now.Add(time.Second))
		if err != nil {
			return err
		}
		c := live[0]
		if !c.Answered || c.ResponseTokenHash != "deadbeef" || !c.ResponseExpiresAt.Equal(now.Add(time.Minute)) {
			t.Fatalf("update not persisted: %+v", c)
		}
		if c.Properties.GetInt64(entity.PropertyTimestep) != 1001 {
			t.Fatalf("properties %+v", c.Properties)
		}

		expired, err := tx.LiveChallenges(ctx, 10, now.Add(90*time.Second))
		if err != nil {
			return err
		}
		if len(expired) != 0 {
			t.Fatalf("expired challenge still live: %+v", expired)
		}

		missing := c
		missing.ID = 999
		if err := tx.UpdateChallenge(ctx, missing); !errors.Is(err, goerror.ErrNotFound) {
			t.Fatalf("update missing: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
}

func TestDB_LedgerRollback(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedFactorConfig(t, db, 10, 42)

	now := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	err := db.Atomic(ctx, 10, func(ctx context.Context, tx usecase.LedgerTx) error {
		if err := tx.SaveChallenge(ctx, entity.Challenge{
			ID: 100, FactorConfigID: 10, UserID: 42, ChallengeKey: 1000,
			SessionID: "s", WorkflowKey: "login", TTLExpiresAt: now.Add(90 * time.Second), CreatedAt: now,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}

	err = db.Atomic(ctx, 10, func(ctx context.Context, tx usecase.LedgerTx) error {
		live, err := tx.LiveChallenges(ctx, 10, now)
		if err != nil {
			return err
		}
		if len(live) != 0 {
			t.Fatalf("rolled back challenge visible: %+v", live)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
}

func TestDB_LedgerSerializes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for range 5 {
		wg.Go(func() {
			err := db.Atomic(ctx, 10, func(ctx context.Context, _ usecase.LedgerTx) error {
				mu.Lock()
				inside++
				maxSeen = max(maxSeen, inside)
				mu.Unlock()

				time.Sleep(20 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("atomic: %v", err)
			}
		})
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("%d callers held the ledger at once", maxSeen)
	}
}

package factor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/gotp/internal/factor/inbound"
	"github.com/shandysiswandi/gotp/internal/factor/outbound/cache"
	"github.com/shandysiswandi/gotp/internal/factor/outbound/db"
	"github.com/shandysiswandi/gotp/internal/factor/outbound/memory"
	"github.com/shandysiswandi/gotp/internal/factor/outbound/mq"
	"github.com/shandysiswandi/gotp/internal/factor/usecase"
	"github.com/shandysiswandi/gotp/internal/pkg/clock"
	"github.com/shandysiswandi/gotp/internal/pkg/config"
	"github.com/shandysiswandi/gotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/gotp/internal/pkg/hash"
	"github.com/shandysiswandi/gotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gotp/internal/pkg/lock"
	"github.com/shandysiswandi/gotp/internal/pkg/messaging"
	"github.com/shandysiswandi/gotp/internal/pkg/otp"
	"github.com/shandysiswandi/gotp/internal/pkg/router"
	"github.com/shandysiswandi/gotp/internal/pkg/secretbox"
	"github.com/shandysiswandi/gotp/internal/pkg/uid"
	"github.com/shandysiswandi/gotp/internal/pkg/validator"
)

// Ledger drivers selectable with modules.factor.ledger_driver.
const (
	LedgerDriverPostgres = "postgres"
	LedgerDriverRedis    = "redis"
	LedgerDriverMemory   = "memory"
)

var (
	errUnknownLedgerDriver = errors.New("factor: unknown ledger driver")
	errMissingDBConn       = errors.New("factor: database connection is required")
	errMissingCacheConn    = errors.New("factor: redis connection is required")
)

type Dependency struct {
	Ctx          context.Context
	DBConn       *pgxpool.Pool
	CacheConn    *redis.Client
	Goroutine    *goroutine.Manager         `validate:"required"`
	Router       *router.Router             `validate:"required"`
	Messaging    messaging.Messaging        `validate:"required"`
	Config       config.Config              `validate:"required"`
	Instrument   instrument.Instrumentation `validate:"required"`
	UID          uid.NumberID               `validate:"required"`
	Token        uid.StringID               `validate:"required"`
	SyncHash     hash.Hash                  `validate:"required"`
	ResponseHash hash.Hash                  `validate:"required"`
	Encryptor    secretbox.Encryptor        `validate:"required"`
	KeyGenerator otp.KeyGenerator           `validate:"required"`
	Clock        clock.Clocker              `validate:"required"`
	Validator    validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	driver := dep.Config.GetString("modules.factor.ledger_driver")
	if driver == "" {
		driver = LedgerDriverPostgres
	}

	ucDep := usecase.Dependency{
		RepoMessaging: mq.NewMessaging(dep.Messaging, dep.Instrument),
		Validator:     dep.Validator,
		Config:        dep.Config,
		SyncHash:      dep.SyncHash,
		ResponseHash:  dep.ResponseHash,
		Encryptor:     dep.Encryptor,
		KeyGenerator:  dep.KeyGenerator,
		UID:           dep.UID,
		Token:         dep.Token,
		Clock:         dep.Clock,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
	}

	switch driver {
	case LedgerDriverMemory:
		store := memory.New()
		ucDep.RepoDB = store
		ucDep.RepoToken = store
		ucDep.Ledger = store

	case LedgerDriverPostgres, LedgerDriverRedis:
		if dep.DBConn == nil {
			return errMissingDBConn
		}

		dbFactor := db.NewDB(dep.DBConn, dep.Instrument)
		if dep.Config.GetBool("database.auto_migrate") {
			ctx := dep.Ctx
			if ctx == nil {
				ctx = context.Background()
			}
			if err := dbFactor.Migrate(ctx); err != nil {
				return fmt.Errorf("factor: migrate: %w", err)
			}
		}

		ucDep.RepoDB = dbFactor
		ucDep.RepoToken = dbFactor
		ucDep.Ledger = dbFactor

		if driver == LedgerDriverRedis {
			if dep.CacheConn == nil {
				return errMissingCacheConn
			}

			cacheFactor := cache.NewCache(dep.CacheConn, lock.NewRedis(dep.CacheConn), dep.Instrument)
			ucDep.RepoToken = cacheFactor
			ucDep.Ledger = cacheFactor
		}

	default:
		return fmt.Errorf("%w: %q", errUnknownLedgerDriver, driver)
	}

	slog.Info("factor module ledger driver selected", "driver", driver)

	uc := usecase.New(ucDep)
	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}

package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/gotp/internal/audit/inbound"
	"github.com/shandysiswandi/gotp/internal/audit/outbound/db"
	"github.com/shandysiswandi/gotp/internal/audit/outbound/memory"
	"github.com/shandysiswandi/gotp/internal/audit/usecase"
	"github.com/shandysiswandi/gotp/internal/pkg/clock"
	"github.com/shandysiswandi/gotp/internal/pkg/config"
	"github.com/shandysiswandi/gotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/gotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gotp/internal/pkg/messaging"
	"github.com/shandysiswandi/gotp/internal/pkg/router"
	"github.com/shandysiswandi/gotp/internal/pkg/uid"
	"github.com/shandysiswandi/gotp/internal/pkg/validator"
)

type Dependency struct {
	Ctx        context.Context
	DBConn     *pgxpool.Pool
	Messaging  messaging.Messaging        `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Goroutine  *goroutine.Manager         `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	Router     *router.Router             `validate:"required"`
}

// New wires the audit module. Entries go to Postgres when a connection is
// given and to process memory otherwise.
func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	ucDep := usecase.Dependency{
		Validator:  dep.Validator,
		UID:        dep.UID,
		Clock:      dep.Clock,
		Instrument: dep.Instrument,
	}

	if dep.DBConn != nil {
		dbAudit := db.NewDB(dep.DBConn, dep.Instrument)
		if dep.Config.GetBool("database.auto_migrate") {
			ctx := dep.Ctx
			if ctx == nil {
				ctx = context.Background()
			}
			if err := dbAudit.Migrate(ctx); err != nil {
				return fmt.Errorf("audit: migrate: %w", err)
			}
		}
		ucDep.RepoDB = dbAudit
	} else {
		ucDep.RepoDB = memory.New()
	}

	uc := usecase.New(ucDep)

	inbound.RegisterHTTPEndpoint(dep.Router, uc)
	if dep.Ctx != nil {
		inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, uc, dep.Instrument)
	}

	return nil
}

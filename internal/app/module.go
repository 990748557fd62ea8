package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/gotp/internal/audit"
	"github.com/shandysiswandi/gotp/internal/factor"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.factor.enabled") {
		if err := factor.New(factor.Dependency{
			Ctx:          a.ctx,
			DBConn:       a.dbConn,
			CacheConn:    a.cacheConn,
			Goroutine:    a.goroutine,
			Router:       a.router,
			Messaging:    a.messaging,
			Config:       a.config,
			Instrument:   a.ins,
			UID:          a.uid,
			Token:        a.token,
			SyncHash:     a.syncHash,
			ResponseHash: a.responseHash,
			Encryptor:    a.encryptor,
			KeyGenerator: a.totp,
			Clock:        a.clock,
			Validator:    a.validator,
		}); err != nil {
			slog.Error("failed to init module factor", "error", err)
			os.Exit(1)
		}
	}

	if a.config.GetBool("modules.audit.enabled") {
		if err := audit.New(audit.Dependency{
			Ctx:        a.ctx,
			DBConn:     a.dbConn,
			Messaging:  a.messaging,
			Config:     a.config,
			Instrument: a.ins,
			UID:        a.uid,
			UUID:       a.uuid,
			Clock:      a.clock,
			Goroutine:  a.goroutine,
			Validator:  a.validator,
			Router:     a.router,
		}); err != nil {
			slog.Error("failed to init module audit", "error", err)
			os.Exit(1)
		}
	}
}

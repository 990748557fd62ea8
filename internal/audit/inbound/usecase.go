package inbound

import (
	"context"

	"github.com/shandysiswandi/gotp/internal/audit/entity"
	"github.com/shandysiswandi/gotp/internal/audit/usecase"
)

type ucConsumer interface {
	RecordEvent(ctx context.Context, in usecase.RecordEventInput) error
}

type uc interface {
	ucConsumer

	ListEntries(ctx context.Context, in usecase.ListEntriesInput) ([]entity.AuditEntry, error)
}

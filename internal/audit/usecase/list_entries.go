package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/gotp/internal/audit/entity"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
)

type ListEntriesInput struct {
	Limit  int32 `validate:"omitempty,gte=1,lte=100"`
	Offset int32 `validate:"omitempty,gte=0"`
}

// ListEntries returns the caller's audit entries, newest first.
func (s *Usecase) ListEntries(ctx context.Context, in ListEntriesInput) ([]entity.AuditEntry, error) {
	ctx, span := s.startSpan(ctx, "ListEntries")
	defer span.End()

	clm, err := s.requireAuth(ctx)
	if err != nil {
		return nil, err
	}

	if in.Limit == 0 {
		in.Limit = 20
	}

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	items, err := s.repoDB.ListEntries(ctx, clm.UserID, in.Limit, in.Offset)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list audit entries", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return items, nil
}

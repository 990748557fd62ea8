package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/gotp/internal/factor/entity"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
)

// ListFactors returns the caller's factor configs without their secrets.
func (s *Usecase) ListFactors(ctx context.Context) ([]entity.FactorConfig, error) {
	ctx, span := s.startSpan(ctx, "ListFactors")
	defer span.End()

	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	cfgs, err := s.repoDB.ListFactorConfigs(ctx, clm.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list factor configs", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	for i := range cfgs {
		cfgs[i].SecretCiphertext = nil
	}

	return cfgs, nil
}

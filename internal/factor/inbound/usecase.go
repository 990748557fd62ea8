package inbound

import (
	"context"

	"github.com/shandysiswandi/gotp/internal/factor/entity"
	"github.com/shandysiswandi/gotp/internal/factor/usecase"
)

type uc interface {
	BeginEnrollment(ctx context.Context, in usecase.BeginEnrollmentInput) (*usecase.BeginEnrollmentOutput, error)
	ConfirmEnrollment(ctx context.Context, in usecase.ConfirmEnrollmentInput) (*usecase.ConfirmEnrollmentOutput, error)
	ListFactors(ctx context.Context) ([]entity.FactorConfig, error)
	IssueChallenges(ctx context.Context, in usecase.IssueChallengesInput) ([]entity.Challenge, error)
	ValidateResponse(ctx context.Context, in usecase.ValidateResponseInput) (*entity.ValidationResult, error)
}

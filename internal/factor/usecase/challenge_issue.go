package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/gotp/internal/factor/entity"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type IssueChallengesInput struct {
	FactorConfigID int64  `validate:"required,gt=0"`
	WorkflowKey    string `validate:"required,workflow"`
}

// IssueChallenges issues a challenge for the factor config unless a live one
// already exists. It returns only newly issued challenges.
func (s *Usecase) IssueChallenges(ctx context.Context, in IssueChallengesInput) ([]entity.Challenge, error) {
	ctx, span := s.startSpan(ctx, "IssueChallenges")
	defer span.End()

	in.WorkflowKey = strings.TrimSpace(in.WorkflowKey)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := s.getFactorConfig(ctx, in.FactorConfigID, clm.UserID)
	if err != nil {
		return nil, err
	}

	factor, err := s.factorFor(ctx, cfg.Kind)
	if err != nil {
		return nil, err
	}

	session := entity.Session{UserID: clm.UserID, SessionID: clm.SessionID, WorkflowKey: in.WorkflowKey}
	now := s.clock.Now()

	var issued []entity.Challenge
	err = s.ledger.Atomic(ctx, cfg.ID, func(ctx context.Context, tx LedgerTx) error {
		live, err := tx.LiveChallenges(ctx, cfg.ID, now)
		if err != nil {
			return err
		}

		issued, err = s.issue(ctx, tx, factor, *cfg, session, live, now)
		return err
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue factor challenges", "factor_config_id", cfg.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return issued, nil
}

// issue persists whatever factor decides to issue. It must run inside
// Ledger.Atomic.
func (s *Usecase) issue(ctx context.Context, tx LedgerTx, factor Factor, cfg entity.FactorConfig, session entity.Session, live []entity.Challenge, now time.Time) ([]entity.Challenge, error) {
	issued := factor.IssueChallenges(cfg, session, live, now)
	for _, c := range issued {
		if err := tx.SaveChallenge(ctx, c); err != nil {
			return nil, err
		}

		if s.issuedCounter != nil {
			s.issuedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", cfg.Kind.String())))
		}
		slog.InfoContext(ctx, "factor challenge issued", "factor_config_id", cfg.ID, "challenge_id", c.ID, "challenge_key", c.ChallengeKey, "workflow", c.WorkflowKey)

		s.publishChallenge(ctx, ChallengeEvent{
			Outcome:        ChallengeEventIssued,
			UserID:         c.UserID,
			FactorConfigID: c.FactorConfigID,
			ChallengeID:    c.ID,
			ChallengeKey:   c.ChallengeKey,
			WorkflowKey:    c.WorkflowKey,
			OccurredAt:     now,
		})
	}

	return issued, nil
}

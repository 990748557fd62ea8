package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/gotp/internal/factor/entity"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gotp/internal/pkg/otp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type ValidateResponseInput struct {
	FactorConfigID int64  `validate:"required,gt=0"`
	WorkflowKey    string `validate:"required,workflow"`
	Code           string `validate:"omitempty,max=10"`
	ResponseToken  string `validate:"omitempty,hexadecimal,max=128"`
}

// ValidateResponse checks a submitted code against the factor's live
// challenge. Wait and rejection outcomes are results, not errors.
func (s *Usecase) ValidateResponse(ctx context.Context, in ValidateResponseInput) (*entity.ValidationResult, error) {
	ctx, span := s.startSpan(ctx, "ValidateResponse")
	defer span.End()

	in.WorkflowKey = strings.TrimSpace(in.WorkflowKey)
	in.Code = strings.TrimSpace(in.Code)
	in.ResponseToken = strings.TrimSpace(in.ResponseToken)
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

	secret, err := s.openSecret(ctx, cfg)
	if err != nil {
		return nil, err
	}

	session := entity.Session{
		UserID:        clm.UserID,
		SessionID:     clm.SessionID,
		WorkflowKey:   in.WorkflowKey,
		ResponseToken: in.ResponseToken,
	}
	now := s.clock.Now()

	var result entity.ValidationResult
	err = s.ledger.Atomic(ctx, cfg.ID, func(ctx context.Context, tx LedgerTx) error {
		res, err := s.validate(ctx, tx, factor, *cfg, session, secret, in.Code, now)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if errors.Is(err, ErrChallengeInvariant) {
		slog.ErrorContext(ctx, "challenge ledger invariant violated", "factor_config_id", cfg.ID, "error", err)
		return nil, goerror.NewServer(err)
	}
	var decodeErr *otp.DecodeError
	if errors.As(err, &decodeErr) {
		slog.ErrorContext(ctx, "factor secret is misconfigured", "factor_config_id", cfg.ID, "offset", decodeErr.Offset)
		return nil, goerror.NewServer(err)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to validate factor response", "factor_config_id", cfg.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	s.recordResult(ctx, *cfg, session, result, now)

	return &result, nil
}

// validate runs inside Ledger.Atomic: classify live challenges, refuse while
// any of them blocks this session, issue one if none is live and then check
// the code against exactly that one.
func (s *Usecase) validate(ctx context.Context, tx LedgerTx, factor Factor, cfg entity.FactorConfig, session entity.Session, secret, code string, now time.Time) (entity.ValidationResult, error) {
	live, err := tx.LiveChallenges(ctx, cfg.ID, now)
	if err != nil {
		return entity.ValidationResult{}, err
	}

	if err := s.classifyResponses(ctx, tx, live, session, now); err != nil {
		return entity.ValidationResult{}, err
	}

	if wait := factor.ResultFromIssuedChallenges(cfg, session, live, now); wait != nil {
		return *wait, nil
	}

	if len(live) == 0 {
		live, err = s.issue(ctx, tx, factor, cfg, session, live, now)
		if err != nil {
			return entity.ValidationResult{}, err
		}
	}

	res, err := factor.ResultFromResponse(cfg, secret, code, live, now)
	if err != nil {
		return entity.ValidationResult{}, err
	}

	c := res.AnsweredChallenge
	if c == nil {
		return res, nil
	}
	if c.ResponseVerified {
		res.ResponseToken = session.ResponseToken
		return res, nil
	}

	token := s.token.Generate()
	digest, err := s.responseHash.Hash(token)
	if err != nil {
		return entity.ValidationResult{}, err
	}

	c.ResponseTokenHash = string(digest)
	c.ResponseExpiresAt = now.Add(responseTokenTTL)
	if err := tx.UpdateChallenge(ctx, *c); err != nil {
		return entity.ValidationResult{}, err
	}

	res.ResponseToken = token
	return res, nil
}

// classifyResponses decides, per request, which answered challenges the
// caller can still prove it answered. Any other answered challenge bound to
// the caller's session and workflow has had its response consumed and is
// persisted as reused. Challenges bound elsewhere are left untouched; the
// binding checks turn those requests into waits.
func (s *Usecase) classifyResponses(ctx context.Context, tx LedgerTx, live []entity.Challenge, session entity.Session, now time.Time) error {
	for i := range live {
		c := &live[i]
		if !c.Answered || c.Reused {
			continue
		}
		if c.SessionID != session.SessionID || c.WorkflowKey != session.WorkflowKey {
			continue
		}

		if session.ResponseToken != "" &&
			now.Before(c.ResponseExpiresAt) &&
			s.responseHash.Verify(c.ResponseTokenHash, session.ResponseToken) {
			c.ResponseVerified = true
			continue
		}

		c.Reused = true
		if err := tx.UpdateChallenge(ctx, *c); err != nil {
			return err
		}
		slog.WarnContext(ctx, "answered challenge presented without its response token", "challenge_id", c.ID, "factor_config_id", c.FactorConfigID)
	}

	return nil
}

func (s *Usecase) recordResult(ctx context.Context, cfg entity.FactorConfig, session entity.Session, res entity.ValidationResult, now time.Time) {
	outcome := res.Outcome()

	if s.resultCounter != nil {
		s.resultCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", cfg.Kind.String()),
			attribute.String("outcome", string(outcome)),
		))
	}

	ev := ChallengeEvent{
		UserID:         cfg.UserID,
		FactorConfigID: cfg.ID,
		WorkflowKey:    session.WorkflowKey,
		OccurredAt:     now,
	}

	switch outcome {
	case entity.OutcomeAnswered:
		ev.Outcome = ChallengeEventAnswered
		ev.ChallengeID = res.AnsweredChallenge.ID
		ev.ChallengeKey = otp.Timestep(res.AnsweredChallenge.Properties.GetInt64(entity.PropertyTimestep))
		slog.InfoContext(ctx, "factor challenge answered", "factor_config_id", cfg.ID, "challenge_id", ev.ChallengeID)
	case entity.OutcomeWait:
		ev.Outcome = ChallengeEventWait
		ev.WaitSeconds = res.WaitSeconds
		ev.Message = res.ErrorMessage
		slog.WarnContext(ctx, "factor validation must wait", "factor_config_id", cfg.ID, "wait_seconds", res.WaitSeconds)
	default:
		ev.Outcome = ChallengeEventRejected
		ev.Message = res.ErrorMessage
		slog.WarnContext(ctx, "factor response rejected", "factor_config_id", cfg.ID, "reason", res.ErrorMessage)
	}

	s.publishChallenge(ctx, ev)
}

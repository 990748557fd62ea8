package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/gotp/internal/factor/entity"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gotp/internal/pkg/otp"
	"github.com/shandysiswandi/gotp/internal/pkg/secretbox"
)

type ConfirmEnrollmentInput struct {
	Secret string `validate:"required,base32,len=32"`
	Code   string `validate:"omitempty,numeric,max=10"`
	Name   string `validate:"required,min=2,max=100"`
}

type ConfirmEnrollmentOutput struct {
	Factor       *entity.FactorConfig
	Secret       string
	URI          string
	Provenance   entity.Provenance
	ErrorMessage string
}

// ConfirmEnrollment creates a factor config once the caller proves their
// device is in sync with a secret we issued.
func (s *Usecase) ConfirmEnrollment(ctx context.Context, in ConfirmEnrollmentInput) (*ConfirmEnrollmentOutput, error) {
	ctx, span := s.startSpan(ctx, "ConfirmEnrollment")
	defer span.End()

	in.Secret = strings.ToUpper(strings.TrimSpace(in.Secret))
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	key, prov, err := s.resolveSecret(ctx, clm, in.Secret)
	if err != nil {
		return nil, err
	}

	out := &ConfirmEnrollmentOutput{Secret: key.Secret, URI: key.URI, Provenance: prov}

	raw, err := otp.Base32Decode(key.Secret)
	if err != nil {
		slog.ErrorContext(ctx, "totp secret is not valid base32", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	if _, ok := otp.MatchTimestep(raw, in.Code, otp.AllowedTimesteps(otp.CurrentTimestep(now))); !ok {
		slog.WarnContext(ctx, "totp enrollment code did not match", "user_id", clm.UserID, "provenance", prov)
		out.ErrorMessage = codeErrorMessage(in.Code)
		return out, nil
	}

	cfg := entity.FactorConfig{
		ID:        s.uid.Generate(),
		UserID:    clm.UserID,
		Kind:      entity.FactorKindTOTP,
		Name:      in.Name,
		CreatedAt: now,
	}

	cfg.SecretCiphertext, err = s.encryptor.Encrypt([]byte(key.Secret), secretbox.Scope{
		UserID:         cfg.UserID,
		FactorConfigID: cfg.ID,
		Purpose:        secretbox.PurposeFactorSecret,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to encrypt factor secret", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	version, err := secretbox.KeyVersion(cfg.SecretCiphertext)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read factor secret key version", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}
	cfg.KeyVersion = int16(version)

	if err := s.repoDB.CreateFactorConfig(ctx, cfg); err != nil {
		slog.ErrorContext(ctx, "failed to repo create factor config", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.repoToken.DeleteEnrollmentTokens(ctx, clm.UserID, entity.TokenTypeTOTPKey); err != nil {
		// the factor exists; a leftover token only lets the same user
		// enroll the same secret again before it expires
		slog.WarnContext(ctx, "failed to repo delete enrollment tokens", "user_id", clm.UserID, "error", err)
	}

	slog.InfoContext(ctx, "factor enrolled", "user_id", clm.UserID, "factor_config_id", cfg.ID, "kind", cfg.Kind)

	ev := FactorEnrolledEvent{
		EventID:        s.uid.Generate(),
		UserID:         cfg.UserID,
		FactorConfigID: cfg.ID,
		Kind:           cfg.Kind,
		Name:           cfg.Name,
		OccurredAt:     now,
	}
	s.publish(ctx, "factor.publish_enrolled", func(ctx context.Context) error {
		return s.repoMessaging.PublishFactorEnrolled(ctx, ev)
	})

	cfg.SecretCiphertext = nil
	out.Factor = &cfg
	return out, nil
}

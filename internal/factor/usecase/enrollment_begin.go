package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shandysiswandi/gotp/internal/factor/entity"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gotp/internal/pkg/jwt"
	"github.com/shandysiswandi/gotp/internal/pkg/otp"
)

type BeginEnrollmentInput struct {
	CandidateSecret string `validate:"omitempty,base32,len=32"`
}

type BeginEnrollmentOutput struct {
	Secret     string
	URI        string
	Provenance entity.Provenance
	Hint       entity.EnrollmentHint
}

// BeginEnrollment returns the secret the caller should load into an
// authenticator app. A candidate secret is kept only when we issued it.
func (s *Usecase) BeginEnrollment(ctx context.Context, in BeginEnrollmentInput) (*BeginEnrollmentOutput, error) {
	ctx, span := s.startSpan(ctx, "BeginEnrollment")
	defer span.End()

	in.CandidateSecret = strings.ToUpper(strings.TrimSpace(in.CandidateSecret))
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	key, prov, err := s.resolveSecret(ctx, clm, in.CandidateSecret)
	if err != nil {
		return nil, err
	}

	return &BeginEnrollmentOutput{
		Secret:     key.Secret,
		URI:        key.URI,
		Provenance: prov,
		Hint:       s.factors[entity.FactorKindTOTP].EnrollmentHint(),
	}, nil
}

// resolveSecret keeps candidate when a live enrollment token proves we
// generated it for this user, and otherwise issues a fresh secret.
func (s *Usecase) resolveSecret(ctx context.Context, clm *jwt.Claims, candidate string) (otp.Key, entity.Provenance, error) {
	account := accountName(clm)

	ok, err := s.verifyProvenance(ctx, clm.UserID, candidate)
	if err != nil {
		return otp.Key{}, "", err
	}
	if ok {
		key, err := s.keys.KeyFor(account, candidate)
		if err != nil {
			slog.ErrorContext(ctx, "failed to render totp key", "user_id", clm.UserID, "error", err)
			return otp.Key{}, "", goerror.NewServer(err)
		}
		return key, entity.ProvenanceVerified, nil
	}

	if candidate != "" {
		slog.WarnContext(ctx, "candidate totp secret has no enrollment token, replacing it", "user_id", clm.UserID)
	}

	key, err := s.keys.NewKey(account)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate totp key", "user_id", clm.UserID, "error", err)
		return otp.Key{}, "", goerror.NewServer(err)
	}

	digest, err := s.syncHash.Hash(key.Secret)
	if err != nil {
		slog.ErrorContext(ctx, "failed to digest totp secret", "user_id", clm.UserID, "error", err)
		return otp.Key{}, "", goerror.NewServer(err)
	}

	now := s.clock.Now()
	if err := s.repoToken.SaveEnrollmentToken(ctx, entity.EnrollmentToken{
		ID:         s.uid.Generate(),
		ResourceID: clm.UserID,
		TokenType:  entity.TokenTypeTOTPKey,
		CodeHash:   string(digest),
		ExpiresAt:  now.Add(s.enrollTokenTTL),
		CreatedAt:  now,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to repo save enrollment token", "user_id", clm.UserID, "error", err)
		return otp.Key{}, "", goerror.NewServer(err)
	}

	return key, entity.ProvenanceGenerated, nil
}

func (s *Usecase) verifyProvenance(ctx context.Context, userID int64, candidate string) (bool, error) {
	if candidate == "" {
		return false, nil
	}

	digest, err := s.syncHash.Hash(candidate)
	if err != nil {
		slog.ErrorContext(ctx, "failed to digest candidate secret", "user_id", userID, "error", err)
		return false, goerror.NewServer(err)
	}

	_, err = s.repoToken.FindEnrollmentToken(ctx, userID, entity.TokenTypeTOTPKey, string(digest), s.clock.Now())
	if errors.Is(err, goerror.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo find enrollment token", "user_id", userID, "error", err)
		return false, goerror.NewServer(err)
	}

	return true, nil
}

func accountName(clm *jwt.Claims) string {
	if clm.Account != "" {
		return clm.Account
	}
	return strconv.FormatInt(clm.UserID, 10)
}

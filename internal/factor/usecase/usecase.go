package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gotp/internal/factor/entity"
	"github.com/shandysiswandi/gotp/internal/pkg/clock"
	"github.com/shandysiswandi/gotp/internal/pkg/config"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/gotp/internal/pkg/hash"
	"github.com/shandysiswandi/gotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gotp/internal/pkg/jwt"
	"github.com/shandysiswandi/gotp/internal/pkg/otp"
	"github.com/shandysiswandi/gotp/internal/pkg/secretbox"
	"github.com/shandysiswandi/gotp/internal/pkg/uid"
	"github.com/shandysiswandi/gotp/internal/pkg/validator"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultEnrollmentTokenTTL = time.Hour
	responseTokenTTL          = 60 * time.Second
)

// FactorEnrolledEvent is published after a factor config is created.
// EventID stays the same across broker redeliveries.
type FactorEnrolledEvent struct {
	EventID        int64
	UserID         int64
	FactorConfigID int64
	Kind           entity.FactorKind
	Name           string
	OccurredAt     time.Time
}

// ChallengeEvent is published for every challenge issuance and validation.
type ChallengeEvent struct {
	EventID        int64
	Outcome        ChallengeEventType
	UserID         int64
	FactorConfigID int64
	ChallengeID    int64
	ChallengeKey   otp.Timestep
	WorkflowKey    string
	WaitSeconds    int64
	Message        string
	OccurredAt     time.Time
}

// ChallengeEventType picks the destination of a ChallengeEvent.
type ChallengeEventType string

const (
	ChallengeEventIssued   ChallengeEventType = "issued"
	ChallengeEventAnswered ChallengeEventType = "answered"
	ChallengeEventWait     ChallengeEventType = "wait"
	ChallengeEventRejected ChallengeEventType = "rejected"
)

type repoMessaging interface {
	PublishFactorEnrolled(ctx context.Context, msg FactorEnrolledEvent) error
	PublishChallenge(ctx context.Context, msg ChallengeEvent) error
}

type repoDB interface {
	CreateFactorConfig(ctx context.Context, in entity.FactorConfig) error
	GetFactorConfig(ctx context.Context, id, userID int64) (*entity.FactorConfig, error)
	ListFactorConfigs(ctx context.Context, userID int64) ([]entity.FactorConfig, error)
}

type repoToken interface {
	FindEnrollmentToken(ctx context.Context, resourceID int64, tokenType, codeHash string, now time.Time) (*entity.EnrollmentToken, error)
	SaveEnrollmentToken(ctx context.Context, in entity.EnrollmentToken) error
	DeleteEnrollmentTokens(ctx context.Context, resourceID int64, tokenType string) error
}

// Ledger serialises every read-check-write on the challenges of one factor
// config. Implementations must hold an exclusive per-config lock for the
// whole of fn and must only return challenges that are live at now.
type Ledger interface {
	Atomic(ctx context.Context, factorConfigID int64, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx is the challenge store view valid inside Ledger.Atomic.
type LedgerTx interface {
	LiveChallenges(ctx context.Context, factorConfigID int64, now time.Time) ([]entity.Challenge, error)
	SaveChallenge(ctx context.Context, in entity.Challenge) error
	UpdateChallenge(ctx context.Context, in entity.Challenge) error
}

type Usecase struct {
	repoDB        repoDB
	repoToken     repoToken
	repoMessaging repoMessaging
	ledger        Ledger
	validator     validator.Validator
	cfg           config.Config
	syncHash      hash.Hash
	responseHash  hash.Hash
	encryptor     secretbox.Encryptor
	keys          otp.KeyGenerator
	uid           uid.NumberID
	token         uid.StringID
	clock         clock.Clocker
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager
	factors       map[entity.FactorKind]Factor

	issuedCounter  metric.Int64Counter
	resultCounter  metric.Int64Counter
	enrollTokenTTL time.Duration
}

type Dependency struct {
	RepoDB        repoDB
	RepoToken     repoToken
	RepoMessaging repoMessaging
	Ledger        Ledger
	Validator     validator.Validator
	Config        config.Config
	// SyncHash digests candidate secrets for enrollment tokens.
	SyncHash hash.Hash
	// ResponseHash digests proof-of-answer response tokens.
	ResponseHash hash.Hash
	Encryptor    secretbox.Encryptor
	KeyGenerator otp.KeyGenerator
	UID          uid.NumberID
	Token        uid.StringID
	Clock        clock.Clocker
	Instrument   instrument.Instrumentation
	Goroutine    *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	s := &Usecase{
		repoDB:         dep.RepoDB,
		repoToken:      dep.RepoToken,
		repoMessaging:  dep.RepoMessaging,
		ledger:         dep.Ledger,
		validator:      dep.Validator,
		cfg:            dep.Config,
		syncHash:       dep.SyncHash,
		responseHash:   dep.ResponseHash,
		encryptor:      dep.Encryptor,
		keys:           dep.KeyGenerator,
		uid:            dep.UID,
		token:          dep.Token,
		clock:          dep.Clock,
		ins:            dep.Instrument,
		goroutine:      dep.Goroutine,
		enrollTokenTTL: defaultEnrollmentTokenTTL,
	}

	if dep.Config != nil {
		if ttl := dep.Config.GetMinute("modules.factor.enrollment_token_ttl"); ttl > 0 {
			s.enrollTokenTTL = ttl
		}
	}

	s.factors = newFactorRegistry(newTOTPFactor(dep.UID))

	meter := s.ins.Meter("factor.usecase")

	var err error
	s.issuedCounter, err = meter.Int64Counter("factor.challenge.issued", metric.WithDescription("Number of factor challenges issued"))
	if err != nil {
		slog.Error("failed to create challenge issued counter", "error", err)
	}
	s.resultCounter, err = meter.Int64Counter("factor.validation.result", metric.WithDescription("Number of factor validation results by outcome"))
	if err != nil {
		slog.Error("failed to create validation result counter", "error", err)
	}

	return s
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("factor.usecase").Start(ctx, name)
}

func (s *Usecase) authenticated(ctx context.Context) (*jwt.Claims, error) {
	clm := jwt.GetAuth(ctx)
	if clm == nil || clm.UserID == 0 || clm.SessionID == "" {
		return nil, goerror.NewBusiness("Authentication required", goerror.CodeUnauthorized)
	}

	return clm, nil
}

func (s *Usecase) factorFor(ctx context.Context, kind entity.FactorKind) (Factor, error) {
	f, ok := s.factors[kind]
	if !ok {
		slog.ErrorContext(ctx, "factor kind has no implementation", "kind", kind)
		return nil, goerror.NewServer(ErrUnknownFactorKind)
	}

	return f, nil
}

func (s *Usecase) getFactorConfig(ctx context.Context, id, userID int64) (*entity.FactorConfig, error) {
	cfg, err := s.repoDB.GetFactorConfig(ctx, id, userID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "factor config not found", "factor_config_id", id, "user_id", userID)
		return nil, goerror.NewBusiness("Factor not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get factor config", "factor_config_id", id, "user_id", userID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return cfg, nil
}

func (s *Usecase) openSecret(ctx context.Context, cfg *entity.FactorConfig) (string, error) {
	plain, err := s.encryptor.Decrypt(cfg.SecretCiphertext, secretbox.Scope{
		UserID:         cfg.UserID,
		FactorConfigID: cfg.ID,
		Purpose:        secretbox.PurposeFactorSecret,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to decrypt factor secret", "factor_config_id", cfg.ID, "key_version", cfg.KeyVersion, "error", err)
		return "", goerror.NewServer(err)
	}

	return string(plain), nil
}

// publish runs fn in the background, detached from request cancellation.
func (s *Usecase) publish(ctx context.Context, name string, fn func(ctx context.Context) error) {
	s.goroutine.Go(context.WithoutCancel(ctx), name, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to publish factor event", "task", name, "error", err)
			return err
		}
		return nil
	})
}

func (s *Usecase) publishChallenge(ctx context.Context, ev ChallengeEvent) {
	ev.EventID = s.uid.Generate()
	s.publish(ctx, "factor.publish_challenge_"+string(ev.Outcome), func(ctx context.Context) error {
		return s.repoMessaging.PublishChallenge(ctx, ev)
	})
}

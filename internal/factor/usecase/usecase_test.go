package usecase_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/gotp/internal/factor/entity"
	"github.com/shandysiswandi/gotp/internal/factor/outbound/memory"
	"github.com/shandysiswandi/gotp/internal/factor/usecase"
	"github.com/shandysiswandi/gotp/internal/pkg/clock"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/gotp/internal/pkg/hash"
	"github.com/shandysiswandi/gotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gotp/internal/pkg/jwt"
	"github.com/shandysiswandi/gotp/internal/pkg/otp"
	"github.com/shandysiswandi/gotp/internal/pkg/secretbox"
	"github.com/shandysiswandi/gotp/internal/pkg/uid"
	"github.com/shandysiswandi/gotp/internal/pkg/validator"
)

const (
	testSecret   = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	testUserID   = int64(42)
	testConfigID = int64(7001)
	testStep     = otp.Timestep(1000)
)

type recordingPublisher struct {
	mu         sync.Mutex
	enrolled   []usecase.FactorEnrolledEvent
	challenges []usecase.ChallengeEvent
}

func (p *recordingPublisher) PublishFactorEnrolled(_ context.Context, msg usecase.FactorEnrolledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enrolled = append(p.enrolled, msg)
	return nil
}

func (p *recordingPublisher) PublishChallenge(_ context.Context, msg usecase.ChallengeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.challenges = append(p.challenges, msg)
	return nil
}

type fixture struct {
	uc        *usecase.Usecase
	store     *memory.Store
	clock     *clock.Frozen
	pub       *recordingPublisher
	encryptor secretbox.Encryptor
	routines  *goroutine.Manager
}

func stepTime(ts otp.Timestep) time.Time {
	return time.Unix(int64(ts)*int64(otp.StepDuration/time.Second), 0)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	master, err := hash.NewHMACSHA256("factor-usecase-test-secret")
	if err != nil {
		t.Fatalf("hmac: %v", err)
	}
	syncHash, err := master.Named("mfa.totp.sync")
	if err != nil {
		t.Fatalf("named hmac: %v", err)
	}
	responseHash, err := master.Named("mfa.challenge.response")
	if err != nil {
		t.Fatalf("named hmac: %v", err)
	}

	ring, err := secretbox.NewKeyring(1, map[uint16][]byte{1: bytes.Repeat([]byte{7}, 32)})
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	enc := secretbox.NewAESGCMEncryptor(ring)

	node, err := uid.NewSnowflake(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	f := &fixture{
		store:     memory.New(),
		clock:     clock.NewFrozen(stepTime(testStep)),
		pub:       &recordingPublisher{},
		encryptor: enc,
		routines:  goroutine.NewManager(10),
	}

	f.uc = usecase.New(usecase.Dependency{
		RepoDB:        f.store,
		RepoToken:     f.store,
		RepoMessaging: f.pub,
		Ledger:        f.store,
		Validator:     v,
		SyncHash:      syncHash,
		ResponseHash:  responseHash,
		Encryptor:     enc,
		KeyGenerator:  otp.NewTOTP("gotp"),
		UID:           node,
		Token:         uid.NewRandomToken(0),
		Clock:         f.clock,
		Instrument:    instrument.NewNoop(),
		Goroutine:     f.routines,
	})

	return f
}

func authCtx(userID int64, sessionID string) context.Context {
	return jwt.SetAuth(context.Background(), jwt.Claims{
		UserID:    userID,
		Account:   "alice@example.com",
		SessionID: sessionID,
	})
}

// enroll stores a factor config for secret without going through enrollment.
func (f *fixture) enroll(t *testing.T, secret string) {
	t.Helper()

	ct, err := f.encryptor.Encrypt([]byte(secret), secretbox.Scope{
		UserID:         testUserID,
		FactorConfigID: testConfigID,
		Purpose:        secretbox.PurposeFactorSecret,
	})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	err = f.store.CreateFactorConfig(context.Background(), entity.FactorConfig{
		ID:               testConfigID,
		UserID:           testUserID,
		Kind:             entity.FactorKindTOTP,
		Name:             "phone",
		SecretCiphertext: ct,
		KeyVersion:       1,
	})
	if err != nil {
		t.Fatalf("create factor config: %v", err)
	}
}

func codeAt(t *testing.T, secret string, ts otp.Timestep) string {
	t.Helper()

	raw, err := otp.Base32Decode(secret)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return otp.ComputeCode(raw, ts)
}

func (f *fixture) validate(t *testing.T, ctx context.Context, workflow, code, token string) *entity.ValidationResult {
	t.Helper()

	res, err := f.uc.ValidateResponse(ctx, usecase.ValidateResponseInput{
		FactorConfigID: testConfigID,
		WorkflowKey:    workflow,
		Code:           code,
		ResponseToken:  token,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	return res
}

func assertCode(t *testing.T, err error, want goerror.Code) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected error with code %s, got nil", want)
	}
	if got := goerror.CodeOf(err); got != want {
		t.Fatalf("error code %s, want %s (%v)", got, want, err)
	}
}

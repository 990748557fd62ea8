package usecase

import (
	"fmt"
	"time"

	"github.com/shandysiswandi/gotp/internal/factor/entity"
	"github.com/shandysiswandi/gotp/internal/pkg/otp"
	"github.com/shandysiswandi/gotp/internal/pkg/uid"
	"github.com/shandysiswandi/gotp/internal/pkg/valueobject"
)

const (
	waitSessionMessage = "This factor recently issued a challenge to a different login session. " +
		"Wait %d second(s) for the code to cycle, then try again."
	waitWorkflowMessage = "This factor recently issued a challenge for a different workflow. " +
		"Wait %d second(s) for the code to cycle, then try again."
	waitLockoutMessage = "This factor recently issued a challenge which has expired. " +
		"A new challenge can not be issued yet. Wait %d second(s) for the code to cycle, then try again."
	waitReusedMessage = "You recently provided a response to this factor. " +
		"Responses may not be reused. Wait %d second(s) for the code to cycle, then try again."
)

type totpFactor struct {
	uid uid.NumberID
}

func newTOTPFactor(id uid.NumberID) *totpFactor {
	return &totpFactor{uid: id}
}

func (f *totpFactor) Kind() entity.FactorKind {
	return entity.FactorKindTOTP
}

func (f *totpFactor) EnrollmentHint() entity.EnrollmentHint {
	return entity.EnrollmentHint{
		Label:        "App Code",
		Instructions: "Scan the QR code or enter the key into an authenticator app, then enter the code it shows.",
		CodeLength:   otp.Digits,
	}
}

func (f *totpFactor) IssueChallenges(cfg entity.FactorConfig, session entity.Session, live []entity.Challenge, now time.Time) []entity.Challenge {
	if len(live) > 0 {
		return nil
	}

	return []entity.Challenge{{
		ID:             f.uid.Generate(),
		FactorConfigID: cfg.ID,
		UserID:         cfg.UserID,
		ChallengeKey:   otp.CurrentTimestep(now),
		SessionID:      session.SessionID,
		WorkflowKey:    session.WorkflowKey,
		TTLExpiresAt:   now.Add(otp.ChallengeTTL()),
		Properties:     valueobject.JSONMap{},
		CreatedAt:      now,
	}}
}

func (f *totpFactor) ResultFromIssuedChallenges(_ entity.FactorConfig, session entity.Session, live []entity.Challenge, now time.Time) *entity.ValidationResult {
	current := otp.CurrentTimestep(now)

	for _, c := range live {
		wait := c.WaitSeconds(now)

		switch {
		case c.SessionID != session.SessionID:
			return waitResult(waitSessionMessage, wait)
		case c.WorkflowKey != session.WorkflowKey:
			return waitResult(waitWorkflowMessage, wait)
		case !otp.InWindow(c.ChallengeKey, current):
			// still live but no longer answerable, so no new challenge either
			return waitResult(waitLockoutMessage, wait)
		case c.IsReusedChallenge():
			return waitResult(waitReusedMessage, wait)
		}
	}

	return nil
}

func (f *totpFactor) ResultFromResponse(_ entity.FactorConfig, secret, code string, live []entity.Challenge, now time.Time) (entity.ValidationResult, error) {
	if len(live) != 1 {
		return entity.ValidationResult{}, fmt.Errorf("%w: got %d", ErrChallengeInvariant, len(live))
	}

	c := live[0]
	if c.IsAnsweredChallenge() {
		return entity.ValidationResult{AnsweredChallenge: &c}, nil
	}

	raw, err := otp.Base32Decode(secret)
	if err != nil {
		return entity.ValidationResult{}, err
	}

	candidates := otp.IntersectTimesteps(
		otp.AllowedTimesteps(c.ChallengeKey),
		otp.AllowedTimesteps(otp.CurrentTimestep(now)),
	)

	ts, ok := otp.MatchTimestep(raw, code, candidates)
	if !ok {
		return entity.ValidationResult{ErrorMessage: codeErrorMessage(code)}, nil
	}

	c.Properties = c.Properties.Clone()
	c.Properties.Set(entity.PropertyTimestep, int64(ts))
	c.Answered = true

	return entity.ValidationResult{AnsweredChallenge: &c}, nil
}

func waitResult(format string, wait int64) *entity.ValidationResult {
	return &entity.ValidationResult{
		IsWait:       true,
		WaitSeconds:  wait,
		ErrorMessage: fmt.Sprintf(format, wait),
	}
}

func codeErrorMessage(code string) string {
	if code == "" {
		return entity.ErrorMessageRequired
	}
	return entity.ErrorMessageInvalid
}

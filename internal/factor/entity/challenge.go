package entity

import (
	"time"

	"github.com/shandysiswandi/gotp/internal/pkg/otp"
	"github.com/shandysiswandi/gotp/internal/pkg/valueobject"
)

// PropertyTimestep records which timestep a response matched.
const PropertyTimestep = "totp.timestep"

const (
	// ErrorMessageRequired is reported when no code was submitted.
	ErrorMessageRequired = "Required"
	// ErrorMessageInvalid is reported when the code matched no timestep.
	ErrorMessageInvalid = "Invalid"
)

// Challenge is one issued authentication opportunity for a factor config.
//
// A challenge is live until TTLExpiresAt. Answered and Reused are stored;
// ResponseVerified is set per request when the caller proved it holds the
// response token for an answered challenge.
type Challenge struct {
	ID                int64
	FactorConfigID    int64
	UserID            int64
	ChallengeKey      otp.Timestep
	SessionID         string
	WorkflowKey       string
	TTLExpiresAt      time.Time
	ResponseTokenHash string
	ResponseExpiresAt time.Time
	Answered          bool
	Reused            bool
	Properties        valueobject.JSONMap
	CreatedAt         time.Time

	ResponseVerified bool `json:"-"`
}

// IsLive reports whether the challenge still blocks new issuance at now.
func (c Challenge) IsLive(now time.Time) bool {
	return now.Before(c.TTLExpiresAt)
}

// IsAnsweredChallenge reports whether the caller already answered this
// challenge and still holds a valid proof of that answer.
func (c Challenge) IsAnsweredChallenge() bool {
	return c.Answered && c.ResponseVerified && !c.Reused
}

// IsReusedChallenge reports whether a consumed response was presented again.
func (c Challenge) IsReusedChallenge() bool {
	return c.Reused
}

// WaitSeconds is how long the caller must wait for this challenge to expire,
// rounded up to the next whole second.
func (c Challenge) WaitSeconds(now time.Time) int64 {
	return int64(c.TTLExpiresAt.Sub(now)/time.Second) + 1
}

// Session is the caller context a challenge is bound to.
type Session struct {
	UserID        int64
	SessionID     string
	WorkflowKey   string
	ResponseToken string
}

// Outcome classifies a ValidationResult for metrics and events.
type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeWait     Outcome = "wait"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeRequired Outcome = "required"
)

// ValidationResult is the outcome of one validation attempt. Exactly one of
// AnsweredChallenge, IsWait or ErrorMessage describes it.
type ValidationResult struct {
	AnsweredChallenge *Challenge
	ResponseToken     string
	ErrorMessage      string
	IsWait            bool
	WaitSeconds       int64
}

// IsAnswered reports whether the response was accepted.
func (r ValidationResult) IsAnswered() bool {
	return r.AnsweredChallenge != nil
}

// Outcome returns the result classification.
func (r ValidationResult) Outcome() Outcome {
	switch {
	case r.AnsweredChallenge != nil:
		return OutcomeAnswered
	case r.IsWait:
		return OutcomeWait
	case r.ErrorMessage == ErrorMessageRequired:
		return OutcomeRequired
	default:
		return OutcomeInvalid
	}
}

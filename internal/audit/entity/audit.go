package entity

import (
	"time"

	"github.com/shandysiswandi/gotp/internal/pkg/valueobject"
)

type Event string

const (
	EventFactorEnrolled          Event = "factor.enrolled"
	EventFactorChallengeIssued   Event = "factor.challenge.issued"
	EventFactorChallengeAnswered Event = "factor.challenge.answered"
	EventFactorChallengeWait     Event = "factor.challenge.wait"
	EventFactorChallengeRejected Event = "factor.challenge.rejected"
)

func (e Event) String() string {
	return string(e)
}

// AuditEntry is one recorded factor event. Data never carries secrets, codes,
// or response tokens.
type AuditEntry struct {
	ID             int64
	UserID         int64
	FactorConfigID int64
	Event          Event
	Data           valueobject.JSONMap
	CreatedAt      time.Time
}

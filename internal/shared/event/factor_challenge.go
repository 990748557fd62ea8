package event

const (
	FactorChallengeIssuedDestination   string = "factor_challenge_issued"
	FactorChallengeAnsweredDestination string = "factor_challenge_answered"
	FactorChallengeWaitDestination     string = "factor_challenge_wait"
	FactorChallengeRejectedDestination string = "factor_challenge_rejected"
)

const (
	FactorChallengeIssuedConsumerAudit   string = "factor_challenge_issued_audit"
	FactorChallengeAnsweredConsumerAudit string = "factor_challenge_answered_audit"
	FactorChallengeWaitConsumerAudit     string = "factor_challenge_wait_audit"
	FactorChallengeRejectedConsumerAudit string = "factor_challenge_rejected_audit"
)

// FactorChallengeMessage is shared by every challenge destination; the
// destination itself carries the outcome. EventID identifies one published
// event; consumers use it to drop redeliveries.
type FactorChallengeMessage struct {
	EventID        int64  `json:"event_id,omitempty"`
	UserID         int64  `json:"user_id"`
	FactorConfigID int64  `json:"factor_config_id"`
	ChallengeID    int64  `json:"challenge_id,omitempty"`
	ChallengeKey   int64  `json:"challenge_key,omitempty"`
	WorkflowKey    string `json:"workflow_key"`
	WaitSeconds    int64  `json:"wait_seconds,omitempty"`
	Message        string `json:"message,omitempty"`
	OccurredAt     int64  `json:"occurred_at"`
}

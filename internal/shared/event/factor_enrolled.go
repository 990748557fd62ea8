package event

const FactorEnrolledDestination string = "factor_enrolled"
const FactorEnrolledConsumerAudit string = "factor_enrolled_audit"

type FactorEnrolledMessage struct {
	EventID        int64  `json:"event_id,omitempty"`
	UserID         int64  `json:"user_id"`
	FactorConfigID int64  `json:"factor_config_id"`
	Kind           string `json:"kind"`
	Name           string `json:"name"`
	OccurredAt     int64  `json:"occurred_at"`
}

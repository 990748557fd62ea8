package inbound

import (
	"net/http"
	"time"
)

type BeginEnrollmentRequest struct {
	Secret string `json:"secret"`
}

type EnrollmentHintResponse struct {
	Label        string `json:"label"`
	Instructions string `json:"instructions"`
	CodeLength   int    `json:"code_length"`
}

type BeginEnrollmentResponse struct {
	Secret     string                 `json:"secret"`
	URI        string                 `json:"uri"`
	Provenance string                 `json:"provenance"`
	Hint       EnrollmentHintResponse `json:"hint"`
}

type ConfirmEnrollmentRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
	Name   string `json:"name"`
}

type FactorResponse struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	Name       string    `json:"name"`
	KeyVersion int16     `json:"key_version"`
	CreatedAt  time.Time `json:"created_at"`
}

type ConfirmEnrollmentResponse struct {
	FactorResponse
}

func (ConfirmEnrollmentResponse) StatusCode() int {
	return http.StatusCreated
}

func (ConfirmEnrollmentResponse) Message() string {
	return "factor has been enrolled"
}

type FactorsResponse struct {
	Factors []FactorResponse `json:"factors"`
}

type IssueChallengesRequest struct {
	Workflow string `json:"workflow"`
}

type ChallengeResponse struct {
	ID           int64     `json:"id"`
	ChallengeKey int64     `json:"challenge_key"`
	Workflow     string    `json:"workflow"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type IssueChallengesResponse struct {
	Challenges []ChallengeResponse `json:"challenges"`
}

type ValidateResponseRequest struct {
	Workflow      string `json:"workflow"`
	Code          string `json:"code"`
	ResponseToken string `json:"response_token"`
}

type ValidateResponseResponse struct {
	ChallengeID   int64  `json:"challenge_id"`
	ResponseToken string `json:"response_token"`
	Timestep      int64  `json:"timestep"`
}

func (ValidateResponseResponse) Message() string {
	return "challenge has been answered"
}

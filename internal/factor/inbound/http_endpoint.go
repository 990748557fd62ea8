package inbound

import (
	"strconv"

	"github.com/shandysiswandi/gotp/internal/factor/entity"
	"github.com/shandysiswandi/gotp/internal/factor/usecase"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gotp/internal/pkg/router"
)

type HTTPEndpoint struct {
	uc uc
}

// BeginEnrollment returns the TOTP secret to load into an authenticator app.
// @Summary Begin TOTP enrollment
// @Description Issues a new TOTP secret, or echoes back a secret this server issued earlier.
// @Tags Factor
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body BeginEnrollmentRequest true "Enrollment payload"
// @Success 200 {object} router.successResponse{data=BeginEnrollmentResponse} "Enrollment secret"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/factor/totp/enrollment [post]
func (h *HTTPEndpoint) BeginEnrollment(r *router.Request) (any, error) {
	var req BeginEnrollmentRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.BeginEnrollment(r.Context(), usecase.BeginEnrollmentInput{CandidateSecret: req.Secret})
	if err != nil {
		return nil, err
	}

	return BeginEnrollmentResponse{
		Secret:     out.Secret,
		URI:        out.URI,
		Provenance: string(out.Provenance),
		Hint: EnrollmentHintResponse{
			Label:        out.Hint.Label,
			Instructions: out.Hint.Instructions,
			CodeLength:   out.Hint.CodeLength,
		},
	}, nil
}

// ConfirmEnrollment creates the factor once a code from the device matches.
// @Summary Confirm TOTP enrollment
// @Description Verifies a code against the enrollment secret and stores the factor.
// @Tags Factor
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body ConfirmEnrollmentRequest true "Confirmation payload"
// @Success 201 {object} router.successResponse{data=ConfirmEnrollmentResponse} "Enrolled factor"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 422 {object} router.errorResponse "Validation error or code rejected"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/factor/totp/enrollment/confirm [post]
func (h *HTTPEndpoint) ConfirmEnrollment(r *router.Request) (any, error) {
	var req ConfirmEnrollmentRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.ConfirmEnrollment(r.Context(), usecase.ConfirmEnrollmentInput{
		Secret: req.Secret,
		Code:   req.Code,
		Name:   req.Name,
	})
	if err != nil {
		return nil, err
	}
	if out.ErrorMessage != "" {
		return nil, goerror.NewInvalidInput(nil, "code", out.ErrorMessage)
	}

	return ConfirmEnrollmentResponse{FactorResponse: toFactorResponse(*out.Factor)}, nil
}

// ListFactors returns the caller's factors.
// @Summary List factors
// @Tags Factor
// @Security BearerAuth
// @Produce json
// @Success 200 {object} router.successResponse{data=FactorsResponse} "Factor list"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/factor [get]
func (h *HTTPEndpoint) ListFactors(r *router.Request) (any, error) {
	items, err := h.uc.ListFactors(r.Context())
	if err != nil {
		return nil, err
	}

	resp := make([]FactorResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toFactorResponse(item))
	}

	return FactorsResponse{Factors: resp}, nil
}

// IssueChallenges issues a challenge for the factor unless one is live.
// @Summary Issue challenges
// @Description Returns the newly issued challenges. An empty list means a live challenge already exists.
// @Tags Factor
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Factor config ID"
// @Param request body IssueChallengesRequest true "Challenge payload"
// @Success 200 {object} router.successResponse{data=IssueChallengesResponse} "Issued challenges"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 404 {object} router.errorResponse "Factor not found"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/factor/challenges/{id} [post]
func (h *HTTPEndpoint) IssueChallenges(r *router.Request) (any, error) {
	id, err := r.GetParamInt64("id")
	if err != nil {
		return nil, err
	}

	var req IssueChallengesRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	issued, err := h.uc.IssueChallenges(r.Context(), usecase.IssueChallengesInput{
		FactorConfigID: id,
		WorkflowKey:    req.Workflow,
	})
	if err != nil {
		return nil, err
	}

	resp := make([]ChallengeResponse, 0, len(issued))
	for _, c := range issued {
		resp = append(resp, ChallengeResponse{
			ID:           c.ID,
			ChallengeKey: int64(c.ChallengeKey),
			Workflow:     c.WorkflowKey,
			ExpiresAt:    c.TTLExpiresAt,
		})
	}

	return IssueChallengesResponse{Challenges: resp}, nil
}

// ValidateResponse checks a code, or a response token from an earlier
// answer, against the factor's live challenge.
// @Summary Validate challenge response
// @Tags Factor
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Factor config ID"
// @Param request body ValidateResponseRequest true "Response payload"
// @Success 200 {object} router.successResponse{data=ValidateResponseResponse} "Answered challenge"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 404 {object} router.errorResponse "Factor not found"
// @Failure 422 {object} router.errorResponse "Code rejected"
// @Failure 429 {object} router.errorResponse "Wait for the code to cycle"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/factor/challenges/{id}/validate [post]
func (h *HTTPEndpoint) ValidateResponse(r *router.Request) (any, error) {
	id, err := r.GetParamInt64("id")
	if err != nil {
		return nil, err
	}

	var req ValidateResponseRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	res, err := h.uc.ValidateResponse(r.Context(), usecase.ValidateResponseInput{
		FactorConfigID: id,
		WorkflowKey:    req.Workflow,
		Code:           req.Code,
		ResponseToken:  req.ResponseToken,
	})
	if err != nil {
		return nil, err
	}

	switch res.Outcome() {
	case entity.OutcomeAnswered:
		return ValidateResponseResponse{
			ChallengeID:   res.AnsweredChallenge.ID,
			ResponseToken: res.ResponseToken,
			Timestep:      res.AnsweredChallenge.Properties.GetInt64(entity.PropertyTimestep),
		}, nil
	case entity.OutcomeWait:
		return nil, goerror.NewBusinessWithFields(res.ErrorMessage, goerror.CodeTooManyRequest,
			router.FieldRetryAfter, strconv.FormatInt(res.WaitSeconds, 10))
	default:
		return nil, goerror.NewInvalidInput(nil, "code", res.ErrorMessage)
	}
}

func toFactorResponse(f entity.FactorConfig) FactorResponse {
	return FactorResponse{
		ID:         f.ID,
		Kind:       f.Kind.String(),
		Name:       f.Name,
		KeyVersion: f.KeyVersion,
		CreatedAt:  f.CreatedAt,
	}
}

package inbound

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/gotp/internal/factor/entity"
	"github.com/shandysiswandi/gotp/internal/factor/usecase"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gotp/internal/pkg/router"
	"github.com/shandysiswandi/gotp/internal/pkg/valueobject"
)

type stubUsecase struct {
	validateIn  usecase.ValidateResponseInput
	validateOut *entity.ValidationResult
	issueIn     usecase.IssueChallengesInput
	confirmOut  *usecase.ConfirmEnrollmentOutput
	err         error
}

func (s *stubUsecase) BeginEnrollment(_ context.Context, in usecase.BeginEnrollmentInput) (*usecase.BeginEnrollmentOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.BeginEnrollmentOutput{
		Secret:     "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP",
		URI:        "otpauth://totp/gotp:alice",
		Provenance: entity.ProvenanceGenerated,
		Hint:       entity.EnrollmentHint{Label: "Authenticator app", CodeLength: 6},
	}, nil
}

func (s *stubUsecase) ConfirmEnrollment(_ context.Context, _ usecase.ConfirmEnrollmentInput) (*usecase.ConfirmEnrollmentOutput, error) {
	return s.confirmOut, s.err
}

func (s *stubUsecase) ListFactors(_ context.Context) ([]entity.FactorConfig, error) {
	return []entity.FactorConfig{{ID: 7, Kind: entity.FactorKindTOTP, Name: "phone", KeyVersion: 1}}, s.err
}

func (s *stubUsecase) IssueChallenges(_ context.Context, in usecase.IssueChallengesInput) ([]entity.Challenge, error) {
	s.issueIn = in
	if s.err != nil {
		return nil, s.err
	}
	return []entity.Challenge{{ID: 100, ChallengeKey: 1000, WorkflowKey: in.WorkflowKey, TTLExpiresAt: time.Unix(30090, 0)}}, nil
}

func (s *stubUsecase) ValidateResponse(_ context.Context, in usecase.ValidateResponseInput) (*entity.ValidationResult, error) {
	s.validateIn = in
	return s.validateOut, s.err
}

func newRequest(method, body string, params ...httprouter.Param) *router.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	if len(params) > 0 {
		req = req.WithContext(context.WithValue(req.Context(), httprouter.ParamsKey, httprouter.Params(params)))
	}
	return &router.Request{Request: req}
}

func asGoError(t *testing.T, err error) *goerror.Error {
	t.Helper()

	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *goerror.Error, got %T (%v)", err, err)
	}
	return gerr
}

func TestValidateResponse_Outcomes(t *testing.T) {
	answered := &entity.Challenge{ID: 100, Properties: valueobject.JSONMap{entity.PropertyTimestep: int64(1001)}}

	tests := []struct {
		name       string
		out        *entity.ValidationResult
		wantStatus int
		wantField  string
		wantValue  string
	}{
		{
			name:       "wait",
			out:        &entity.ValidationResult{IsWait: true, WaitSeconds: 31, ErrorMessage: "Wait 31 second(s)"},
			wantStatus: http.StatusTooManyRequests,
			wantField:  router.FieldRetryAfter,
			wantValue:  "31",
		},
		{
			name:       "invalid",
			out:        &entity.ValidationResult{ErrorMessage: entity.ErrorMessageInvalid},
			wantStatus: http.StatusUnprocessableEntity,
			wantField:  "code",
			wantValue:  entity.ErrorMessageInvalid,
		},
		{
			name:       "required",
			out:        &entity.ValidationResult{ErrorMessage: entity.ErrorMessageRequired},
			wantStatus: http.StatusUnprocessableEntity,
			wantField:  "code",
			wantValue:  entity.ErrorMessageRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end := &HTTPEndpoint{uc: &stubUsecase{validateOut: tt.out}}

			_, err := end.ValidateResponse(newRequest(http.MethodPost, `{"workflow":"login","code":"123456"}`,
				httprouter.Param{Key: "id", Value: "7"}))

			gerr := asGoError(t, err)
			if gerr.StatusCode() != tt.wantStatus {
				t.Fatalf("status %d, want %d", gerr.StatusCode(), tt.wantStatus)
			}
			if got := gerr.Fields()[tt.wantField]; got != tt.wantValue {
				t.Fatalf("field %s = %q, want %q", tt.wantField, got, tt.wantValue)
			}
		})
	}

	t.Run("answered", func(t *testing.T) {
		stub := &stubUsecase{validateOut: &entity.ValidationResult{AnsweredChallenge: answered, ResponseToken: "abcd"}}
		end := &HTTPEndpoint{uc: stub}

		resp, err := end.ValidateResponse(newRequest(http.MethodPost, `{"workflow":"login","response_token":"ab12"}`,
			httprouter.Param{Key: "id", Value: "7"}))
		if err != nil {
			t.Fatalf("validate: %v", err)
		}

		got, ok := resp.(ValidateResponseResponse)
		if !ok {
			t.Fatalf("unexpected response type %T", resp)
		}
		if got.ChallengeID != 100 || got.ResponseToken != "abcd" || got.Timestep != 1001 {
			t.Fatalf("unexpected response %+v", got)
		}
		if stub.validateIn.FactorConfigID != 7 || stub.validateIn.ResponseToken != "ab12" || stub.validateIn.WorkflowKey != "login" {
			t.Fatalf("unexpected usecase input %+v", stub.validateIn)
		}
	})
}

func TestValidateResponse_BadRequest(t *testing.T) {
	end := &HTTPEndpoint{uc: &stubUsecase{}}

	_, err := end.ValidateResponse(newRequest(http.MethodPost, `{}`, httprouter.Param{Key: "id", Value: "abc"}))
	if goerror.CodeOf(err) != goerror.CodeInvalidFormat {
		t.Fatalf("bad id: %v", err)
	}

	_, err = end.ValidateResponse(newRequest(http.MethodPost, `{"unknown":1}`, httprouter.Param{Key: "id", Value: "7"}))
	if goerror.CodeOf(err) != goerror.CodeInvalidFormat {
		t.Fatalf("unknown field: %v", err)
	}
}

func TestIssueChallenges(t *testing.T) {
	stub := &stubUsecase{}
	end := &HTTPEndpoint{uc: stub}

	resp, err := end.IssueChallenges(newRequest(http.MethodPost, `{"workflow":"settings"}`, httprouter.Param{Key: "id", Value: "7"}))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	got := resp.(IssueChallengesResponse)
	if len(got.Challenges) != 1 || got.Challenges[0].ChallengeKey != 1000 || got.Challenges[0].Workflow != "settings" {
		t.Fatalf("unexpected response %+v", got)
	}
	if stub.issueIn.FactorConfigID != 7 {
		t.Fatalf("unexpected usecase input %+v", stub.issueIn)
	}
}

func TestConfirmEnrollment(t *testing.T) {
	t.Run("rejected code", func(t *testing.T) {
		end := &HTTPEndpoint{uc: &stubUsecase{confirmOut: &usecase.ConfirmEnrollmentOutput{ErrorMessage: entity.ErrorMessageInvalid}}}

		_, err := end.ConfirmEnrollment(newRequest(http.MethodPost, `{"secret":"x","code":"1","name":"phone"}`))
		gerr := asGoError(t, err)
		if gerr.StatusCode() != http.StatusUnprocessableEntity || gerr.Fields()["code"] != entity.ErrorMessageInvalid {
			t.Fatalf("unexpected error %v", gerr)
		}
	})

	t.Run("created", func(t *testing.T) {
		factor := &entity.FactorConfig{ID: 9, Kind: entity.FactorKindTOTP, Name: "phone", KeyVersion: 1}
		end := &HTTPEndpoint{uc: &stubUsecase{confirmOut: &usecase.ConfirmEnrollmentOutput{Factor: factor}}}

		resp, err := end.ConfirmEnrollment(newRequest(http.MethodPost, `{"secret":"x","code":"1","name":"phone"}`))
		if err != nil {
			t.Fatalf("confirm: %v", err)
		}

		got := resp.(ConfirmEnrollmentResponse)
		if got.StatusCode() != http.StatusCreated || got.ID != 9 || got.Kind != "totp" {
			t.Fatalf("unexpected response %+v", got)
		}
	})
}

func TestBeginEnrollmentAndList(t *testing.T) {
	end := &HTTPEndpoint{uc: &stubUsecase{}}

	resp, err := end.BeginEnrollment(newRequest(http.MethodPost, `{}`))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if got := resp.(BeginEnrollmentResponse); got.Provenance != "generated" || got.Hint.CodeLength != 6 {
		t.Fatalf("unexpected response %+v", got)
	}

	resp, err = end.ListFactors(newRequest(http.MethodGet, ""))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := resp.(FactorsResponse); len(got.Factors) != 1 || got.Factors[0].Name != "phone" {
		t.Fatalf("unexpected response %+v", got)
	}

	boom := goerror.NewBusiness("Authentication required", goerror.CodeUnauthorized)
	if _, err := (&HTTPEndpoint{uc: &stubUsecase{err: boom}}).BeginEnrollment(newRequest(http.MethodPost, `{}`)); !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}

package goerror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_StatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewServer(errors.New("db down")), http.StatusInternalServerError},
		{NewBusiness("authentication required", CodeUnauthorized), http.StatusUnauthorized},
		{NewBusinessWithFields("wait", CodeTooManyRequest, "retry_after", "31"), http.StatusTooManyRequests},
		{NewInvalidInput(nil, "code", "Invalid"), http.StatusUnprocessableEntity},
		{NewInvalidFormat(), http.StatusBadRequest},
		{NewBusiness("factor not found", CodeNotFound), http.StatusNotFound},
	}

	for _, tt := range tests {
		var gerr *Error
		if !errors.As(tt.err, &gerr) {
			t.Fatalf("%v is not *Error", tt.err)
		}
		if got := gerr.StatusCode(); got != tt.want {
			t.Errorf("%s: got %d, want %d", gerr.String(), got, tt.want)
		}
	}
}

func TestNewBusinessWithFields(t *testing.T) {
	err := NewBusinessWithFields("wait", CodeTooManyRequest, "retry_after", "31", "dangling")

	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatal("not *Error")
	}
	if gerr.Msg() != "wait" || gerr.Type() != TypeBusiness {
		t.Fatalf("unexpected error %s", gerr.String())
	}
	if len(gerr.Fields()) != 1 || gerr.Fields()["retry_after"] != "31" {
		t.Fatalf("unexpected fields %v", gerr.Fields())
	}
}

func TestNewServer_Unwrap(t *testing.T) {
	cause := errors.New("ledger corrupted")
	err := fmt.Errorf("validate: %w", NewServer(cause))

	if !errors.Is(err, cause) {
		t.Fatal("server error does not unwrap to its cause")
	}
	if CodeOf(err) != CodeInternal {
		t.Fatalf("got code %s", CodeOf(err))
	}
	if CodeOf(NewInvalidInput(nil, "code", "Required")) != CodeInvalidInput {
		t.Fatal("CodeOf lost the validation code")
	}
	if CodeOf(errors.New("plain")) != CodeInternal {
		t.Fatal("plain errors should map to CodeInternal")
	}
}

func TestCode_Status(t *testing.T) {
	if CodeTimeout.Status() != http.StatusRequestTimeout || CodeTimeout.String() != "ERROR_CODE_TIMEOUT" {
		t.Fatalf("timeout maps to %d %s", CodeTimeout.Status(), CodeTimeout)
	}
	if Code(99).Status() != http.StatusInternalServerError || Code(99).String() != "ERROR_CODE_INTERNAL" {
		t.Fatal("unknown codes must fall back to internal")
	}
}

func TestNewInvalidInput_OddPairs(t *testing.T) {
	if CodeOf(NewInvalidInput(nil, "code")) != CodeInvalidFormat {
		t.Fatal("odd key/value list must be reported as invalid format")
	}

	var gerr *Error
	if !errors.As(NewInvalidInput(errors.New("validator")), &gerr) || gerr.Fields() != nil {
		t.Fatal("wrapped validator errors carry no fields")
	}
}

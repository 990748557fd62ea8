package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gotp/internal/pkg/validator"
)

// FieldRetryAfter is the error field that is mirrored into the Retry-After
// header so clients can back off without parsing the body.
const FieldRetryAfter = "retry_after"

const defaultSuccessMessage = "request has been successfully"

type errorResponse struct {
	Message string            `json:"message" example:"example string message"`
	Error   map[string]string `json:"error,omitempty"`
}

type successResponse struct {
	Message string         `json:"message" example:"example string message"`
	Data    any            `json:"data" swaggertype:"object"`
	Meta    map[string]any `json:"meta,omitempty" swaggertype:"object"`
}

// Optional interfaces a handler's response may implement to shape the
// envelope.
type (
	statusCoder interface{ StatusCode() int }
	messenger   interface{ Message() string }
	metaCarrier interface{ Meta() map[string]any }
)

func writeSuccess(w http.ResponseWriter, resp any) {
	code := http.StatusOK
	if sc, ok := resp.(statusCoder); ok {
		code = sc.StatusCode()
	}
	if resp == nil || code == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	out := successResponse{Message: defaultSuccessMessage, Data: resp}
	if m, ok := resp.(messenger); ok {
		out.Message = m.Message()
	}
	if m, ok := resp.(metaCarrier); ok {
		out.Meta = m.Meta()
	}

	writeJSON(w, out, code)
}

// writeError renders err. Anything that is not a *goerror.Error is hidden
// behind a generic 500.
func writeError(w http.ResponseWriter, err error) {
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
		return
	}

	out := errorResponse{Message: gerr.Msg(), Error: gerr.Fields()}
	if after, ok := gerr.Fields()[FieldRetryAfter]; ok {
		w.Header().Set("Retry-After", after)
	}

	var verr validator.V10ValidationError
	if errors.As(err, &verr) {
		out.Error = verr.Values()
	}
	if len(out.Error) == 0 {
		out.Error = nil
	}

	writeJSON(w, out, gerr.StatusCode())
}

func writeJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("server: failed to encode data to json", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, map[string]string{"message": msg}, code)
}

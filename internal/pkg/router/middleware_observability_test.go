package router

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shandysiswandi/gotp/internal/pkg/jwt"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	return &buf
}

func TestObservability_MasksBodies(t *testing.T) {
	logs := captureLogs(t)

	ro := newTestRouter(stubJWT{claims: jwt.Claims{UserID: 7, SessionID: "s"}})
	ro.POST("/api/v1/factor/challenges/:id/validate", func(r *Request) (any, error) {
		var in struct {
			Code string `json:"code"`
		}
		if err := r.DecodeBody(&in); err != nil {
			return nil, err
		}
		if in.Code != "492039" {
			t.Errorf("handler saw code %q", in.Code)
		}
		return map[string]string{"response_token": "tok-secret", "workflow": "login"}, nil
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/factor/challenges/9/validate", strings.NewReader(`{"code":"492039"}`))
	req.Header.Set("Authorization", "Bearer abc")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ro.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	out := logs.String()
	for _, leaked := range []string{"492039", "tok-secret", "Bearer abc"} {
		if strings.Contains(out, leaked) {
			t.Fatalf("log leaked %q: %s", leaked, out)
		}
	}
	for _, want := range []string{"request received", "response sent", "/api/v1/factor/challenges/:id/validate", "login"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q: %s", want, out)
		}
	}
}

func TestCapture_TruncatesLoggedBody(t *testing.T) {
	rec := &capture{ResponseWriter: httptest.NewRecorder()}

	big := bytes.Repeat([]byte("a"), maxLoggedBody+10)
	if n, err := rec.Write(big); err != nil || n != len(big) {
		t.Fatalf("write %d %v", n, err)
	}

	if rec.body.Len() != maxLoggedBody || !rec.truncated || rec.written != len(big) {
		t.Fatalf("logged %d truncated=%v written=%d", rec.body.Len(), rec.truncated, rec.written)
	}
	if rec.statusCode() != http.StatusOK {
		t.Fatalf("status %d", rec.statusCode())
	}
}

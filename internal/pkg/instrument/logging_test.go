package instrument

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer, extra ...string) *slog.Logger {
	return slog.New(&contextHandler{
		Handler: &maskHandler{
			next:   slog.NewJSONHandler(buf, nil),
			masker: NewMasker(extra...),
		},
		serviceName: "gotp",
	})
}

func TestMaskHandler_DefaultFields(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf, "friendly_name")

	log.Info("validate",
		"code", "123456",
		"response_token", "abc",
		"friendly_name", "phone",
		"factor_config_id", 7,
		"body", `{"secret":"KFP6EBHK","workflow":"login"}`,
	)

	out := buf.String()
	for _, leaked := range []string{"123456", `"abc"`, "phone", "KFP6EBHK"} {
		if strings.Contains(out, leaked) {
			t.Fatalf("log leaked %s: %s", leaked, out)
		}
	}
	if !strings.Contains(out, `"factor_config_id":7`) || !strings.Contains(out, "login") {
		t.Fatalf("log dropped non-secret fields: %s", out)
	}
}

func TestContextHandler_CorrelationID(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf)

	ctx := SetCorrelationID(context.Background(), "cid-1")
	log.InfoContext(ctx, "hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["_cID"] != "cid-1" || rec["service"] != "gotp" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestGetCorrelationID_Empty(t *testing.T) {
	if got := GetCorrelationID(context.Background()); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/gotp/internal/pkg/jwt"
	"github.com/shandysiswandi/gotp/internal/pkg/otp"
)

// standaloneYAML runs every module on in-process drivers so the whole app
// boots without Postgres, Redis or a broker.
const standaloneYAML = `
app:
  tz: UTC
  server:
    max_goroutine: 50
    http:
      address: "127.0.0.1:0"
instrument:
  enabled: false
  service_name: gotp-test
uid:
  node_id: 9
jwt:
  secret: app-test-jwt-secret-0123456789abcdef0123456789abcdef0123456789abcdef
  issuer: gotp
  audiences: [gotp]
  ttl_minutes: 5
hash:
  hmac:
    secret: app-test-hmac-secret
mfa:
  key_version: 2
  secret: MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=
  retired_secrets:
    "1": ZmVkY2JhOTg3NjU0MzIxMGZlZGNiYTk4NzY1NDMyMTA=
otp:
  issuer: GOTP
messaging:
  driver: memory
modules:
  factor:
    enabled: true
    ledger_driver: memory
  audit:
    enabled: true
`

type successEnvelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Message string            `json:"message"`
	Error   map[string]string `json:"error"`
}

type client struct {
	t       *testing.T
	baseURL string
	token   string
	http    *http.Client
}

func (c *client) doJSON(method, path string, payload any) (int, http.Header, []byte) {
	c.t.Helper()

	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			c.t.Fatalf("encode json: %v", err)
		}
		body = buf
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read response: %v", err)
	}

	return resp.StatusCode, resp.Header, respBody
}

func decodeSuccess(t *testing.T, body []byte, out any) {
	t.Helper()

	var env successEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode success envelope: %v", err)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode success data: %v", err)
		}
	}
}

func decodeError(t *testing.T, body []byte) errorEnvelope {
	t.Helper()

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env
}

func startApp(t *testing.T) (*App, *client) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(standaloneYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("TZ", "UTC")

	application := New()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	application.Serve(l)

	// the in-process broker drops events published before the audit
	// consumers join
	time.Sleep(100 * time.Millisecond)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		application.Stop(ctx)
	})

	token, err := application.jwt.Generate(jwt.Subject{UserID: 77, Account: "bob@example.com", SessionID: "sess-app"})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	return application, &client{
		t:       t,
		baseURL: "http://" + l.Addr().String(),
		token:   token,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func TestApp_FactorLifecycle(t *testing.T) {
	_, c := startApp(t)

	status, _, body := c.doJSON(http.MethodPost, "/api/v1/factor/totp/enrollment", map[string]string{})
	if status != http.StatusOK {
		t.Fatalf("begin enrollment: status=%d body=%s", status, body)
	}
	var begun struct {
		Secret string `json:"secret"`
		URI    string `json:"uri"`
	}
	decodeSuccess(t, body, &begun)
	if !strings.HasPrefix(begun.URI, "otpauth://totp/") {
		t.Fatalf("unexpected uri %q", begun.URI)
	}

	raw, err := otp.Base32Decode(begun.Secret)
	if err != nil {
		t.Fatalf("decode secret: %v", err)
	}
	codeNow := func() string { return otp.ComputeCode(raw, otp.CurrentTimestep(time.Now())) }

	status, _, body = c.doJSON(http.MethodPost, "/api/v1/factor/totp/enrollment/confirm", map[string]string{
		"secret": begun.Secret,
		"code":   codeNow(),
		"name":   "work phone",
	})
	if status != http.StatusCreated {
		t.Fatalf("confirm enrollment: status=%d body=%s", status, body)
	}
	var factor struct {
		ID         int64 `json:"id"`
		KeyVersion int16 `json:"key_version"`
	}
	decodeSuccess(t, body, &factor)
	if factor.KeyVersion != 2 {
		t.Fatalf("factor sealed with key version %d, want 2", factor.KeyVersion)
	}

	base := "/api/v1/factor/challenges/" + strconv.FormatInt(factor.ID, 10)

	status, _, body = c.doJSON(http.MethodPost, base, map[string]string{"workflow": "login"})
	if status != http.StatusOK {
		t.Fatalf("issue challenges: status=%d body=%s", status, body)
	}

	status, _, body = c.doJSON(http.MethodPost, base+"/validate", map[string]string{"workflow": "login", "code": codeNow()})
	if status != http.StatusOK {
		t.Fatalf("validate: status=%d body=%s", status, body)
	}
	var answered struct {
		ResponseToken string `json:"response_token"`
	}
	decodeSuccess(t, body, &answered)
	if answered.ResponseToken == "" {
		t.Fatal("missing response token")
	}

	status, header, body := c.doJSON(http.MethodPost, base+"/validate", map[string]string{"workflow": "login", "code": codeNow()})
	if status != http.StatusTooManyRequests {
		t.Fatalf("replay: status=%d body=%s", status, body)
	}
	if header.Get("Retry-After") == "" {
		t.Fatal("replay must carry Retry-After")
	}

	status, _, body = c.doJSON(http.MethodPost, base+"/validate", map[string]string{"workflow": "settings", "code": codeNow()})
	if status != http.StatusTooManyRequests {
		t.Fatalf("other workflow while challenge is live: status=%d body=%s", status, body)
	}
	if env := decodeError(t, body); !strings.Contains(env.Message, "different workflow") {
		t.Fatalf("unexpected wait message %q", env.Message)
	}

	status, _, body = c.doJSON(http.MethodPost, "/api/v1/factor/totp/enrollment/confirm", map[string]string{
		"secret": begun.Secret,
		"code":   "",
		"name":   "again",
	})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("confirm without code: status=%d body=%s", status, body)
	}
	if env := decodeError(t, body); env.Error["code"] == "" {
		t.Fatalf("missing code must be reported on the code field: %+v", env)
	}

	// audit entries arrive through the broker asynchronously
	deadline := time.Now().Add(5 * time.Second)
	for {
		status, _, body = c.doJSON(http.MethodGet, "/api/v1/factor/audit?limit=50", nil)
		if status != http.StatusOK {
			t.Fatalf("list audit: status=%d body=%s", status, body)
		}
		var audit struct {
			Entries []struct {
				Event string `json:"event"`
			} `json:"entries"`
		}
		decodeSuccess(t, body, &audit)

		seen := map[string]bool{}
		for _, e := range audit.Entries {
			seen[e.Event] = true
		}
		if seen["factor.enrolled"] && seen["factor.challenge.issued"] && seen["factor.challenge.answered"] {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("audit trail incomplete: %+v", audit.Entries)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestApp_RejectsAnonymous(t *testing.T) {
	_, c := startApp(t)
	c.token = ""

	status, _, body := c.doJSON(http.MethodGet, "/api/v1/factor", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("status=%d body=%s", status, body)
	}
}

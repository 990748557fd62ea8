package instrument

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

// DefaultMaskFields are always redacted. Factor secrets, submitted codes and
// proof-of-answer tokens must never reach a log sink.
var DefaultMaskFields = []string{
	"secret", "code", "token", "response_token", "candidate_secret",
	"authorization", "password",
}

const redacted = "***"

// Masker redacts values whose key matches one of its fields, compared case
// insensitively, in headers, decoded JSON, form bodies and slog attributes.
type Masker struct {
	keys map[string]struct{}
}

// NewMasker builds a Masker for DefaultMaskFields plus extra.
func NewMasker(extra ...string) *Masker {
	m := &Masker{keys: make(map[string]struct{}, len(DefaultMaskFields)+len(extra))}
	for _, group := range [][]string{DefaultMaskFields, extra} {
		for _, field := range group {
			if field = strings.ToLower(strings.TrimSpace(field)); field != "" {
				m.keys[field] = struct{}{}
			}
		}
	}
	return m
}

// Masks reports whether values under key are redacted.
func (m *Masker) Masks(key string) bool {
	_, ok := m.keys[strings.ToLower(key)]
	return ok
}

// Value walks maps and slices produced by encoding/json and returns a
// redacted copy. Other values are returned unchanged.
func (m *Masker) Value(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if m.Masks(k) {
				out[k] = redacted
				continue
			}
			out[k] = m.Value(item)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if m.Masks(k) {
				out[k] = redacted
				continue
			}
			out[k] = item
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = m.Value(item)
		}
		return out
	default:
		return v
	}
}

// Header returns a copy of h with masked headers replaced.
func (m *Masker) Header(h http.Header) http.Header {
	out := h.Clone()
	for k := range out {
		if m.Masks(k) {
			out.Set(k, redacted)
		}
	}
	return out
}

// JSON redacts a JSON document. ok is false when payload is not JSON.
func (m *Masker) JSON(payload []byte) (masked []byte, ok bool) {
	var doc any
	if len(payload) == 0 || json.Unmarshal(payload, &doc) != nil {
		return nil, false
	}

	out, err := json.Marshal(m.Value(doc))
	if err != nil {
		return nil, false
	}
	return out, true
}

// Body renders an HTTP body for logging: JSON and urlencoded forms are
// decoded and redacted, other text is kept and binary content is omitted.
func (m *Masker) Body(contentType string, body []byte) any {
	if len(body) == 0 {
		return nil
	}

	var doc any
	if json.Unmarshal(body, &doc) == nil {
		return m.Value(doc)
	}

	if strings.HasPrefix(strings.ToLower(contentType), "application/x-www-form-urlencoded") {
		if values, err := url.ParseQuery(string(body)); err == nil {
			form := make(map[string]any, len(values))
			for k, v := range values {
				switch {
				case m.Masks(k):
					form[k] = redacted
				case len(v) == 1:
					form[k] = v[0]
				default:
					form[k] = v
				}
			}
			return form
		}
	}

	if !utf8.Valid(body) {
		return "<binary body omitted>"
	}
	return string(body)
}

// Attr redacts a slog attribute, descending into groups and JSON encoded
// string or []byte values.
func (m *Masker) Attr(a slog.Attr) slog.Attr {
	if m.Masks(a.Key) {
		return slog.String(a.Key, redacted)
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, ga := range group {
			out[i] = m.Attr(ga)
		}
		a.Value = slog.GroupValue(out...)
	case slog.KindString:
		s := a.Value.String()
		if s != "" && (s[0] == '{' || s[0] == '[') {
			if masked, ok := m.JSON([]byte(s)); ok {
				a.Value = slog.StringValue(string(masked))
			}
		}
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case map[string]any, map[string]string, []any:
			a.Value = slog.AnyValue(m.Value(v))
		case []byte:
			if masked, ok := m.JSON(v); ok {
				a.Value = slog.StringValue(string(masked))
			}
		}
	}

	return a
}

package otp

import (
	"bytes"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"github.com/pquerna/otp/totp"
)

// RFC 6238 appendix B uses this ASCII seed for SHA1.
var rfcSecret = []byte("12345678901234567890")

func TestComputeCode_RFC4226Vectors(t *testing.T) {
	want := []string{
		"755224", "287082", "359152", "969429", "338314",
		"254676", "287922", "162583", "399871", "520489",
	}

	for counter, code := range want {
		if got := ComputeCode(rfcSecret, Timestep(counter)); got != code {
			t.Errorf("counter %d: got %s, want %s", counter, got, code)
		}
	}
}

func TestComputeCode_RFC6238Vectors(t *testing.T) {
	tests := []struct {
		unix int64
		want string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
		{20000000000, "353130"},
	}

	for _, tt := range tests {
		ts := CurrentTimestep(time.Unix(tt.unix, 0))
		if got := ComputeCode(rfcSecret, ts); got != tt.want {
			t.Errorf("unix %d: got %s, want %s", tt.unix, got, tt.want)
		}
	}
}

func TestComputeCode_MatchesPquerna(t *testing.T) {
	const secret = "KFP6EBHKHTWE2PHK5GOK7K2ARBZWQDBV"

	raw, err := Base32Decode(secret)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	for _, counter := range []uint64{0, 1, 999, 1000, 1001, 56_000_000} {
		want, err := hotp.GenerateCodeCustom(secret, counter, hotp.ValidateOpts{
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			t.Fatalf("hotp: %v", err)
		}

		if got := ComputeCode(raw, Timestep(counter)); got != want {
			t.Errorf("counter %d: got %s, want %s", counter, got, want)
		}
	}

	at := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	want, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("totp: %v", err)
	}
	if got := ComputeCode(raw, CurrentTimestep(at)); got != want {
		t.Errorf("totp: got %s, want %s", got, want)
	}
}

func TestComputeCode_AlwaysSixDigits(t *testing.T) {
	secrets := [][]byte{{}, {0x00}, rfcSecret, bytes.Repeat([]byte{0xff}, 64)}

	for _, s := range secrets {
		for ts := Timestep(0); ts < 200; ts++ {
			code := ComputeCode(s, ts)
			if len(code) != Digits {
				t.Fatalf("code %q has length %d", code, len(code))
			}
			if strings.Trim(code, "0123456789") != "" {
				t.Fatalf("code %q is not numeric", code)
			}
			if again := ComputeCode(s, ts); again != code {
				t.Fatalf("not deterministic: %s then %s", code, again)
			}
		}
	}
}

func TestBase32Decode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{"empty", "", []byte{}},
		{"partial byte is dropped", "A", []byte{}},
		{"lowercase", "my", []byte("f")},
		{"rfc4648 fooba", "MZXW6YTB", []byte("fooba")},
		{"rfc4648 foobar", "MZXW6YTBOI", []byte("foobar")},
		{"rfc secret", "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ", rfcSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Base32Decode(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("got %x, want %x", got, tt.want)
			}
		})
	}
}

func TestBase32Decode_RejectsUnknownSymbol(t *testing.T) {
	for _, in := range []string{"ABC1", "ABCD=", "AB CD", "ABCDÉ"} {
		_, err := Base32Decode(in)

		var decErr *DecodeError
		if !errors.As(err, &decErr) {
			t.Fatalf("%q: expected DecodeError, got %v", in, err)
		}
	}

	_, err := Base32Decode("ABC8")
	var decErr *DecodeError
	if !errors.As(err, &decErr) || decErr.Offset != 3 || decErr.Symbol != '8' {
		t.Fatalf("unexpected error detail: %+v", err)
	}
}

func TestBase32_RoundTrip(t *testing.T) {
	for n := 0; n <= 40; n++ {
		in := make([]byte, n)
		for i := range in {
			in[i] = byte(i*37 + n)
		}

		got, err := Base32Decode(Base32Encode(in))
		if err != nil {
			t.Fatalf("len %d: %v", n, err)
		}
		if !bytes.Equal(got, in) {
			t.Fatalf("len %d: got %x, want %x", n, got, in)
		}
	}
}

func TestCurrentTimestep(t *testing.T) {
	tests := []struct {
		unix int64
		want Timestep
	}{
		{0, 0},
		{29, 0},
		{30, 1},
		{30000, 1000},
		{30029, 1000},
		{-1, -1},
		{-30, -1},
		{-31, -2},
	}

	for _, tt := range tests {
		if got := CurrentTimestep(time.Unix(tt.unix, 0)); got != tt.want {
			t.Errorf("unix %d: got %d, want %d", tt.unix, got, tt.want)
		}
	}
}

func TestAllowedTimesteps(t *testing.T) {
	got := AllowedTimesteps(1000)
	want := []Timestep{999, 1000, 1001}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	if !InWindow(1000, 1001) || InWindow(1000, 1002) || InWindow(1000, 998) {
		t.Fatal("InWindow disagrees with AllowedTimesteps")
	}
}

func TestIntersectTimesteps(t *testing.T) {
	got := IntersectTimesteps(AllowedTimesteps(1000), AllowedTimesteps(1001))
	if len(got) != 2 || got[0] != 1000 || got[1] != 1001 {
		t.Fatalf("got %v, want [1000 1001]", got)
	}

	if got := IntersectTimesteps(AllowedTimesteps(1000), AllowedTimesteps(1003)); len(got) != 0 {
		t.Fatalf("expected empty intersection, got %v", got)
	}
}

func TestChallengeTTL(t *testing.T) {
	if got := ChallengeTTL(); got != 90*time.Second {
		t.Fatalf("got %s, want 90s", got)
	}
}

func TestMatchTimestep_Window(t *testing.T) {
	code := ComputeCode(rfcSecret, 1000)

	for _, current := range []Timestep{999, 1000, 1001} {
		ts, ok := MatchTimestep(rfcSecret, code, AllowedTimesteps(current))
		if !ok || ts != 1000 {
			t.Errorf("current %d: got (%d, %v), want (1000, true)", current, ts, ok)
		}
	}

	for _, current := range []Timestep{998, 1002} {
		if _, ok := MatchTimestep(rfcSecret, code, AllowedTimesteps(current)); ok {
			t.Errorf("current %d: unexpected match", current)
		}
	}

	if _, ok := MatchTimestep(rfcSecret, "", AllowedTimesteps(1000)); ok {
		t.Error("empty code matched")
	}
}

func TestTOTP_NewKey(t *testing.T) {
	gen := NewTOTP("gotp.example")

	key, err := gen.NewKey("alice@example.com")
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}

	if len(key.Secret) != 32 {
		t.Fatalf("secret length %d, want 32", len(key.Secret))
	}
	if strings.Trim(key.Secret, base32Alphabet) != "" {
		t.Fatalf("secret %q has symbols outside the alphabet", key.Secret)
	}

	u, err := url.Parse(key.URI)
	if err != nil {
		t.Fatalf("parse uri: %v", err)
	}
	if u.Scheme != "otpauth" || u.Host != "totp" {
		t.Fatalf("unexpected uri %s", key.URI)
	}
	if u.Query().Get("issuer") != "gotp.example" || u.Query().Get("secret") != key.Secret {
		t.Fatalf("unexpected uri query %s", u.RawQuery)
	}

	other, err := gen.NewKey("alice@example.com")
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	if other.Secret == key.Secret {
		t.Fatal("two generated secrets are equal")
	}
}

func TestTOTP_KeyFor(t *testing.T) {
	gen := NewTOTP("gotp.example")

	key, err := gen.KeyFor("bob", "kfp6ebhkhtwe2phk5gok7k2arbzwqdbv")
	if err != nil {
		t.Fatalf("KeyFor: %v", err)
	}
	if key.Secret != "KFP6EBHKHTWE2PHK5GOK7K2ARBZWQDBV" {
		t.Fatalf("got secret %s", key.Secret)
	}

	if _, err := gen.KeyFor("bob", "not-base32!"); err == nil {
		t.Fatal("expected decode error")
	}
}

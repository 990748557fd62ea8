package otp

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // RFC 6238 default algorithm
	"crypto/subtle"
	"encoding/binary"
	"fmt"
)

// Digits is the length of every generated code.
const Digits = 6

const codeModulus = 1_000_000

// ComputeCode returns the zero-padded 6 digit code for secret at timestep ts.
func ComputeCode(secret []byte, ts Timestep) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(ts))

	mac := hmac.New(sha1.New, secret)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	code := uint32(sum[offset]&0x7f)<<24 |
		uint32(sum[offset+1])<<16 |
		uint32(sum[offset+2])<<8 |
		uint32(sum[offset+3])

	return fmt.Sprintf("%0*d", Digits, code%codeModulus)
}

// MatchTimestep reports the first candidate whose code equals code.
// Every comparison runs in constant time.
func MatchTimestep(secret []byte, code string, candidates []Timestep) (Timestep, bool) {
	for _, ts := range candidates {
		expect := ComputeCode(secret, ts)
		if subtle.ConstantTimeCompare([]byte(code), []byte(expect)) == 1 {
			return ts, true
		}
	}

	return 0, false
}

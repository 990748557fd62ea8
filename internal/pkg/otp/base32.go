package otp

import (
	"encoding/base32"
	"fmt"
	"strings"
)

const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

var base32Index = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(base32Alphabet); i++ {
		idx[base32Alphabet[i]] = int8(i)
	}
	return idx
}()

var base32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// DecodeError reports a symbol outside the base32 alphabet.
type DecodeError struct {
	Symbol byte
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("otp: illegal base32 symbol %q at offset %d", e.Symbol, e.Offset)
}

// Base32Decode decodes an unpadded RFC 4648 base32 string. Input is
// case-insensitive and bits that do not complete a final byte are discarded.
func Base32Decode(s string) ([]byte, error) {
	s = strings.ToUpper(s)

	out := make([]byte, 0, len(s)*5/8)
	var acc uint32
	var bits uint
	for i := 0; i < len(s); i++ {
		v := base32Index[s[i]]
		if v < 0 {
			return nil, &DecodeError{Symbol: s[i], Offset: i}
		}

		acc = acc<<5 | uint32(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(acc>>bits))
			acc &= 1<<bits - 1
		}
	}

	return out, nil
}

// Base32Encode encodes b without padding, the form authenticator apps expect.
func Base32Encode(b []byte) string {
	return base32NoPadding.EncodeToString(b)
}

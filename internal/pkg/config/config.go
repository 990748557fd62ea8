package config

import (
	"io"
	"time"
)

// Config is read-only, typed access to configuration keys in dotted form
// ("modules.factor.ledger_driver"). A missing or unconvertible key yields
// the zero value of the requested type.
type Config interface {
	io.Closer

	GetBool(key string) bool
	GetString(key string) string
	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetUint16(key string) uint16
	GetFloat64(key string) float64

	// GetSecond and GetMinute read an integer and scale it to a duration.
	GetSecond(key string) time.Duration
	GetMinute(key string) time.Duration

	// GetBinary decodes a base64 (standard encoding) value.
	GetBinary(key string) []byte

	// GetArray reads a sequence, or a string in the form "a,b,c".
	GetArray(key string) []string

	// GetMap reads a string in the form "k1:v1,k2:v2".
	GetMap(key string) map[string]string
}

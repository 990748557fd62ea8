package valueobject

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"maps"
)

// ErrScanValueNotBytes indicates the database value is not a byte slice.
var ErrScanValueNotBytes = errors.New("valueobject: jsonmap scan value is not []byte")

// JSONMap is a JSON object stored in a json/jsonb column. Numbers are
// decoded as json.Number so snowflake ids survive a round trip.
// @swaggertype object
type JSONMap map[string]any

func (j JSONMap) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONMap) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = JSONMap{}
		return nil
	case map[string]any:
		*j = JSONMap(v)
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return ErrScanValueNotBytes
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var out JSONMap
	if err := dec.Decode(&out); err != nil {
		return err
	}
	*j = out
	return nil
}

func (j JSONMap) Set(key string, value any) {
	j[key] = value
}

// GetString returns "" when key is missing or not a string.
func (j JSONMap) GetString(key string) string {
	s, _ := j[key].(string)
	return s
}

// GetInt64 accepts the integer and float kinds plus json.Number; anything
// else yields 0.
func (j JSONMap) GetInt64(key string) int64 {
	switch v := j[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

// Clone returns a shallow copy; a nil map clones to an empty one.
func (j JSONMap) Clone() JSONMap {
	out := make(JSONMap, len(j))
	maps.Copy(out, j)
	return out
}

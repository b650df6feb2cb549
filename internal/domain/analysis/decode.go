package analysis

import (
	"encoding/json"
	"errors"
	"strings"
)

var errInvalidJSON = errors.New("stored value is not valid JSON")

// DecodeState separates "never written" from "written but unreadable".
type DecodeState uint8

const (
	Absent DecodeState = iota
	Present
	Corrupt
)

// Decoded is the result of reading one stored column.
type Decoded[T any] struct {
	Value T
	State DecodeState
	Err   error
}

// Get returns the value only when it decoded cleanly.
func (d Decoded[T]) Get() (T, bool) {
	return d.Value, d.State == Present
}

// DecodeColumn parses a JSON text column. NULL and blank columns are Absent,
// parse failures are Corrupt and carry the error.
func DecodeColumn[T any](raw *string) Decoded[T] {
	var out Decoded[T]
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return out
	}
	if err := json.Unmarshal([]byte(*raw), &out.Value); err != nil {
		var zero T
		return Decoded[T]{Value: zero, State: Corrupt, Err: err}
	}
	out.State = Present
	return out
}

// RawColumn validates that raw holds JSON and hands it back untouched.
func RawColumn(raw *string) Decoded[json.RawMessage] {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return Decoded[json.RawMessage]{}
	}
	if !json.Valid([]byte(*raw)) {
		return Decoded[json.RawMessage]{State: Corrupt, Err: errInvalidJSON}
	}
	return Decoded[json.RawMessage]{Value: json.RawMessage(*raw), State: Present}
}

// EncodeColumn marshals v for storage in a text column.
func EncodeColumn(v any) (*string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

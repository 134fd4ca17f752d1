// Package codec converts settings between their nested form (as edited in
// forms and documents) and the flat, typed key/value form they are stored in.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/quillblog/quill/internal/apperr"
)

// Kind tags the type of a stored value.
type Kind string

const (
	// KindString is a plain string, stored verbatim.
	KindString Kind = "string"
	// KindNumber is a number, stored in its shortest decimal form.
	KindNumber Kind = "number"
	// KindBool is a boolean, stored as "true" or "false".
	KindBool Kind = "bool"
	// KindJSON is an array, object or null, stored as compact JSON.
	KindJSON Kind = "json"
)

// ErrUnserializable is returned for values that have no stored representation
// (functions, channels, NaN, ...).
var ErrUnserializable = fmt.Errorf("value is not serializable: %w", apperr.ErrValidation)

// Value is a setting value: its raw stored text and the kind needed to decode it.
// An empty Kind marks a legacy value whose type has to be inferred.
type Value struct {
	Kind Kind   `json:"kind"`
	Raw  string `json:"raw"`
}

// String returns a string value.
func String(s string) Value {
	return Value{Kind: KindString, Raw: s}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{Kind: KindBool, Raw: strconv.FormatBool(b)}
}

// Number returns a number value. It fails for NaN and infinities.
func Number(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: %v", ErrUnserializable, f)
	}

	return Value{Kind: KindNumber, Raw: strconv.FormatFloat(f, 'f', -1, 64)}, nil
}

// ValueOf serializes a Go value.
func ValueOf(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Value{Kind: KindJSON, Raw: "null"}, nil
	case Value:
		return t, nil
	case *Value:
		if t == nil {
			return Value{Kind: KindJSON, Raw: "null"}, nil
		}

		return *t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Value{Kind: KindNumber, Raw: strconv.FormatInt(int64(t), 10)}, nil
	case int8:
		return Value{Kind: KindNumber, Raw: strconv.FormatInt(int64(t), 10)}, nil
	case int16:
		return Value{Kind: KindNumber, Raw: strconv.FormatInt(int64(t), 10)}, nil
	case int32:
		return Value{Kind: KindNumber, Raw: strconv.FormatInt(int64(t), 10)}, nil
	case int64:
		return Value{Kind: KindNumber, Raw: strconv.FormatInt(t, 10)}, nil
	case uint:
		return Value{Kind: KindNumber, Raw: strconv.FormatUint(uint64(t), 10)}, nil
	case uint8:
		return Value{Kind: KindNumber, Raw: strconv.FormatUint(uint64(t), 10)}, nil
	case uint16:
		return Value{Kind: KindNumber, Raw: strconv.FormatUint(uint64(t), 10)}, nil
	case uint32:
		return Value{Kind: KindNumber, Raw: strconv.FormatUint(uint64(t), 10)}, nil
	case uint64:
		return Value{Kind: KindNumber, Raw: strconv.FormatUint(t, 10)}, nil
	case json.Number:
		return FromJSON([]byte(t))
	case json.RawMessage:
		return FromJSON(t)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrUnserializable, err) //nolint:errorlint // keep the kind as the wrapped error
	}

	return FromJSON(b)
}

// FromJSON builds a Value from a single JSON document, keeping JSON strings,
// numbers and booleans as their primitive kinds.
func FromJSON(raw []byte) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Value{}, fmt.Errorf("%w: empty json value", ErrUnserializable)
	}

	if !json.Valid(raw) {
		return Value{}, fmt.Errorf("%w: invalid json %q", ErrUnserializable, raw)
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrUnserializable, err) //nolint:errorlint // see ValueOf
		}

		return String(s), nil
	case 't', 'f':
		return Value{Kind: KindBool, Raw: string(raw)}, nil
	case '{', '[', 'n':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrUnserializable, err) //nolint:errorlint // see ValueOf
		}

		return Value{Kind: KindJSON, Raw: buf.String()}, nil
	default:
		return Value{Kind: KindNumber, Raw: string(raw)}, nil
	}
}

// Decode returns the Go representation of the value: string, float64, bool,
// []any, map[string]any or nil. Values that do not parse as their kind are
// returned as their raw string.
func (v Value) Decode() any {
	switch v.Kind {
	case KindString:
		return v.Raw
	case KindNumber:
		if f, err := strconv.ParseFloat(v.Raw, 64); err == nil {
			return f
		}

		return v.Raw
	case KindBool:
		if b, err := strconv.ParseBool(v.Raw); err == nil {
			return b
		}

		return v.Raw
	case KindJSON:
		var out any
		if err := json.Unmarshal([]byte(v.Raw), &out); err == nil {
			return out
		}

		return v.Raw
	default:
		return Infer(v.Raw)
	}
}

// Infer interprets an untagged raw value: JSON when it parses, the raw string otherwise.
func Infer(raw string) any {
	var out any
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out
	}

	return raw
}

// IsNull reports whether v is the JSON null value.
func (v Value) IsNull() bool {
	return v.Kind == KindJSON && v.Raw == "null"
}

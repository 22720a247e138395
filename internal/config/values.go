package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Values is a loosely typed configuration mapping, as decoded from a task file.
//
// Numbers decoded from JSON arrive as float64; the typed accessors below
// normalize the common representations so callers do not have to care which
// file format a value came from.
type Values map[string]any

// Clone returns a shallow copy. Nested maps and slices are shared.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, x := range v {
		out[k] = x
	}
	return out
}

func (v Values) Has(key string) bool {
	if v == nil {
		return false
	}
	x, ok := v[key]
	return ok && x != nil
}

// String returns the value for key rendered as a trimmed string, or "".
func (v Values) String(key string) string {
	if v == nil {
		return ""
	}
	switch x := v[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// Bool returns the boolean for key, or def when unset or unparsable.
func (v Values) Bool(key string, def bool) bool {
	if v == nil {
		return def
	}
	switch x := v[key].(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return def
		}
		return b
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	default:
		return def
	}
}

// Int returns the integer for key. ok is false when the key is unset or the
// value is not a whole number.
func (v Values) Int(key string) (n int, ok bool) {
	if v == nil {
		return 0, false
	}
	switch x := v[key].(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if x != float64(int64(x)) {
			return 0, false
		}
		return int(x), true
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// Decode maps the values onto out (a pointer to a struct with json tags).
// Unknown keys are ignored: a task block legitimately carries fields meant for
// the scheduler and the merger as well as for the agent variant.
func (v Values) Decode(out any) error {
	b, err := json.Marshal(map[string]any(v))
	if err != nil {
		return fmt.Errorf("encode values: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

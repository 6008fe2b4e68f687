package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Numeric holds the literal text of a JSON number or numeric string. Decoding never
// fails on a malformed value; the error surfaces when the value is parsed, so a bad
// field in one record does not break decoding of the surrounding payload.
type Numeric struct {
	raw string
	set bool
}

// NewNumeric builds a Numeric from its text form.
func NewNumeric(s string) Numeric {
	return Numeric{raw: s, set: true}
}

func (n *Numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Numeric{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Numeric{raw: strings.TrimSpace(s), set: true}
		return nil
	}
	*n = Numeric{raw: string(data), set: true}
	return nil
}

func (n Numeric) MarshalJSON() ([]byte, error) {
	if !n.set {
		return []byte("null"), nil
	}
	return json.Marshal(n.raw)
}

// IsSet reports whether the field was present and non-empty.
func (n Numeric) IsSet() bool {
	return n.set && n.raw != ""
}

func (n Numeric) String() string {
	return n.raw
}

// Decimal parses the value, returning def when the field is absent.
func (n Numeric) Decimal(def decimal.Decimal) (decimal.Decimal, error) {
	if !n.IsSet() {
		return def, nil
	}
	d, err := decimal.NewFromString(n.raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", n.raw)
	}
	return d, nil
}

var (
	maxInt = decimal.NewFromInt(math.MaxInt64)
	minInt = decimal.NewFromInt(math.MinInt64)
)

// Int parses the value as a whole number, returning def when the field is absent.
// Integral decimals such as "3.0" are accepted.
func (n Numeric) Int(def int64) (int64, error) {
	if !n.IsSet() {
		return def, nil
	}
	if v, err := strconv.ParseInt(n.raw, 10, 64); err == nil {
		return v, nil
	}
	d, err := decimal.NewFromString(n.raw)
	if err != nil || !d.IsInteger() || d.GreaterThan(maxInt) || d.LessThan(minInt) {
		return 0, fmt.Errorf("invalid integer %q", n.raw)
	}
	return d.IntPart(), nil
}

// Text accepts either a JSON string or a JSON number and keeps its text form.
// Source systems export order numbers as both.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
		return nil
	}
	*t = Text(string(data))
	return nil
}

func (t Text) String() string {
	return string(t)
}

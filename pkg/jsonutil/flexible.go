package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases where
// a service returns numbers or booleans instead of strings. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	return string(raw)
}

// FlexibleFloat decodes a JSON number or a numeric string such as "0.93".
// null and absent values leave Valid false. NaN and infinities are rejected.
type FlexibleFloat struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleFloat) UnmarshalJSON(data []byte) error {
	*f = FlexibleFloat{}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}

	var num float64
	if err := json.Unmarshal(trimmed, &num); err == nil {
		f.Value, f.Valid = num, true
		return nil
	}

	var str string
	if err := json.Unmarshal(trimmed, &str); err != nil {
		return fmt.Errorf("expected number or numeric string, got %s", trimmed)
	}
	str = strings.TrimSpace(str)
	if str == "" {
		return nil
	}

	num, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return fmt.Errorf("invalid numeric string %q", str)
	}
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return fmt.Errorf("non-finite value %q", str)
	}
	f.Value, f.Valid = num, true
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f FlexibleFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Ptr returns the value as a pointer, nil when not Valid.
func (f FlexibleFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

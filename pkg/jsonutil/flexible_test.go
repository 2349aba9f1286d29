package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"string", `"rf-v2"`, "rf-v2"},
		{"integer", `3`, "3"},
		{"float", `1.5`, "1.5"},
		{"bool", `true`, "true"},
		{"null", `null`, ""},
		{"empty", ``, ""},
		{"object fallback", `{"a":1}`, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FlexibleStringValue(json.RawMessage(tt.raw)))
		})
	}
}

func TestFlexibleFloat_Unmarshal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		value   float64
		valid   bool
		wantErr bool
	}{
		{name: "number", raw: `0.93`, value: 0.93, valid: true},
		{name: "negative", raw: `-2.4`, value: -2.4, valid: true},
		{name: "numeric string", raw: `"0.5"`, value: 0.5, valid: true},
		{name: "padded string", raw: `" 12 "`, value: 12, valid: true},
		{name: "null", raw: `null`},
		{name: "empty string", raw: `""`},
		{name: "word", raw: `"high"`, wantErr: true},
		{name: "nan string", raw: `"NaN"`, wantErr: true},
		{name: "bool", raw: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexibleFloat
			err := json.Unmarshal([]byte(tt.raw), &f)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.valid, f.Valid)
			assert.InDelta(t, tt.value, f.Value, 1e-9)
		})
	}
}

func TestFlexibleFloat_InStruct(t *testing.T) {
	var resp struct {
		Prediction FlexibleFloat `json:"prediction"`
		Confidence FlexibleFloat `json:"confidence"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"prediction":"-3.2"}`), &resp))

	require.NotNil(t, resp.Prediction.Ptr())
	assert.InDelta(t, -3.2, *resp.Prediction.Ptr(), 1e-9)
	assert.Nil(t, resp.Confidence.Ptr())

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"prediction":-3.2,"confidence":null}`, string(out))
}

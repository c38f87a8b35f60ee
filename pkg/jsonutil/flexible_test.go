package jsonutil

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNull(t *testing.T) {
	assert.True(t, IsNull(nil))
	assert.True(t, IsNull(json.RawMessage(`null`)))
	assert.True(t, IsNull(json.RawMessage(` null `)))
	assert.False(t, IsNull(json.RawMessage(`""`)))
	assert.False(t, IsNull(json.RawMessage(`0`)))
}

func TestStringValue(t *testing.T) {
	tests := []struct {
		name   string
		input  json.RawMessage
		want   string
		wantOK bool
	}{
		{name: "string", input: json.RawMessage(`"SELECT 1"`), want: "SELECT 1", wantOK: true},
		{name: "empty string", input: json.RawMessage(`""`), want: "", wantOK: true},
		{name: "escaped", input: json.RawMessage(`"a\nb"`), want: "a\nb", wantOK: true},
		{name: "number", input: json.RawMessage(`42`)},
		{name: "boolean", input: json.RawMessage(`true`)},
		{name: "array", input: json.RawMessage(`["SELECT 1"]`)},
		{name: "object", input: json.RawMessage(`{"sql":"SELECT 1"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StringValue(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeParams(t *testing.T) {
	params, err := DecodeParams(json.RawMessage(`[2, 3.5, "LHR", true, null, 9007199254740993, {"a":1}, [1, 2]]`))
	require.NoError(t, err)

	assert.Equal(t, []any{
		int64(2),
		3.5,
		"LHR",
		true,
		nil,
		int64(9007199254740993),
		`{"a":1}`,
		`[1,2]`,
	}, params)
}

func TestDecodeParams_EmptyArray(t *testing.T) {
	params, err := DecodeParams(json.RawMessage(`[]`))
	require.NoError(t, err)
	assert.Empty(t, params)
	assert.NotNil(t, params)
}

func TestDecodeParams_NotArray(t *testing.T) {
	for _, input := range []string{``, `null`, `"x"`, `5`, `{"0":1}`} {
		_, err := DecodeParams(json.RawMessage(input))
		assert.True(t, errors.Is(err, ErrNotArray), "input %q", input)
	}
}

func TestParamValue_Numbers(t *testing.T) {
	v, err := ParamValue(json.RawMessage(`-7`))
	require.NoError(t, err)
	assert.Equal(t, int64(-7), v)

	v, err = ParamValue(json.RawMessage(`1e3`))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, v)
}

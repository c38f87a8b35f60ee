package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckParameterForInjection(t *testing.T) {
	tests := []struct {
		name            string
		value           any
		expectInjection bool
	}{
		{name: "flight number", value: "BA2490"},
		{name: "airport code", value: "LHR"},
		{name: "date", value: "2024-01-15"},
		{name: "passenger name with apostrophe", value: "O'Brien"},
		{name: "empty string", value: ""},
		{name: "text with dashes", value: "Gate change -- see board"},
		{name: "natural language select", value: "SELECT the best option from the menu"},

		{name: "integer", value: int64(100)},
		{name: "float", value: 99.95},
		{name: "boolean", value: true},
		{name: "nil", value: nil},

		{name: "quote tautology", value: "' OR '1'='1", expectInjection: true},
		{name: "drop table", value: "'; DROP TABLE users--", expectInjection: true},
		{name: "union select", value: "1 UNION SELECT * FROM passwords", expectInjection: true},
		{name: "comment terminator", value: "admin'--", expectInjection: true},
		{name: "time based blind", value: "1' AND SLEEP(5)--", expectInjection: true},
		{name: "stacked statements", value: "admin'; DELETE FROM logs; --", expectInjection: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckParameterForInjection("params[0]", tt.value)

			if !tt.expectInjection {
				assert.Nil(t, result)
				return
			}

			require.NotNil(t, result)
			assert.True(t, result.IsSQLi)
			assert.NotEmpty(t, result.Fingerprint)
			assert.Equal(t, "params[0]", result.ParamName)
			assert.Equal(t, tt.value, result.ParamValue)
		})
	}
}

func TestCheckAllParameters(t *testing.T) {
	tests := []struct {
		name          string
		params        []any
		expectedNames []string
	}{
		{
			name:   "all clean",
			params: []any{"LHR", int64(100), true, "ops@airport.example"},
		},
		{
			name:          "single injection keeps its index",
			params:        []any{"12345", "'; DROP TABLE users--", int64(100)},
			expectedNames: []string{"params[1]"},
		},
		{
			name:          "several injections in order",
			params:        []any{"admin'--", "normal", "' OR 1=1--", nil},
			expectedNames: []string{"params[0]", "params[2]"},
		},
		{
			name:   "empty",
			params: []any{},
		},
		{
			name:   "nil slice",
			params: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := CheckAllParameters(tt.params)

			var names []string
			for _, r := range results {
				assert.True(t, r.IsSQLi)
				names = append(names, r.ParamName)
			}
			assert.Equal(t, tt.expectedNames, names)
		})
	}
}

package extract

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		vendor string
	}{
		{"bare object", `{"vendor":"Acme","total":12.5}`, "Acme"},
		{"code fence", "```json\n{\"vendor\":\"Acme\"}\n```", "Acme"},
		{"prose around", "Sure! Here is the data:\n{\"vendor\":\"Acme\"}\nLet me know.", "Acme"},
		{"nested items", `{"vendor":"Acme","items":[{"name":"a","price":1},{"name":"b","price":2}]} trailing {"x":1}`, "Acme"},
		{"braces in strings", `{"vendor":"Curly {Brace} Cafe","note":"a \"quoted\" } brace"}`, "Curly {Brace} Cafe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.vendor, got["vendor"])
		})
	}
}

func TestParseResponse_KeepsNumbersExact(t *testing.T) {
	got, err := ParseResponse(`{"total": 10.10}`)
	require.NoError(t, err)
	assert.Equal(t, json.Number("10.10"), got["total"])
}

func TestParseResponse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"prose only", "I could not read this receipt, sorry."},
		{"unbalanced", `{"vendor":"Acme","items":[{"name":"a"}`},
		{"invalid json", `{"vendor": Acme}`},
		{"array only", `[1,2,3]`},
		{"unterminated string", `{"vendor":"Acme}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.raw)
			require.Error(t, err)
			var malformed *MalformedResponseError
			assert.True(t, errors.As(err, &malformed))
			assert.Equal(t, CodeMalformedResponse, ErrorCode(err))
		})
	}
}

func TestParseResponse_Idempotent(t *testing.T) {
	raw := "```json\n{\"vendor\":\"Acme\",\"subtotal\":\"$10.00\",\"tax\":1,\"confidence_score\":80}\n```"
	n := NewNormalizer(NormalizerConfig{}, fixedClock, discardLogger())

	first, err := ParseResponse(raw)
	require.NoError(t, err)
	second, err := ParseResponse(raw)
	require.NoError(t, err)

	assert.Equal(t,
		n.Normalize(first, "text_model", "r.txt"),
		n.Normalize(second, "text_model", "r.txt"),
	)
}

package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONArrayFromProse(t *testing.T) {
	raw := "Here is the result:\n```json\n[{\"type\":\"Ingredient\",\"items\":[1,2]}]\n```\nDone."
	got, err := ExtractJSONArray(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"Ingredient","items":[1,2]}]`, string(got))
}

func TestExtractJSONArrayRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "no issues found", "[not json]", "{\"a\":1}"} {
		_, err := ExtractJSONArray(raw)
		assert.Truef(t, errors.Is(err, ErrNoJSON), "expected ErrNoJSON for %q, got %v", raw, err)
	}
}

func TestExtractJSONObject(t *testing.T) {
	got, err := ExtractJSONObject(`sure! {"summary":{"risk":"low"}} hope this helps`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":{"risk":"low"}}`, string(got))

	_, err = ExtractJSONObject("[]")
	assert.ErrorIs(t, err, ErrNoJSON)
}

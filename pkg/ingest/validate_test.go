package ingest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athulya-anil/axon-ingest/pkg/models"
)

func TestValidateAccepts(t *testing.T) {
	p, err := Validate([]int64{1, 2, models.MaxID}, "LOW")
	require.NoError(t, err)
	assert.Equal(t, models.PriorityLow, p)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name     string
		ids      []int64
		priority string
		contains []string
	}{
		{"empty ids", []int64{}, "HIGH", []string{"non-empty"}},
		{"nil ids", nil, "HIGH", []string{"non-empty"}},
		{"unknown priority", []int64{1}, "URGENT", []string{`"URGENT"`}},
		{"zero", []int64{0}, "HIGH", []string{"ids[0]"}},
		{"negative", []int64{5, -1}, "HIGH", []string{"ids[1]"}},
		{"above max", []int64{models.MaxID + 1}, "MEDIUM", []string{"ids[0]"}},
		{"every violation reported", []int64{0, 4, models.MaxID + 1}, "nope", []string{"ids[0]", "ids[2]", `"nope"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.ids, tt.priority)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
			for _, want := range tt.contains {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestParseIdentifiers(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`1`),
		json.RawMessage(` 42 `),
		json.RawMessage(`3.0`),
		json.RawMessage(`1e3`),
		json.RawMessage(`1000000007`),
	}

	ids, err := ParseIdentifiers(raw)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 42, 3, 1000, models.MaxID}, ids)
}

func TestParseIdentifiersRejects(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`1`),
		json.RawMessage(`"2"`),
		json.RawMessage(`2.5`),
		json.RawMessage(`null`),
		json.RawMessage(`1000000008`),
		json.RawMessage(`1e20`),
	}

	_, err := ParseIdentifiers(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	for _, pos := range []string{"ids[1]", "ids[2]", "ids[3]", "ids[4]", "ids[5]"} {
		assert.Contains(t, err.Error(), pos)
	}
	assert.NotContains(t, err.Error(), "ids[0]")
}

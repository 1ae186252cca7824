package billing

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimit_Exceeds(t *testing.T) {
	tests := []struct {
		name        string
		limit       Limit
		usage       string
		wantOver    string
		wantExceeds bool
	}{
		{"below", FiniteLimitInt(10), "5", "0", false},
		{"equal is not over", FiniteLimitInt(10), "10", "0", false},
		{"above", FiniteLimitInt(10), "15", "5", true},
		{"fractional above", FiniteLimitInt(10), "10.001", "0.001", true},
		{"unbounded never exceeds", Unbounded(), "1e30", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			over, exceeds := tt.limit.Exceeds(decimal.RequireFromString(tt.usage))
			assert.Equal(t, tt.wantExceeds, exceeds)
			assert.True(t, over.Equal(decimal.RequireFromString(tt.wantOver)), over.String())
		})
	}
}

func TestLimit_Value(t *testing.T) {
	_, ok := Unbounded().Value()
	assert.False(t, ok)

	v, ok := FiniteLimitInt(3).Value()
	assert.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromInt(3)))
}

func TestLimit_Equal(t *testing.T) {
	assert.True(t, Unbounded().Equal(Unbounded()))
	assert.False(t, Unbounded().Equal(FiniteLimitInt(0)))
	assert.True(t, FiniteLimitInt(5).Equal(FiniteLimit(decimal.RequireFromString("5.0"))))
}

func TestLimit_JSON(t *testing.T) {
	t.Run("unbounded", func(t *testing.T) {
		data, err := json.Marshal(Unbounded())
		require.NoError(t, err)
		assert.Equal(t, `"unlimited"`, string(data))

		var l Limit
		require.NoError(t, json.Unmarshal(data, &l))
		assert.True(t, l.IsUnbounded())
	})

	t.Run("finite from number", func(t *testing.T) {
		var l Limit
		require.NoError(t, json.Unmarshal([]byte(`1000`), &l))
		assert.True(t, l.Equal(FiniteLimitInt(1000)))
	})

	t.Run("finite from string", func(t *testing.T) {
		var l Limit
		require.NoError(t, json.Unmarshal([]byte(`"10.5"`), &l))
		assert.Equal(t, "10.5", l.String())
	})

	t.Run("negative rejected", func(t *testing.T) {
		var l Limit
		assert.Error(t, json.Unmarshal([]byte(`"-1"`), &l))
	})

	t.Run("garbage rejected", func(t *testing.T) {
		var l Limit
		assert.Error(t, json.Unmarshal([]byte(`{}`), &l))
	})
}

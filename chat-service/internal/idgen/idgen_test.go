package idgen

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflake_StrictlyIncreasing(t *testing.T) {
	g, err := NewSnowflake(7, 1704067200000)
	require.NoError(t, err)

	var last int64
	for i := 0; i < 10000; i++ {
		id, err := g.Generate()
		require.NoError(t, err)
		n, err := strconv.ParseInt(id, 10, 64)
		require.NoError(t, err)
		require.Greater(t, n, last)
		last = n
	}
}

func TestSnowflake_ClockRegression(t *testing.T) {
	g, err := NewSnowflake(1, 0)
	require.NoError(t, err)

	clock := int64(10_000)
	g.now = func() int64 { return clock }
	first, err := g.Generate()
	require.NoError(t, err)

	clock = 9_000
	second, err := g.Generate()
	require.NoError(t, err)

	a, _ := strconv.ParseInt(first, 10, 64)
	b, _ := strconv.ParseInt(second, 10, 64)
	assert.Greater(t, b, a)
}

func TestSnowflake_Timestamp(t *testing.T) {
	g, err := NewSnowflake(1, 1704067200000)
	require.NoError(t, err)

	before := time.Now().Add(-time.Millisecond)
	id, err := g.Generate()
	require.NoError(t, err)

	ts, err := g.Timestamp(id)
	require.NoError(t, err)
	assert.WithinDuration(t, before, ts, time.Second)
}

func TestSnowflake_RejectsMachineID(t *testing.T) {
	_, err := NewSnowflake(1024, 0)
	assert.Error(t, err)
}

func TestULID(t *testing.T) {
	g := NewULID()
	a, err := g.Generate()
	require.NoError(t, err)
	b, err := g.Generate()
	require.NoError(t, err)

	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}

func TestNewRecordGenerator(t *testing.T) {
	tests := []struct {
		strategy string
		length   int
	}{
		{"", 26},
		{StrategyULID, 26},
		{StrategyKSUID, 27},
		{StrategyUUID, 36},
		{StrategyCUID2, DefaultCUID2Length},
		{StrategyNanoID, DefaultNanoIDSize},
	}
	for _, tt := range tests {
		t.Run("strategy_"+tt.strategy, func(t *testing.T) {
			g, err := NewRecordGenerator(RecordOptions{Strategy: tt.strategy})
			require.NoError(t, err)

			seen := make(map[string]struct{})
			for i := 0; i < 100; i++ {
				id, err := g.Generate()
				require.NoError(t, err)
				assert.Len(t, id, tt.length)
				seen[id] = struct{}{}
			}
			assert.Len(t, seen, 100)
		})
	}
}

func TestNewRecordGenerator_Invalid(t *testing.T) {
	_, err := NewRecordGenerator(RecordOptions{Strategy: "guid"})
	assert.Error(t, err)

	_, err = NewRecordGenerator(RecordOptions{Strategy: StrategyCUID2, CUID2Length: 40})
	assert.Error(t, err)

	_, err = NewRecordGenerator(RecordOptions{Strategy: StrategyNanoID, NanoIDAlphabet: "a"})
	assert.Error(t, err)
}

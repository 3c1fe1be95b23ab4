package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_NoFalseNegatives(t *testing.T) {
	f := NewWithEstimates(1000, 0.01)

	for i := 0; i < 1000; i++ {
		f.Add([]byte(fmt.Sprintf("creature-%d", i)))
	}

	for i := 0; i < 1000; i++ {
		assert.True(t, f.Contains([]byte(fmt.Sprintf("creature-%d", i))))
	}
	assert.Equal(t, uint64(1000), f.Count())
}

func TestFilter_FalsePositiveRateNearTarget(t *testing.T) {
	f := NewWithEstimates(1000, 0.01)
	for i := 0; i < 1000; i++ {
		f.Add([]byte(fmt.Sprintf("creature-%d", i)))
	}

	falsePositives := 0
	probes := 10000
	for i := 0; i < probes; i++ {
		if f.Contains([]byte(fmt.Sprintf("absent-%d", i))) {
			falsePositives++
		}
	}

	rate := float64(falsePositives) / float64(probes)
	assert.Less(t, rate, 0.05)
	assert.Less(t, f.FalsePositiveRate(), 0.05)
}

func TestFilter_EmptyContainsNothing(t *testing.T) {
	f := New(1024, 7)
	assert.False(t, f.Contains([]byte("anything")))
	assert.Zero(t, f.FalsePositiveRate())
}

func TestOptimalParameters(t *testing.T) {
	numBits, numHashes := OptimalParameters(1000, 0.01)
	assert.Greater(t, numBits, 1000)
	assert.GreaterOrEqual(t, numHashes, 1)

	// Degenerate inputs fall back to sane defaults.
	numBits, numHashes = OptimalParameters(0, 2.0)
	assert.GreaterOrEqual(t, numBits, 64)
	assert.GreaterOrEqual(t, numHashes, 1)
}

func TestFilter_MarshalRoundTrip(t *testing.T) {
	f := NewWithEstimates(100, 0.01)
	for i := 0; i < 100; i++ {
		f.Add([]byte(fmt.Sprintf("key-%d", i)))
	}

	blob, err := Marshal(f)
	require.NoError(t, err)

	restored, err := Unmarshal(blob)
	require.NoError(t, err)

	assert.Equal(t, f.Count(), restored.Count())
	for i := 0; i < 100; i++ {
		assert.True(t, restored.Contains([]byte(fmt.Sprintf("key-%d", i))))
	}
}

func TestUnmarshal_RejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte{0x01, 0x02, 0x03})
	assert.Error(t, err)

	_, err = Marshal(nil)
	assert.Error(t, err)
}

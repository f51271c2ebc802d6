package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResampleSameRateReturnsInput(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 16000, 16000)
	assert.Equal(t, in, out)
	// Same backing array, not a copy.
	out[0] = 0.9
	assert.Equal(t, float32(0.9), in[0])
}

func TestResampleDownsampleLength(t *testing.T) {
	in := make([]float32, 4800)
	out := Resample(in, 48000, 16000)
	assert.Len(t, out, 1600)
}

func TestResampleUpsampleLength(t *testing.T) {
	in := make([]float32, 100)
	out := Resample(in, 16000, 48000)
	assert.Len(t, out, 300)
}

func TestResamplePreservesConstantSignal(t *testing.T) {
	in := make([]float32, 4800)
	for i := range in {
		in[i] = 0.25
	}
	out := Resample(in, 48000, 16000)
	require.NotEmpty(t, out)
	for i, s := range out {
		assert.InDelta(t, 0.25, s, 1e-6, "sample %d", i)
	}
}

func TestResampleInterpolatesBetweenNeighbors(t *testing.T) {
	// Upsampling a ramp stays within the ramp's bounds and stays monotonic.
	in := []float32{0, 0.5, 1.0}
	out := Resample(in, 8000, 16000)
	require.Len(t, out, 6)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i], out[i-1])
	}
	assert.GreaterOrEqual(t, out[0], float32(0))
	assert.LessOrEqual(t, out[len(out)-1], float32(1.0))
}

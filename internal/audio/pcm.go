package audio

import (
	"encoding/binary"
	"math"
)

// FloatToPCM16 converts float32 samples to 16-bit little-endian PCM bytes.
// Samples are hard-clamped to [-1, 1] before scaling, so out-of-range input
// saturates instead of wrapping.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		clamped := max(float32(-1.0), min(float32(1.0), s))
		v := int32(clamped * 32768)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// DecodePCM16 converts 16-bit little-endian PCM bytes to float32 samples
// normalized to [-1, 1]. A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	n := len(data) / 2
	samples := make([]float32, n)
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(s) / math.MaxInt16
	}
	return samples
}

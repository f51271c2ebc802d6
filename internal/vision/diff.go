// Package vision holds the frame-side signal processing: change detection
// between consecutive screen captures and JPEG encoding for the wire.
package vision

import "image"

// DefaultStride samples every 16th pixel when diffing. The change threshold
// used by callers is tuned against this stride, not full-resolution diffs.
const DefaultStride = 16

// channelDelta is the per-pixel summed RGB difference above which a sampled
// pixel counts as changed.
const channelDelta = 30

// DiffRatio returns the fraction of sampled pixels that differ between two
// frames, in [0, 1]. Frames of different dimensions always report 1.0 so a
// display resize triggers a fresh capture rather than an error.
func DiffRatio(prev, next *image.RGBA, stride int) float64 {
	if prev == nil || next == nil {
		return 1.0
	}
	if !prev.Rect.Eq(next.Rect) || len(prev.Pix) != len(next.Pix) {
		return 1.0
	}
	if stride < 1 {
		stride = 1
	}

	step := stride * 4 // RGBA
	sampled := 0
	changed := 0
	for i := 0; i+3 < len(prev.Pix); i += step {
		sampled++
		dr := absDiff(prev.Pix[i], next.Pix[i])
		dg := absDiff(prev.Pix[i+1], next.Pix[i+1])
		db := absDiff(prev.Pix[i+2], next.Pix[i+2])
		if int(dr)+int(dg)+int(db) > channelDelta {
			changed++
		}
	}
	if sampled == 0 {
		return 0
	}
	return float64(changed) / float64(sampled)
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// defaultQuality trades size for enough fidelity that on-screen text
// survives for downstream analysis.
const defaultQuality = 80

// EncodeJPEG encodes a raster to JPEG bytes.
func EncodeJPEG(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: defaultQuality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

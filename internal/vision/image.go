package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// maxInferenceSize caps the longer edge of images sent to vision models.
const maxInferenceSize = 800

// prepareImage downscales an image for inference and re-encodes it as JPEG.
// Images already small enough are only re-encoded for format consistency.
func prepareImage(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width > maxInferenceSize || height > maxInferenceSize {
		var newWidth, newHeight int
		if width > height {
			newWidth = maxInferenceSize
			newHeight = height * maxInferenceSize / width
		} else {
			newHeight = maxInferenceSize
			newWidth = width * maxInferenceSize / height
		}

		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		img = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

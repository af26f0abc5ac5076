package media

import (
	"bytes"
	"fmt"
	"image"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp" // WebP format support
)

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// ProbeImage returns the dimensions of an encoded image without decoding
// the pixel data.
func ProbeImage(payload []byte) (ImageDimensions, error) {
	config, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return ImageDimensions{}, fmt.Errorf("failed to read image header: %w", err)
	}
	return ImageDimensions{Width: config.Width, Height: config.Height}, nil
}

// DetectContentType sniffs the MIME type of a payload from its leading bytes.
func DetectContentType(payload []byte) string {
	return mimetype.Detect(payload).String()
}

// IsImagePayload reports whether the payload's bytes identify it as an image.
func IsImagePayload(payload []byte) bool {
	kind, ok := KindForContentType(DetectContentType(payload))
	return ok && kind == KindImage
}

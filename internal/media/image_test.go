package media

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestProbeImage(t *testing.T) {
	dims, err := ProbeImage(encodePNG(t, 64, 32))
	if err != nil {
		t.Fatalf("ProbeImage() error = %v", err)
	}
	if dims.Width != 64 || dims.Height != 32 {
		t.Errorf("ProbeImage() = %dx%d, want 64x32", dims.Width, dims.Height)
	}
}

func TestProbeImageRejectsGarbage(t *testing.T) {
	if _, err := ProbeImage([]byte("not an image")); err == nil {
		t.Error("ProbeImage() expected error for non-image bytes")
	}
}

func TestDetectContentType(t *testing.T) {
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, image.NewGray(image.Rect(0, 0, 4, 4)), nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}

	tests := []struct {
		name    string
		payload []byte
		want    string
		isImage bool
	}{
		{"png", encodePNG(t, 2, 2), "image/png", true},
		{"jpeg", jpg.Bytes(), "image/jpeg", true},
		{"text", []byte("hello world"), "text/plain; charset=utf-8", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectContentType(tt.payload); got != tt.want {
				t.Errorf("DetectContentType() = %q, want %q", got, tt.want)
			}
			if got := IsImagePayload(tt.payload); got != tt.isImage {
				t.Errorf("IsImagePayload() = %v, want %v", got, tt.isImage)
			}
		})
	}
}

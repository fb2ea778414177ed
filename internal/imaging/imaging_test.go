package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func createTestJPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTestPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{0, 0, 255, 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func TestProcessJPEG(t *testing.T) {
	data := createTestJPEG(100, 80)
	result, err := Process(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Process JPEG: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", result.MIME)
	}
	if result.Width != 100 || result.Height != 80 {
		t.Errorf("expected 100x80, got %dx%d", result.Width, result.Height)
	}
}

func TestProcessPNG(t *testing.T) {
	data := createTestPNG(100, 100)
	result, err := Process(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Process PNG: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg (always outputs JPEG), got %s", result.MIME)
	}
}

func TestProcessDownscale(t *testing.T) {
	data := createTestJPEG(2560, 1280)
	result, err := Process(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Process large image: %v", err)
	}
	if result.Width != MaxDimension || result.Height != MaxDimension/2 {
		t.Errorf("expected %dx%d, got %dx%d", MaxDimension, MaxDimension/2, result.Width, result.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if img.Bounds().Dx() > MaxDimension {
		t.Errorf("encoded width %d exceeds %d", img.Bounds().Dx(), MaxDimension)
	}
}

func TestProcessInvalidFormat(t *testing.T) {
	_, err := Process(bytes.NewReader([]byte("not an image")))
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestProcessGIFRejected(t *testing.T) {
	_, err := Process(bytes.NewReader([]byte("GIF89a...")))
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported for GIF, got %v", err)
	}
}

func TestThumbnail(t *testing.T) {
	data, err := Thumbnail(createTestPNG(640, 320), ClassifierSize)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding thumbnail: %v", err)
	}
	if img.Bounds().Dx() != ClassifierSize || img.Bounds().Dy() != ClassifierSize {
		t.Errorf("expected %dx%d thumbnail, got %v", ClassifierSize, ClassifierSize, img.Bounds())
	}
}

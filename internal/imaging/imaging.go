package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// MaxDimension is the maximum width or height for stored photos.
const MaxDimension = 1280

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// ClassifierSize is the square edge length content classifiers expect.
const ClassifierSize = 224

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// ErrUnsupported is returned for data that is not a JPEG or PNG image.
var ErrUnsupported = errors.New("unsupported image format")

// ProcessResult contains the processed photo.
type ProcessResult struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Process reads a photo, validates the format by sniffing bytes,
// downscales if larger than MaxDimension, and re-encodes as JPEG.
// Re-encoding also drops any EXIF metadata (location, device) from uploads.
func Process(r io.Reader) (*ProcessResult, error) {
	img, err := decode(r)
	if err != nil {
		return nil, err
	}

	img = downscale(img, MaxDimension)

	data, err := encode(img)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	return &ProcessResult{
		Data:   data,
		MIME:   "image/jpeg",
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// Thumbnail scales a photo to a size×size JPEG, ignoring aspect ratio.
func Thumbnail(data []byte, size int) ([]byte, error) {
	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return encode(dst)
}

func decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}

	// Sniff actual MIME type from bytes (not trusting client headers).
	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s (only JPEG and PNG accepted)", ErrUnsupported, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// downscale resizes the image so neither dimension exceeds maxDim.
// Uses Catmull-Rom interpolation.
// Returns the original image if already within bounds.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}
	newW = max(newW, 1)
	newH = max(newH, 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
}

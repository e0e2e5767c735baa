// Package imaging decodes downloaded bytes into bitmaps, encodes bitmaps for the disk tier
// and prepares them for storage (downscale, cost estimation).
package imaging

import (
	"bytes"
	"github.com/cockroachdb/errors"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
)

// ErrUnsupportedFormat is returned for bytes that are not a registered image format.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Decode turns raw bytes into a bitmap. JPEG, PNG, GIF and WebP are supported.
// The header is checked first: images announcing more than maxPixels pixels are rejected
// with ErrUnsupportedFormat. A non-positive maxPixels disables the check.
func Decode(data []byte, maxPixels int64) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrUnsupportedFormat, "empty payload")
	}

	hdr, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, decodeErr(err, len(data))
	}
	if pixels := int64(hdr.Width) * int64(hdr.Height); maxPixels > 0 && pixels > maxPixels {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "image %dx%d exceeds %d pixels", hdr.Width, hdr.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, decodeErr(err, len(data))
	}
	return img, nil
}

func decodeErr(err error, n int) error {
	if errors.Is(err, image.ErrFormat) {
		return errors.Wrapf(ErrUnsupportedFormat, "decode %d bytes", n)
	}
	return errors.Wrap(err, "decode image")
}

// EncodeJPEG encodes img with the given quality (1..100). Alpha is dropped.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, errors.Wrap(err, "encode jpeg")
	}
	return buf.Bytes(), nil
}

// Cost is the byte size of a JPEG encoding of img at quality.
// When encoding fails the raw RGBA footprint is used so that the entry is still accounted.
func Cost(img image.Image, quality int) int64 {
	if data, err := EncodeJPEG(img, quality); err == nil {
		return int64(len(data))
	}
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}

// ScaledSize returns the dimensions img would be stored with under maxDim.
// The scale factor is min(maxDim/w, maxDim/h) and is applied only when a side exceeds maxDim.
func ScaledSize(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || w <= 0 || h <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	scale := math.Min(float64(maxDim)/float64(w), float64(maxDim)/float64(h))
	return clamp(int(math.Round(float64(w)*scale)), 1, maxDim), clamp(int(math.Round(float64(h)*scale)), 1, maxDim)
}

// Downscale returns img unchanged when both sides fit maxDim, a resampled copy otherwise.
func Downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := ScaledSize(b.Dx(), b.Dy(), maxDim)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

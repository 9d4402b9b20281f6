// Package storage persists product images.  Every upload is decoded,
// scaled down to at most 800px wide and re-encoded as JPEG before it is
// written to local disk or S3.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/google/uuid"
	"github.com/nfnt/resize"

	"github.com/iliyamo/cliora-storefront/internal/service"
)

const (
	maxWidth    = 800
	jpegQuality = 80
)

// Normalize decodes a PNG or JPEG and returns it as a JPEG no wider than
// 800px.  Anything else fails with service.ErrUnsupportedImage.
func Normalize(r io.Reader) ([]byte, error) {
	img, format, err := image.Decode(r)
	if errors.Is(err, image.ErrFormat) {
		return nil, service.ErrUnsupportedImage
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrUnsupportedImage, err)
	}
	if format != "png" && format != "jpeg" {
		return nil, service.ErrUnsupportedImage
	}
	if img.Bounds().Dx() > maxWidth {
		img = resize.Resize(maxWidth, 0, img, resize.Lanczos3)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func newName() string { return uuid.NewString() + ".jpg" }

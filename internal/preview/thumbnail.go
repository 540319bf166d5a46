package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxThumbnailPixels caps the declared width*height Thumbnail will decode.
const MaxThumbnailPixels = 40_000_000

var (
	// ErrNotImage is returned by Thumbnail for data no registered decoder accepts.
	ErrNotImage = errors.New("not a decodable image")
	// ErrImageTooLarge also matches ErrNotImage.
	ErrImageTooLarge = fmt.Errorf("%w: dimensions exceed %d pixels", ErrNotImage, MaxThumbnailPixels)
)

var thumbnailTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// CanThumbnail reports whether Thumbnail has a decoder for mimeType.
func CanThumbnail(mimeType string) bool {
	return thumbnailTypes[strings.ToLower(strings.TrimSpace(mimeType))]
}

// Thumbnail decodes an image and scales it so its longer side is at most
// maxSide, never upscaling. The header is checked against MaxThumbnailPixels
// before any pixel data is decoded. The result is PNG encoded.
func Thumbnail(r io.Reader, maxSide int) ([]byte, error) {
	if maxSide <= 0 {
		return nil, fmt.Errorf("invalid thumbnail size %d", maxSide)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxThumbnailPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	w, h := fitWithin(src.Bounds().Dx(), src.Bounds().Dy(), maxSide)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales (w, h) down to fit a maxSide square, keeping the aspect
// ratio and at least one pixel per side.
func fitWithin(w, h, maxSide int) (int, int) {
	if w <= maxSide && h <= maxSide {
		return max(w, 1), max(h, 1)
	}
	if w >= h {
		return maxSide, max(h*maxSide/w, 1)
	}
	return max(w*maxSide/h, 1), maxSide
}

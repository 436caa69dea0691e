// Package imaging normalizes uploaded profile photos: decode, shrink to fit
// a square bounding box, re-encode.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register gif
	"image/jpeg"
	"image/png"

	"github.com/dmitrijs2005/xtouch/internal/common"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register webp
)

const (
	DefaultMaxSide     = 750
	DefaultJPEGQuality = 85

	// maxPixels bounds the decoded size of an upload (about 50 MP).
	maxPixels = 50_000_000
)

// Normalizer resizes images to fit inside MaxSide x MaxSide, preserving the
// aspect ratio. Images that already fit are re-encoded at their own size.
type Normalizer struct {
	MaxSide     int
	JPEGQuality int
}

// NewNormalizer returns a Normalizer, substituting defaults for
// non-positive arguments.
func NewNormalizer(maxSide, jpegQuality int) *Normalizer {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	return &Normalizer{MaxSide: maxSide, JPEGQuality: jpegQuality}
}

// Normalize decodes data, scales it to fit the bounding box and re-encodes
// it. JPEG input stays JPEG; every other format becomes PNG so alpha is
// kept. The declared mimeType is only used in error messages: the content
// decides the format. Undecodable input yields common.ErrUnsupportedImage.
func (n *Normalizer) Normalize(data []byte, mimeType string) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty upload", common.ErrUnsupportedImage)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", common.ErrUnsupportedImage, mimeType, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d out of range", common.ErrUnsupportedImage, cfg.Width, cfg.Height)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", common.ErrUnsupportedImage, mimeType, err)
	}

	dst := n.fit(src)

	var buf bytes.Buffer
	if format == "jpeg" {
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: n.JPEGQuality}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	}

	if err := png.Encode(&buf, dst); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}

// fit returns src unchanged when it already fits the box, otherwise a
// Catmull-Rom downscale of it.
func (n *Normalizer) fit(src image.Image) image.Image {
	b := src.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), n.MaxSide)
	if w == b.Dx() && h == b.Dy() {
		return src
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// FitSize computes the output dimensions of a w x h image contained in a
// box x box square. It never upscales and never returns a side below 1.
func FitSize(w, h, box int) (int, int) {
	if w <= box && h <= box {
		return w, h
	}

	if w >= h {
		nh := (h*box + w/2) / w
		return box, max(nh, 1)
	}
	nw := (w*box + h/2) / h
	return max(nw, 1), box
}

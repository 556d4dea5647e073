package producer

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/teslashibe/go-telecam/pkg/settings"
)

// EncodeFrame rasterizes a source frame onto a target-resolution canvas and
// encodes it as JPEG. The source is scaled to the target size regardless of
// its native resolution.
func EncodeFrame(src image.Image, res settings.Resolution, quality int) ([]byte, error) {
	target := image.Rect(0, 0, res.Width, res.Height)

	var frame image.Image = src
	if src.Bounds().Dx() != res.Width || src.Bounds().Dy() != res.Height {
		dst := image.NewRGBA(target)
		draw.ApproxBiLinear.Scale(dst, target, src, src.Bounds(), draw.Src, nil)
		frame = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

package img

import (
	"bytes"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// Probe decodes just the PNG header and reports the pixel dimensions.
func Probe(data []byte) (w, h int, err error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// Thumbnail downscales a rendered card PNG proportionally to maxW for the
// history listing. Images already narrower than maxW pass through.
func Thumbnail(data []byte, maxW int) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var out image.Image = src
	if src.Bounds().Dx() > maxW && maxW > 0 {
		out = imaging.Resize(src, maxW, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

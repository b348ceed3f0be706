package img

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestProbe(t *testing.T) {
	w, h, err := Probe(encodePNG(t, 720, 1500))
	require.NoError(t, err)
	require.Equal(t, 720, w)
	require.Equal(t, 1500, h)
}

func TestProbe_NotPNG(t *testing.T) {
	_, _, err := Probe([]byte("not a png"))
	require.Error(t, err)
}

func TestThumbnail_Downscales(t *testing.T) {
	thumb, err := Thumbnail(encodePNG(t, 1280, 640), 360)
	require.NoError(t, err)

	w, h, err := Probe(thumb)
	require.NoError(t, err)
	require.Equal(t, 360, w)
	require.Equal(t, 180, h, "aspect ratio preserved")
}

func TestThumbnail_SmallImagePassesThrough(t *testing.T) {
	thumb, err := Thumbnail(encodePNG(t, 200, 100), 360)
	require.NoError(t, err)

	w, _, err := Probe(thumb)
	require.NoError(t, err)
	require.Equal(t, 200, w)
}

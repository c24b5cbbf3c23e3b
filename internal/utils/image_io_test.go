package utils

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestIsSupportedImage(t *testing.T) {
	for _, p := range []string{"a.png", "B.JPG", "c.jpeg", "d.bmp", "e.webp", "f.tiff"} {
		assert.True(t, IsSupportedImage(p), p)
	}
	for _, p := range []string{"a.pdf", "b.gif", "noext"} {
		assert.False(t, IsSupportedImage(p), p)
	}
}

func TestSaveAndLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "shot.png")

	require.NoError(t, SaveImage(path, solid(40, 20, color.RGBA{R: 200, A: 255})))

	img, meta, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 40, meta.Width)
	assert.Equal(t, 20, meta.Height)
	assert.Equal(t, path, meta.Path)
	assert.Positive(t, meta.SizeBytes)
	r, _, _, _ := img.At(5, 5).RGBA()
	assert.Equal(t, uint32(200*257), r)
}

func TestLoadImage_Errors(t *testing.T) {
	_, _, err := LoadImage("")
	assert.Error(t, err)

	_, _, err = LoadImage("doc.pdf")
	var ipe *ImageProcessingError
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, "load", ipe.Operation)

	corrupt := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(corrupt, []byte("not an image"), 0o600))
	_, _, err = LoadImage(corrupt)
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, "decode", ipe.Operation)
}

func TestDecodeImageBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(8, 8, color.White)))

	img, meta, err := DecodeImageBytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, int64(buf.Len()), meta.SizeBytes)

	_, _, err = DecodeImageBytes(nil)
	assert.Error(t, err)
	_, _, err = DecodeImageBytes([]byte{0x89, 'P', 'N', 'G'})
	assert.Error(t, err)
}

func TestEncodeImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeImage(&buf, solid(4, 4, color.Black), "jpeg"))
	assert.NotZero(t, buf.Len())
	assert.Error(t, EncodeImage(&buf, solid(4, 4, color.Black), "gif"))
}

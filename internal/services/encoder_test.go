package services

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeKeepsSmallFrames(t *testing.T) {
	enc := NewFrameEncoder(960, 540, 80)

	out, err := enc.Encode(image.NewRGBA(image.Rect(0, 0, 320, 240)))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 320, 240), out.Image.Bounds())
	assert.True(t, strings.HasPrefix(out.DataURI, "data:image/jpeg;base64,"))

	decoded, err := DecodeDataURI(out.DataURI)
	require.NoError(t, err)
	assert.Equal(t, out.JPEG, decoded)
}

func TestEncodeDownscalesLargeFrames(t *testing.T) {
	enc := NewFrameEncoder(960, 540, 80)

	out, err := enc.Encode(image.NewRGBA(image.Rect(0, 0, 1920, 1080)))
	require.NoError(t, err)
	assert.Equal(t, 960, out.Image.Bounds().Dx())
	assert.Equal(t, 540, out.Image.Bounds().Dy())

	img, err := DecodeImage(out.JPEG)
	require.NoError(t, err)
	assert.Equal(t, 960, img.Bounds().Dx())
}

func TestEncodeNilFrame(t *testing.T) {
	_, err := NewFrameEncoder(960, 540, 80).Encode(nil)
	assert.ErrorIs(t, err, ErrFrameUnavailable)
}

func TestEncodeDataURISniffsType(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))

	uri := EncodeDataURI(buf.Bytes())
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	raw, err := DecodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), raw)
}

func TestDecodeDataURIRejectsGarbage(t *testing.T) {
	_, err := DecodeDataURI("data:image/png;base64,@@@")
	assert.Error(t, err)
}

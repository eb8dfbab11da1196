package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
)

const dataURIJPEGPrefix = "data:image/jpeg;base64,"

// EncodedFrame is a frame ready for submission. Image is exactly what was encoded,
// so detection coordinates returned for DataURI are in Image's pixel space.
type EncodedFrame struct {
	Image   image.Image
	JPEG    []byte
	DataURI string
}

// FrameEncoder turns raw frames into JPEG data URIs
type FrameEncoder struct {
	maxWidth  int
	maxHeight int
	quality   int
}

// NewFrameEncoder creates an encoder. Frames larger than maxWidth x maxHeight are downscaled
// preserving aspect ratio.
func NewFrameEncoder(maxWidth, maxHeight, quality int) *FrameEncoder {
	return &FrameEncoder{
		maxWidth:  maxWidth,
		maxHeight: maxHeight,
		quality:   quality,
	}
}

// Encode compresses frame to JPEG and wraps it as a data URI
func (e *FrameEncoder) Encode(frame image.Image) (*EncodedFrame, error) {
	if frame == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrFrameUnavailable)
	}

	img := frame
	b := frame.Bounds()
	if e.maxWidth > 0 && e.maxHeight > 0 && (b.Dx() > e.maxWidth || b.Dy() > e.maxHeight) {
		img = imaging.Fit(frame, e.maxWidth, e.maxHeight, imaging.Lanczos)
	}

	data, err := e.EncodeJPEG(img)
	if err != nil {
		return nil, err
	}

	return &EncodedFrame{
		Image:   img,
		JPEG:    data,
		DataURI: JPEGDataURI(data),
	}, nil
}

// EncodeJPEG compresses img at the encoder's quality
func (e *FrameEncoder) EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// JPEGDataURI wraps JPEG bytes as a data URI
func JPEGDataURI(data []byte) string {
	return dataURIJPEGPrefix + base64.StdEncoding.EncodeToString(data)
}

// EncodeDataURI wraps raw image bytes as a data URI using the sniffed content type
func EncodeDataURI(data []byte) string {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI strips the data URI prefix if present and decodes the base64 payload
func DecodeDataURI(dataURI string) ([]byte, error) {
	payload := dataURI
	if idx := strings.Index(payload, ","); idx != -1 {
		payload = payload[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return data, nil
}

// DecodeImage decodes image bytes in any registered format
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid image format: %w", err)
	}
	return img, nil
}

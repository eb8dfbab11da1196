// Package overlay draws detection bounding boxes and captions on frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"

	"detectx-service/internal/models"
)

const (
	// FontSize is the caption size in points.
	FontSize = 16
	// LineWidth is the rectangle stroke width in pixels.
	LineWidth = 3

	captionOffsetX = 4
	captionOffsetY = 20
)

var (
	ColorFireExtinguisher = color.RGBA{R: 0xf8, G: 0x71, B: 0x71, A: 0xff}
	ColorOxygenTank       = color.RGBA{R: 0x38, G: 0xbd, B: 0xf8, A: 0xff}
	ColorToolBox          = color.RGBA{R: 0xa7, G: 0x8b, B: 0xfa, A: 0xff}
	ColorDefault          = color.RGBA{R: 0xfa, G: 0xcc, B: 0x15, A: 0xff}
)

// Annotation is one rectangle plus caption to draw.
type Annotation struct {
	Rect      image.Rectangle
	Color     color.RGBA
	Caption   string
	CaptionAt image.Point
}

// ColorFor returns the stroke color for a label
func ColorFor(label string) color.RGBA {
	switch label {
	case models.LabelFireExtinguisher:
		return ColorFireExtinguisher
	case models.LabelOxygenTank:
		return ColorOxygenTank
	case models.LabelToolBox:
		return ColorToolBox
	default:
		return ColorDefault
	}
}

// Caption formats "{label} ({confidence}%)" with the shortest decimal form of confidence.
func Caption(d models.Detection) string {
	return fmt.Sprintf("%s (%s%%)", d.Class, strconv.FormatFloat(d.Confidence, 'f', -1, 64))
}

// Annotate maps detections to annotations, preserving order.
func Annotate(detections []models.Detection) []Annotation {
	annotations := make([]Annotation, 0, len(detections))
	for _, d := range detections {
		if len(d.BBox) != 4 {
			continue
		}
		rect := image.Rect(round(d.BBox[0]), round(d.BBox[1]), round(d.BBox[2]), round(d.BBox[3]))
		annotations = append(annotations, Annotation{
			Rect:      rect,
			Color:     ColorFor(d.Class),
			Caption:   Caption(d),
			CaptionAt: image.Pt(rect.Min.X+captionOffsetX, rect.Min.Y+captionOffsetY),
		})
	}
	return annotations
}

// ScaleDetections converts bounding boxes from a from-sized frame to a to-sized frame.
func ScaleDetections(detections []models.Detection, from, to image.Point) []models.Detection {
	if from.X <= 0 || from.Y <= 0 || from == to {
		return detections
	}
	sx := float64(to.X) / float64(from.X)
	sy := float64(to.Y) / float64(from.Y)

	scaled := make([]models.Detection, len(detections))
	for i, d := range detections {
		scaled[i] = d
		if len(d.BBox) == 4 {
			scaled[i].BBox = []float64{d.BBox[0] * sx, d.BBox[1] * sy, d.BBox[2] * sx, d.BBox[3] * sy}
		}
	}
	return scaled
}

// Renderer draws annotations with a fixed-size bold font.
type Renderer struct {
	mu   sync.Mutex
	face font.Face
}

func NewRenderer() (*Renderer, error) {
	f, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse caption font: %w", err)
	}
	return &Renderer{
		face: truetype.NewFace(f, &truetype.Options{Size: FontSize}),
	}, nil
}

// Render draws detections on a copy of frame. frame itself is left untouched.
func (r *Renderer) Render(frame image.Image, detections []models.Detection) (image.Image, error) {
	if frame == nil {
		return nil, fmt.Errorf("nothing to render on")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dc := gg.NewContextForImage(frame)
	dc.SetFontFace(r.face)
	dc.SetLineWidth(LineWidth)

	for _, a := range Annotate(detections) {
		dc.SetColor(a.Color)
		dc.DrawRectangle(float64(a.Rect.Min.X), float64(a.Rect.Min.Y), float64(a.Rect.Dx()), float64(a.Rect.Dy()))
		dc.Stroke()
		dc.DrawString(a.Caption, float64(a.CaptionAt.X), float64(a.CaptionAt.Y))
	}

	return dc.Image(), nil
}

func round(v float64) int {
	return int(math.Round(v))
}

// Package thumbnail renders lecture cover images from templates.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"

	"github.com/kt-lectures/broadcaster/internal/models"
)

const (
	Width  = 1920
	Height = 1080

	BaseImageWidth  = 630
	BaseImageHeight = 1080
)

// ImageSource loads prepared base images by id.
type ImageSource interface {
	Load(ctx context.Context, id uuid.UUID) (image.Image, error)
}

// Renderer draws 1920x1080 PNG covers.
type Renderer struct {
	font    *truetype.Font
	palette Palette
	images  ImageSource
	logger  *zap.Logger
}

// NewRenderer parses the bundled bold face. images may be nil, in which case
// templates render without their base image.
func NewRenderer(palette Palette, images ImageSource, logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if palette == nil {
		palette = DefaultPalette()
	}
	f, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Renderer{font: f, palette: palette, images: images, logger: logger}, nil
}

func (r *Renderer) face(size float64) font.Face {
	return truetype.NewFace(r.font, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

type textLine struct {
	text  string
	size  float64
	x, y  float64
	color color.Color
}

// Render composes the cover for tpl with the given number label.
func (r *Renderer) Render(ctx context.Context, tpl *models.ThumbnailsTemplate, label string) ([]byte, error) {
	accent, err := r.palette.Color(tpl.Color)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", tpl.ID, err)
	}

	dc := gg.NewContext(Width, Height)
	dc.SetColor(color.Black)
	dc.Clear()

	if tpl.ImageID != nil && r.images != nil {
		base, err := r.images.Load(ctx, *tpl.ImageID)
		if err != nil {
			return nil, fmt.Errorf("base image %s: %w", *tpl.ImageID, err)
		}
		dc.DrawImage(base, Width-BaseImageWidth, 0)
	}

	dc.SetColor(accent)
	dc.DrawRoundedRectangle(344, 73, 141, 83, 22)
	dc.Fill()

	lines := []textLine{
		{text: "КТ", size: 64, x: 370, y: 137, color: color.Black},
		{text: "ИТМО", size: 64, x: 115, y: 137, color: color.White},
		{text: tpl.FirstTitle, size: 110, x: 115, y: 418, color: color.White},
		{text: tpl.SecondTitle, size: 110, x: 115, y: 543, color: accent},
		{text: tpl.LecturerName, size: 60, x: 115, y: 788, color: color.White},
		{text: tpl.TermNumber, size: 210, x: 115, y: 992, color: color.White},
		{text: label, size: 210, x: 439, y: 992, color: accent},
	}
	for _, ln := range lines {
		if ln.text == "" {
			continue
		}
		face := r.face(ln.size)
		dc.SetFontFace(face)
		dc.SetColor(ln.color)
		dc.DrawString(ln.text, ln.x, ln.y)
		face.Close()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	r.logger.Debug("thumbnail rendered",
		zap.String("template_id", tpl.ID.String()),
		zap.String("label", label),
		zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

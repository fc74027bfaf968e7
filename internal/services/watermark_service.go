// internal/services/watermark_service.go
package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	previewMaxSide   = 1600
	thumbnailMaxSide = 400
	watermarkOpacity = 0.45
)

// Renditions holds the encoded derived images of one upload.
type Renditions struct {
	Preview   []byte
	Thumbnail []byte
}

// Watermarker produces the public renditions of an uploaded original.
type Watermarker struct {
	text string
}

func NewWatermarker(text string) *Watermarker {
	if text == "" {
		text = "STOCKPICS"
	}
	return &Watermarker{text: text}
}

// Render returns a downscaled preview stamped with the watermark text and a
// watermarked thumbnail, both JPEG encoded.
func (w *Watermarker) Render(src image.Image) (*Renditions, error) {
	preview := imaging.Fit(src, previewMaxSide, previewMaxSide, imaging.Lanczos)
	preview = w.stamp(preview)

	previewBytes, err := encodeJPEG(preview, 85)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}

	thumb := imaging.Fit(preview, thumbnailMaxSide, thumbnailMaxSide, imaging.Lanczos)
	thumbBytes, err := encodeJPEG(thumb, 80)
	if err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return &Renditions{Preview: previewBytes, Thumbnail: thumbBytes}, nil
}

// stamp draws the text once, scales it to half the image width and overlays
// it centered, with a dark offset copy for contrast on light images.
func (w *Watermarker) stamp(img *image.NRGBA) *image.NRGBA {
	bounds := img.Bounds()
	targetWidth := bounds.Dx() / 2
	if targetWidth < 1 {
		return img
	}

	light := imaging.Resize(w.textMask(color.White), targetWidth, 0, imaging.NearestNeighbor)
	dark := imaging.Resize(w.textMask(color.Black), targetWidth, 0, imaging.NearestNeighbor)

	center := image.Pt(
		(bounds.Dx()-light.Bounds().Dx())/2,
		(bounds.Dy()-light.Bounds().Dy())/2,
	)
	shadow := light.Bounds().Dy() / 24
	if shadow < 1 {
		shadow = 1
	}

	out := imaging.Overlay(img, dark, center.Add(image.Pt(shadow, shadow)), watermarkOpacity)
	return imaging.Overlay(out, light, center, watermarkOpacity)
}

func (w *Watermarker) textMask(c color.Color) *image.NRGBA {
	face := basicfont.Face7x13
	width := font.MeasureString(face, w.text).Ceil() + 2
	height := face.Metrics().Height.Ceil() + 2

	mask := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(mask, mask.Bounds(), image.Transparent, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  mask,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(1, face.Metrics().Ascent.Ceil()+1),
	}
	drawer.DrawString(w.text)
	return mask
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

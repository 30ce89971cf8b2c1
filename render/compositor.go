package render

import (
	"image"
	"image/draw"

	"designcomposer/core"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/transform"
	"github.com/fogleman/gg"
)

// tintOpacity is the fixed strength of the color overlay. It is a constant
// of the compositor so product detail stays visible under the tint.
const tintOpacity = 0.6

// compositeBase draws the tinted base photo into the context. The photo is
// scaled to fit entirely within the output box preserving aspect ratio and
// centered; the tint composites over the photo's occupied region only, so the
// margin keeps the background color. A nil base image leaves the canvas blank.
func compositeBase(dc *gg.Context, base image.Image, tint core.RGB, mode core.BlendMode, outW, outH int) {
	if base == nil || outW <= 0 || outH <= 0 {
		return
	}

	b := base.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return
	}

	scale := float64(outW) / float64(b.Dx())
	if s := float64(outH) / float64(b.Dy()); s < scale {
		scale = s
	}
	sw := core.Scale(float64(b.Dx()), scale)
	sh := core.Scale(float64(b.Dy()), scale)
	if sw <= 0 || sh <= 0 {
		return
	}

	scaled := transform.Resize(base, sw, sh, transform.Linear)

	tintImg := image.NewRGBA(image.Rect(0, 0, sw, sh))
	draw.Draw(tintImg, tintImg.Bounds(), &image.Uniform{C: tint.RGBA()}, image.Point{}, draw.Src)

	blended := blendFor(mode)(scaled, tintImg)
	tinted := blend.Opacity(scaled, blended, tintOpacity)

	dc.DrawImage(tinted, (outW-sw)/2, (outH-sh)/2)
}

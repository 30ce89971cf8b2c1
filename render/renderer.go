// Scene rasterization. A single draw path serves both the live preview
// (scale 1) and the export renderer (the scene's export scale); the two only
// differ in the scale factor handed to the geometry utility, so the export is
// a pure re-projection of the preview layout.
package render

import (
	"fmt"
	"image"
	"strings"

	"designcomposer/core"

	"github.com/anthonynsimon/bild/transform"
	"github.com/fogleman/gg"
	"github.com/sirupsen/logrus"
)

// Vertical gap added between wrapped text lines, in canvas-space units.
const lineGap = 4.0

// Renderer rasterizes scenes against a base image catalog.
type Renderer struct {
	catalog core.Catalog
	fonts   *fontManager
}

func NewRenderer(catalog core.Catalog) *Renderer {
	return &Renderer{
		catalog: catalog,
		fonts:   newFontManager(),
	}
}

// Preview renders the scene at its logical canvas size (scale 1).
func (r *Renderer) Preview(scene *core.Scene) (*image.RGBA, error) {
	return r.render(scene, 1)
}

// RenderScaled renders the scene at an arbitrary scale factor.
func (r *Renderer) RenderScaled(scene *core.Scene, scale float64) (*image.RGBA, error) {
	return r.render(scene, scale)
}

func (r *Renderer) render(scene *core.Scene, scale float64) (*image.RGBA, error) {
	outW := core.Scale(scene.CanvasWidth, scale)
	outH := core.Scale(scene.CanvasHeight, scale)
	if outW <= 0 || outH <= 0 {
		return nil, fmt.Errorf("render surface has no area (%dx%d)", outW, outH)
	}

	assets := resolveAssets(scene, r.catalog)

	dc := gg.NewContext(outW, outH)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	compositeBase(dc, assets.base, scene.TintColor, scene.BlendMode, outW, outH)

	for _, t := range scene.TextLayers {
		r.drawText(dc, t, scale)
	}
	for _, l := range scene.LogoLayers {
		drawLogo(dc, l, assets.logos[l.ID], scale)
	}

	img, ok := dc.Image().(*image.RGBA)
	if !ok {
		return nil, fmt.Errorf("render surface allocation failed")
	}
	return img, nil
}

func (r *Renderer) drawText(dc *gg.Context, t *core.TextLayer, scale float64) {
	face, err := r.fonts.Face(t.FontFamily, t.FontWeight, float64(core.Scale(t.FontSizePx, scale)))
	if err != nil {
		logrus.WithField("layer_id", t.ID).WithError(err).Warn("Font face unavailable, skipping text layer")
		return
	}
	defer face.Close()

	dc.SetFontFace(face)
	dc.SetColor(t.Color.RGBA())

	x := float64(core.Scale(t.X, scale))
	for i, line := range strings.Split(t.Content, "\n") {
		top := t.Y + float64(i)*(t.FontSizePx+lineGap)
		baseline := float64(core.Scale(top+t.FontSizePx, scale))
		dc.DrawString(line, x, baseline)
	}
}

func drawLogo(dc *gg.Context, l *core.LogoLayer, img image.Image, scale float64) {
	if img == nil {
		// Decode failed earlier; the layer is absent from this render.
		return
	}
	w := core.Scale(l.Width, scale)
	h := core.Scale(l.Height, scale)
	if w <= 0 || h <= 0 {
		return
	}
	scaled := transform.Resize(img, w, h, transform.Linear)
	dc.DrawImage(scaled, core.Scale(l.X, scale), core.Scale(l.Y, scale))
}

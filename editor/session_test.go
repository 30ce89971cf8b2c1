package editor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"designcomposer/core"
	"designcomposer/render"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog map[string][]byte

func (c stubCatalog) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	return ids
}

func (c stubCatalog) Resolve(id string) ([]byte, error) {
	data, ok := c[id]
	if !ok {
		return nil, fmt.Errorf("base image %s not found", id)
	}
	return data, nil
}

func newTestSession(t *testing.T) (*Session, *core.Scene) {
	t.Helper()
	scene := core.NewScene("mug.png", 600, 600)
	return NewSession(scene, render.NewRenderer(stubCatalog{})), scene
}

func logoPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{0, 0, 255, 255}}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDragKeepsGrabOffset(t *testing.T) {
	sess, scene := newTestSession(t)
	sess.AddText()
	layer := scene.TextLayers[0]

	// Grab the layer 10,20 inside its top-left corner.
	sess.PointerDown(layer.X+10, layer.Y+20, TargetLayer)
	sess.PointerMove(300, 300)
	sess.PointerUp()

	assert.Equal(t, 290.0, layer.X)
	assert.Equal(t, 280.0, layer.Y)
}

func TestDragClampsMidGesture(t *testing.T) {
	sess, scene := newTestSession(t)
	sess.AddText()
	layer := scene.TextLayers[0]
	w, h := layer.Bounds()

	sess.PointerDown(layer.X+1, layer.Y+1, TargetLayer)
	// Still mid-gesture: the layer must already be clamped, not only on release.
	sess.PointerMove(5000, 5000)
	assert.Equal(t, 600-w, layer.X)
	assert.Equal(t, 600-h, layer.Y)
	sess.PointerUp()
}

func TestTextResizeFollowsDragRatio(t *testing.T) {
	sess, scene := newTestSession(t)
	sess.AddText()
	layer := scene.TextLayers[0]
	require.Equal(t, 40.0, layer.FontSizePx)

	downX, downY := layer.X+5, layer.Y+5
	sess.PointerDown(downX, downY, TargetResizeHandle)

	// 60px of vertical drag is 10 font units.
	sess.PointerMove(downX, downY+60)
	assert.Equal(t, 50.0, layer.FontSizePx)

	// Dragging far past the limits pins the size to its bounds.
	sess.PointerMove(downX, downY+600)
	assert.Equal(t, core.MaxFontSize, layer.FontSizePx)
	sess.PointerMove(downX, downY-600)
	assert.Equal(t, core.MinFontSize, layer.FontSizePx)
	sess.PointerUp()
}

func TestLogoResizeGesture(t *testing.T) {
	sess, scene := newTestSession(t)
	_, err := sess.AddLogo(logoPNG(t))
	require.NoError(t, err)
	logo := scene.LogoLayers[0]
	require.Equal(t, 75.0, logo.Width)

	downX, downY := logo.X+5, logo.Y+5
	sess.PointerDown(downX, downY, TargetResizeHandle)

	sess.PointerMove(downX+25, downY+15)
	assert.Equal(t, 100.0, logo.Width)
	assert.Equal(t, 90.0, logo.Height)

	// Shrinking below the floor stops at the minimum.
	sess.PointerMove(downX-200, downY-200)
	assert.Equal(t, core.MinLogoSize, logo.Width)
	assert.Equal(t, core.MinLogoSize, logo.Height)
	sess.PointerUp()
}

func TestOnlyOneGestureAtATime(t *testing.T) {
	sess, scene := newTestSession(t)
	sess.AddText()
	_, err := sess.AddLogo(logoPNG(t))
	require.NoError(t, err)
	text := scene.TextLayers[0]
	logo := scene.LogoLayers[0]
	logoX, logoY := logo.X, logo.Y

	sess.PointerDown(text.X+10, text.Y+10, TargetLayer)
	require.Equal(t, text.ID, sess.Selected())

	// A second pointer-down while dragging is ignored entirely.
	sess.PointerDown(logo.X+5, logo.Y+5, TargetLayer)
	assert.Equal(t, text.ID, sess.Selected())

	sess.PointerMove(400, 400)
	sess.PointerUp()

	assert.Equal(t, 390.0, text.X)
	assert.Equal(t, logoX, logo.X)
	assert.Equal(t, logoY, logo.Y)
}

func TestEmptyCanvasClickKeepsSelection(t *testing.T) {
	sess, scene := newTestSession(t)
	sess.AddText()
	layer := scene.TextLayers[0]
	require.Equal(t, layer.ID, sess.Selected())

	x, y := layer.X, layer.Y
	sess.PointerDown(599, 599, TargetLayer)
	sess.PointerMove(10, 10)
	sess.PointerUp()

	assert.Equal(t, layer.ID, sess.Selected())
	assert.Equal(t, x, layer.X)
	assert.Equal(t, y, layer.Y)
}

func TestDeleteActiveLayerEndsGesture(t *testing.T) {
	sess, scene := newTestSession(t)
	sess.AddText()
	sess.AddText()
	first := scene.TextLayers[0]
	second := scene.TextLayers[1]

	sess.PointerDown(second.X+1, second.Y+1, TargetLayer)
	require.NoError(t, sess.DeleteLayer(second.ID))

	// The gesture died with the layer; moving must not touch anything.
	x := first.X
	sess.PointerMove(400, 400)
	assert.Equal(t, x, first.X)

	// And a new gesture can start immediately.
	sess.PointerDown(first.X+1, first.Y+1, TargetLayer)
	sess.PointerMove(first.X+51, first.Y+1)
	sess.PointerUp()
	assert.Equal(t, x+50, first.X)
}

func TestAddLogoRejectsEmptyImage(t *testing.T) {
	sess, _ := newTestSession(t)
	_, err := sess.AddLogo(nil)
	assert.Error(t, err)
}

func TestResizeLogoToKeepsZeroDimensions(t *testing.T) {
	sess, scene := newTestSession(t)
	logo, err := sess.AddLogo(logoPNG(t))
	require.NoError(t, err)

	require.NoError(t, sess.ResizeLogoTo(logo.ID, 0, 120))
	assert.Equal(t, 75.0, scene.LogoLayers[0].Width)
	assert.Equal(t, 120.0, scene.LogoLayers[0].Height)

	assert.Error(t, sess.ResizeLogoTo("nope", 10, 10))
}

func TestResizeCanvasSingleAxis(t *testing.T) {
	sess, scene := newTestSession(t)

	require.NoError(t, sess.ResizeCanvas(800, 0))
	assert.Equal(t, 800.0, scene.CanvasWidth)
	assert.Equal(t, 600.0, scene.CanvasHeight)

	require.NoError(t, sess.ResizeCanvas(0, 400))
	assert.Equal(t, 800.0, scene.CanvasWidth)
	assert.Equal(t, 400.0, scene.CanvasHeight)
}

func TestEditAndCommitText(t *testing.T) {
	sess, scene := newTestSession(t)
	layer := sess.AddText()
	require.True(t, layer.IsEditing)

	require.NoError(t, sess.EditText(layer.ID, "SALE\n50% off"))
	require.NoError(t, sess.CommitText(layer.ID))

	assert.Equal(t, "SALE\n50% off", scene.TextLayers[0].Content)
	assert.False(t, scene.TextLayers[0].IsEditing)
}

func TestSnapshotIsIsolated(t *testing.T) {
	sess, scene := newTestSession(t)
	sess.AddText()

	snap := sess.Snapshot()
	require.NoError(t, sess.EditText(scene.TextLayers[0].ID, "changed"))

	assert.Equal(t, "Your text", snap.TextLayers[0].Content)
}

func TestPreviewMatchesCanvasSize(t *testing.T) {
	sess, _ := newTestSession(t)
	sess.AddText()

	img, err := sess.Preview()
	require.NoError(t, err)
	assert.Equal(t, 600, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())
}

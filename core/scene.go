package core

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"github.com/oklog/ulid/v2"
)

// Font size and logo size limits enforced by every resize mutation.
const (
	MinFontSize = 12.0
	MaxFontSize = 72.0
	MinLogoSize = 24.0

	// One unit of font size per six pixels of vertical drag.
	FontSizeDragRatio = 6.0
)

// BlendMode selects how the tint color composites onto the base photo.
type BlendMode string

const (
	BlendColor      BlendMode = "color"
	BlendMultiply   BlendMode = "multiply"
	BlendOverlay    BlendMode = "overlay"
	BlendHue        BlendMode = "hue"
	BlendSaturation BlendMode = "saturation"
)

// Valid reports whether m is one of the supported blend modes.
func (m BlendMode) Valid() bool {
	switch m {
	case BlendColor, BlendMultiply, BlendOverlay, BlendHue, BlendSaturation:
		return true
	}
	return false
}

// RGB is an opaque color in scene space.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// RGBA converts to the stdlib color type with full opacity.
func (c RGB) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// TextLayer is a placeable text element. All geometry is canvas-space.
type TextLayer struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	FontSizePx float64 `json:"fontSizePx"`
	FontFamily string  `json:"fontFamily"`
	Color      RGB     `json:"color"`
	FontWeight int     `json:"fontWeight"`

	// IsEditing is a transient UI flag, true right after creation. It has no
	// effect on rendering or export.
	IsEditing bool `json:"-"`
}

// Bounds returns the layer's approximate bounding box in canvas-space.
func (t *TextLayer) Bounds() (w, h float64) {
	return TextBounds(t.Content, t.FontSizePx)
}

// LogoLayer is a placeable image element. ImageData holds the raw encoded
// bytes from the user's file pick, so a logo layer is self-contained.
type LogoLayer struct {
	ID        string  `json:"id"`
	ImageData []byte  `json:"imageData"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// Scene is the aggregate root for one editing session: base photo choice,
// tint, and all layers. Persistence metadata mirrors the stored record.
// Scene methods are not safe for concurrent use; the editor session
// serializes access.
type Scene struct {
	ID     string `json:"id"`
	UserID string `json:"-"`
	Name   string `json:"name"`

	BaseImageID  string    `json:"baseImageId"`
	TintColor    RGB       `json:"tintColor"`
	BlendMode    BlendMode `json:"blendMode"`
	CanvasWidth  float64   `json:"canvasWidth"`
	CanvasHeight float64   `json:"canvasHeight"`
	ExportScale  float64   `json:"exportScale"`

	TextLayers []*TextLayer `json:"textLayers"`
	LogoLayers []*LogoLayer `json:"logoLayers"`

	SelectedLayerID string `json:"selectedLayerId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewScene creates a scene with a selected base photo and logical canvas size.
func NewScene(baseImageID string, canvasWidth, canvasHeight float64) *Scene {
	return &Scene{
		ID:           ulid.Make().String(),
		BaseImageID:  baseImageID,
		TintColor:    RGB{R: 255, G: 255, B: 255},
		BlendMode:    BlendColor,
		CanvasWidth:  canvasWidth,
		CanvasHeight: canvasHeight,
		ExportScale:  1,
	}
}

// AddTextLayer creates a text layer with defaults derived from the canvas
// size, selects it, and puts it into edit mode.
func (s *Scene) AddTextLayer() *TextLayer {
	t := &TextLayer{
		ID:         ulid.Make().String(),
		Content:    "Your text",
		X:          s.CanvasWidth / 4,
		Y:          s.CanvasHeight / 4,
		FontSizePx: clampFloat(s.CanvasWidth/15, MinFontSize, MaxFontSize),
		FontFamily: "sans",
		Color:      RGB{},
		FontWeight: 400,
		IsEditing:  true,
	}
	s.TextLayers = append(s.TextLayers, t)
	s.SelectedLayerID = t.ID
	s.clampText(t)
	return t
}

// AddLogoLayer creates a logo layer from raw image bytes, sized to an eighth
// of the canvas width and centered. The new layer becomes the selection.
func (s *Scene) AddLogoLayer(imageData []byte) *LogoLayer {
	size := clampFloat(s.CanvasWidth/8, MinLogoSize, minFloat(s.CanvasWidth, s.CanvasHeight))
	l := &LogoLayer{
		ID:        ulid.Make().String(),
		ImageData: imageData,
		X:         (s.CanvasWidth - size) / 2,
		Y:         (s.CanvasHeight - size) / 2,
		Width:     size,
		Height:    size,
	}
	s.LogoLayers = append(s.LogoLayers, l)
	s.SelectedLayerID = l.ID
	s.clampLogo(l)
	return l
}

// MoveLayer sets a layer's top-left anchor, clamped so its bounding box stays
// inside the canvas.
func (s *Scene) MoveLayer(id string, x, y float64) error {
	if t := s.findText(id); t != nil {
		t.X, t.Y = x, y
		s.clampText(t)
		return nil
	}
	if l := s.findLogo(id); l != nil {
		l.X, l.Y = x, y
		s.clampLogo(l)
		return nil
	}
	return fmt.Errorf("layer %s not found", id)
}

// SetFontSize sets a text layer's font size, clamped into [MinFontSize,
// MaxFontSize], and re-clamps the layer's recomputed bounding box.
func (s *Scene) SetFontSize(id string, size float64) error {
	t := s.findText(id)
	if t == nil {
		return fmt.Errorf("text layer %s not found", id)
	}
	t.FontSizePx = clampFloat(size, MinFontSize, MaxFontSize)
	s.clampText(t)
	return nil
}

// SetContent replaces a text layer's content. Inline editing commits through
// this on every keystroke.
func (s *Scene) SetContent(id, content string) error {
	t := s.findText(id)
	if t == nil {
		return fmt.Errorf("text layer %s not found", id)
	}
	t.Content = content
	s.clampText(t)
	return nil
}

// CommitEdit ends inline editing for a text layer.
func (s *Scene) CommitEdit(id string) error {
	t := s.findText(id)
	if t == nil {
		return fmt.Errorf("text layer %s not found", id)
	}
	t.IsEditing = false
	return nil
}

// SetTextStyle updates style attributes of a text layer. Zero values leave
// the corresponding attribute unchanged.
func (s *Scene) SetTextStyle(id string, family string, col *RGB, weight int) error {
	t := s.findText(id)
	if t == nil {
		return fmt.Errorf("text layer %s not found", id)
	}
	if family != "" {
		t.FontFamily = family
	}
	if col != nil {
		t.Color = *col
	}
	if weight > 0 {
		t.FontWeight = weight
	}
	return nil
}

// ResizeLogo sets a logo layer's dimensions independently, each held to the
// minimum size and to the canvas bounds from the layer's current position.
func (s *Scene) ResizeLogo(id string, width, height float64) error {
	l := s.findLogo(id)
	if l == nil {
		return fmt.Errorf("logo layer %s not found", id)
	}
	l.Width = clampFloat(width, MinLogoSize, s.CanvasWidth-l.X)
	l.Height = clampFloat(height, MinLogoSize, s.CanvasHeight-l.Y)
	s.clampLogo(l)
	return nil
}

// DeleteLayer removes a layer and clears the selection if it pointed at it.
func (s *Scene) DeleteLayer(id string) error {
	for i, t := range s.TextLayers {
		if t.ID == id {
			s.TextLayers = append(s.TextLayers[:i], s.TextLayers[i+1:]...)
			if s.SelectedLayerID == id {
				s.SelectedLayerID = ""
			}
			return nil
		}
	}
	for i, l := range s.LogoLayers {
		if l.ID == id {
			s.LogoLayers = append(s.LogoLayers[:i], s.LogoLayers[i+1:]...)
			if s.SelectedLayerID == id {
				s.SelectedLayerID = ""
			}
			return nil
		}
	}
	return fmt.Errorf("layer %s not found", id)
}

// Select marks a layer as selected. Selecting an unknown layer is an error;
// selection is never cleared by clicking empty canvas.
func (s *Scene) Select(id string) error {
	if s.findText(id) == nil && s.findLogo(id) == nil {
		return fmt.Errorf("layer %s not found", id)
	}
	s.SelectedLayerID = id
	return nil
}

// SetBaseImage switches the base product photo.
func (s *Scene) SetBaseImage(id string) {
	s.BaseImageID = id
}

// SetTint updates the tint color and, when given a valid mode, the blend mode.
func (s *Scene) SetTint(col RGB, mode BlendMode) error {
	s.TintColor = col
	if mode != "" {
		if !mode.Valid() {
			return fmt.Errorf("unknown blend mode %q", mode)
		}
		s.BlendMode = mode
	}
	return nil
}

// SetExportScale sets the export resolution multiplier.
func (s *Scene) SetExportScale(scale float64) error {
	if scale <= 0 {
		return fmt.Errorf("export scale must be positive, got %v", scale)
	}
	s.ExportScale = scale
	return nil
}

// SetCanvasSize recomputes the logical canvas dimensions (viewport resize)
// and re-clamps every layer into the new bounds.
func (s *Scene) SetCanvasSize(width, height float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("canvas size must be positive, got %vx%v", width, height)
	}
	s.CanvasWidth, s.CanvasHeight = width, height
	for _, t := range s.TextLayers {
		s.clampText(t)
	}
	for _, l := range s.LogoLayers {
		s.clampLogo(l)
	}
	return nil
}

// HitTest returns the topmost layer at a canvas-space point, or "" when the
// point is over empty canvas. Logo layers render above text layers, and later
// layers above earlier ones within each collection.
func (s *Scene) HitTest(x, y float64) string {
	for i := len(s.LogoLayers) - 1; i >= 0; i-- {
		l := s.LogoLayers[i]
		if x >= l.X && x <= l.X+l.Width && y >= l.Y && y <= l.Y+l.Height {
			return l.ID
		}
	}
	for i := len(s.TextLayers) - 1; i >= 0; i-- {
		t := s.TextLayers[i]
		w, h := t.Bounds()
		if x >= t.X && x <= t.X+w && y >= t.Y && y <= t.Y+h {
			return t.ID
		}
	}
	return ""
}

// Clone returns a deep copy, used to snapshot the scene before handing it to
// the export renderer.
func (s *Scene) Clone() *Scene {
	out := *s
	out.TextLayers = make([]*TextLayer, len(s.TextLayers))
	for i, t := range s.TextLayers {
		c := *t
		out.TextLayers[i] = &c
	}
	out.LogoLayers = make([]*LogoLayer, len(s.LogoLayers))
	for i, l := range s.LogoLayers {
		c := *l
		c.ImageData = append([]byte(nil), l.ImageData...)
		out.LogoLayers[i] = &c
	}
	return &out
}

func (s *Scene) findText(id string) *TextLayer {
	for _, t := range s.TextLayers {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (s *Scene) findLogo(id string) *LogoLayer {
	for _, l := range s.LogoLayers {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (s *Scene) clampText(t *TextLayer) {
	// Best-effort when the minimum box cannot fit: the font floor is never
	// broken, so a long string at MinFontSize on a tiny canvas pins to the
	// origin and overflows rather than shrinking below the floor.
	w, h := t.Bounds()
	t.X = clampFloat(t.X, 0, maxFloat(0, s.CanvasWidth-w))
	t.Y = clampFloat(t.Y, 0, maxFloat(0, s.CanvasHeight-h))
}

func (s *Scene) clampLogo(l *LogoLayer) {
	l.Width = clampFloat(l.Width, MinLogoSize, maxFloat(MinLogoSize, s.CanvasWidth))
	l.Height = clampFloat(l.Height, MinLogoSize, maxFloat(MinLogoSize, s.CanvasHeight))
	l.X = clampFloat(l.X, 0, maxFloat(0, s.CanvasWidth-l.Width))
	l.Y = clampFloat(l.Y, 0, maxFloat(0, s.CanvasHeight-l.Height))
}

// SceneStore defines the persistence layer for user-owned scenes.
// All operations are scoped to a specific user.
type SceneStore interface {
	// List returns metadata for all scenes owned by a user. The returned
	// scenes do not carry layer data, to keep the response light.
	List(ctx context.Context, userID string) ([]*Scene, error)

	// Get returns a single scene by its ID, ensuring it belongs to the user.
	Get(ctx context.Context, userID, id string) (*Scene, error)

	// Save creates or updates a scene for a user.
	Save(ctx context.Context, scene *Scene) error

	// Delete removes a scene, ensuring it belongs to the user.
	Delete(ctx context.Context, userID, id string) error
}

// Meta returns a copy without layer data, for list views.
func (s *Scene) Meta() *Scene {
	out := *s
	out.TextLayers = nil
	out.LogoLayers = nil
	return &out
}

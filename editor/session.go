// The editor session is the interactive surface: it owns one scene for
// writes, routes pointer gestures to layer mutations, and tracks selection.
// The host UI event loop of the surrounding application becomes a per-session
// mutex here; gestures and edits are serialized exactly as a single UI thread
// would serialize them.
package editor

import (
	"fmt"
	"image"
	"sync"

	"designcomposer/core"
	"designcomposer/render"
)

// PointerTarget distinguishes what the pointer went down on.
type PointerTarget string

const (
	// TargetLayer starts a drag gesture when it hits a layer.
	TargetLayer PointerTarget = "layer"
	// TargetResizeHandle starts a resize gesture on the hit layer.
	TargetResizeHandle PointerTarget = "resize-handle"
)

type gestureKind int

const (
	gestureNone gestureKind = iota
	gestureDrag
	gestureResizeText
	gestureResizeLogo
)

// Session wraps a scene with gesture state. At most one gesture is active at
// a time, tracked by a single active layer id for the duration of a
// pointer-down-to-pointer-up sequence.
type Session struct {
	mu       sync.Mutex
	scene    *core.Scene
	renderer *render.Renderer

	gesture    gestureKind
	activeID   string
	grabDX     float64 // pointer offset inside the layer at pointer-down
	grabDY     float64
	startX     float64 // pointer position at pointer-down
	startY     float64
	startSize  float64 // font size at pointer-down (text resize)
	startW     float64 // dimensions at pointer-down (logo resize)
	startH     float64
}

// NewSession binds a scene to a renderer for live previewing.
func NewSession(scene *core.Scene, renderer *render.Renderer) *Session {
	return &Session{scene: scene, renderer: renderer}
}

// PointerDown begins a gesture at a canvas-space point. Hitting a layer
// selects it; hitting empty canvas leaves the selection unchanged and starts
// no gesture.
func (s *Session) PointerDown(x, y float64, target PointerTarget) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gesture != gestureNone {
		// A gesture is already in flight; the surface only honors one.
		return
	}

	id := s.scene.HitTest(x, y)
	if id == "" {
		return
	}
	_ = s.scene.Select(id)
	s.activeID = id
	s.startX, s.startY = x, y

	if t := s.textLayer(id); t != nil {
		if target == TargetResizeHandle {
			s.gesture = gestureResizeText
			s.startSize = t.FontSizePx
		} else {
			s.gesture = gestureDrag
			s.grabDX, s.grabDY = x-t.X, y-t.Y
		}
		return
	}
	if l := s.logoLayer(id); l != nil {
		if target == TargetResizeHandle {
			s.gesture = gestureResizeLogo
			s.startW, s.startH = l.Width, l.Height
		} else {
			s.gesture = gestureDrag
			s.grabDX, s.grabDY = x-l.X, y-l.Y
		}
	}
}

// PointerMove continuously applies the active gesture. Positions and sizes
// are clamped on every step, so the scene invariant holds mid-gesture, not
// just on release.
func (s *Session) PointerMove(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.gesture {
	case gestureDrag:
		_ = s.scene.MoveLayer(s.activeID, x-s.grabDX, y-s.grabDY)
	case gestureResizeText:
		_ = s.scene.SetFontSize(s.activeID, s.startSize+(y-s.startY)/core.FontSizeDragRatio)
	case gestureResizeLogo:
		_ = s.scene.ResizeLogo(s.activeID, s.startW+(x-s.startX), s.startH+(y-s.startY))
	}
}

// PointerUp ends the active gesture. The last applied position or size is the
// committed value; there is no separate confirm step.
func (s *Session) PointerUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gesture = gestureNone
	s.activeID = ""
}

// AddText creates a text layer with canvas-derived defaults.
func (s *Session) AddText() core.TextLayer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.scene.AddTextLayer()
}

// AddLogo creates a logo layer from raw picked-file bytes.
func (s *Session) AddLogo(imageData []byte) (core.LogoLayer, error) {
	if len(imageData) == 0 {
		return core.LogoLayer{}, fmt.Errorf("logo image is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.scene.AddLogoLayer(imageData), nil
}

// EditText mutates a text layer's content (inline editing).
func (s *Session) EditText(id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.SetContent(id, content)
}

// CommitText ends inline editing for a text layer.
func (s *Session) CommitText(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.CommitEdit(id)
}

// StyleText applies style picker changes to a text layer.
func (s *Session) StyleText(id, family string, col *core.RGB, weight int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.SetTextStyle(id, family, col, weight)
}

// ResizeLogoTo sets a logo layer's dimensions directly. A zero width or
// height keeps the current value.
func (s *Session) ResizeLogoTo(id string, width, height float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.logoLayer(id)
	if l == nil {
		return fmt.Errorf("logo layer %s not found", id)
	}
	if width <= 0 {
		width = l.Width
	}
	if height <= 0 {
		height = l.Height
	}
	return s.scene.ResizeLogo(id, width, height)
}

// DeleteLayer removes a layer.
func (s *Session) DeleteLayer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == id {
		s.gesture = gestureNone
		s.activeID = ""
	}
	return s.scene.DeleteLayer(id)
}

// SetTint updates tint color and blend mode.
func (s *Session) SetTint(col core.RGB, mode core.BlendMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.SetTint(col, mode)
}

// SetBaseImage switches the base product photo.
func (s *Session) SetBaseImage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scene.SetBaseImage(id)
}

// SetExportScale sets the export resolution multiplier.
func (s *Session) SetExportScale(scale float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.SetExportScale(scale)
}

// ResizeCanvas recomputes the logical canvas size on a viewport resize. A
// zero width or height keeps the current value, so single-axis resizes work.
func (s *Session) ResizeCanvas(width, height float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width <= 0 {
		width = s.scene.CanvasWidth
	}
	if height <= 0 {
		height = s.scene.CanvasHeight
	}
	return s.scene.SetCanvasSize(width, height)
}

// Preview renders the current scene at scale 1. The render happens on a
// snapshot, so a slow render never blocks interaction for its full duration.
func (s *Session) Preview() (*image.RGBA, error) {
	return s.renderer.Preview(s.Snapshot())
}

// Snapshot returns a deep copy of the scene for point-in-time reads (export,
// persistence). The layer model has no concurrency-safe read path, so
// everything leaving the session is a copy.
func (s *Session) Snapshot() *core.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.Clone()
}

// Selected returns the current selection, or "".
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.SelectedLayerID
}

func (s *Session) textLayer(id string) *core.TextLayer {
	for _, t := range s.scene.TextLayers {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (s *Session) logoLayer(id string) *core.LogoLayer {
	for _, l := range s.scene.LogoLayers {
		if l.ID == id {
			return l
		}
	}
	return nil
}

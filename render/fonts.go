// Font faces for layer text, backed by the embedded Go fonts. Family and
// weight on a text layer map onto the closest available face; there is no
// font file loading at render time, so both render paths resolve a given
// layer to the same glyphs.
package render

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

type fontManager struct {
	mu     sync.Mutex
	parsed map[string]*opentype.Font
}

func newFontManager() *fontManager {
	return &fontManager{parsed: make(map[string]*opentype.Font)}
}

// boldWeight is the CSS-style weight at which we switch to the bold face.
const boldWeight = 600

func fontSource(family string, weight int) (string, []byte) {
	switch family {
	case "mono":
		return "mono", gomono.TTF
	case "italic":
		return "italic", goitalic.TTF
	default:
		if weight >= boldWeight {
			return "bold", gobold.TTF
		}
		return "regular", goregular.TTF
	}
}

// Face returns a font face for the given style at the given pixel size.
func (fm *fontManager) Face(family string, weight int, sizePx float64) (font.Face, error) {
	key, ttf := fontSource(family, weight)

	fm.mu.Lock()
	parsed, ok := fm.parsed[key]
	if !ok {
		var err error
		parsed, err = opentype.Parse(ttf)
		if err != nil {
			fm.mu.Unlock()
			return nil, fmt.Errorf("failed to parse font %s: %w", key, err)
		}
		fm.parsed[key] = parsed
	}
	fm.mu.Unlock()

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}

package core

import (
	"math"
	"unicode/utf8"
)

// Scale maps a logical canvas-space value to output space. This is the only
// place scaling happens: the live preview calls it with factor 1 and the
// export renderer with the scene's export scale, so both paths place every
// element through the same rounding.
func Scale(v, factor float64) int {
	return int(math.Round(v * factor))
}

// TextBounds returns the approximate bounding box of a text layer, derived
// from character count rather than real text metrics. Hit-testing and
// clamping both go through here, so swapping in true measurement later
// touches no gesture code.
func TextBounds(content string, fontSizePx float64) (w, h float64) {
	n := float64(utf8.RuneCountInString(content))
	return n*fontSizePx/2 + 20, fontSizePx + 20
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

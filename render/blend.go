package render

import (
	"image"

	"designcomposer/core"

	"github.com/anthonynsimon/bild/blend"
)

// BlendFunc composites a tint image (fg) onto the base photo region (bg).
// One function per blend mode keeps the per-mode math swappable.
type BlendFunc func(bg, fg image.Image) *image.RGBA

func blendFor(mode core.BlendMode) BlendFunc {
	switch mode {
	case core.BlendMultiply:
		return blend.Multiply
	case core.BlendOverlay:
		return blend.Overlay
	case core.BlendHue:
		return blendHue
	case core.BlendSaturation:
		return blendSaturation
	default:
		return blendColor
	}
}

// The hue, saturation and color modes are the standard non-separable blend
// modes: they mix the luminosity/saturation of the backdrop with components
// of the source color.

func blendHue(bg, fg image.Image) *image.RGBA {
	return blendPerPixel(bg, fg, func(b, s [3]float64) [3]float64 {
		return setLum(setSat(s, sat(b)), lum(b))
	})
}

func blendSaturation(bg, fg image.Image) *image.RGBA {
	return blendPerPixel(bg, fg, func(b, s [3]float64) [3]float64 {
		return setLum(setSat(b, sat(s)), lum(b))
	})
}

func blendColor(bg, fg image.Image) *image.RGBA {
	return blendPerPixel(bg, fg, func(b, s [3]float64) [3]float64 {
		return setLum(s, lum(b))
	})
}

func blendPerPixel(bg, fg image.Image, f func(b, s [3]float64) [3]float64) *image.RGBA {
	bounds := bg.Bounds()
	dst := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			br, bgr, bb, ba := bg.At(x, y).RGBA()
			sr, sg, sb, _ := fg.At(x, y).RGBA()

			b := [3]float64{float64(br) / 65535, float64(bgr) / 65535, float64(bb) / 65535}
			s := [3]float64{float64(sr) / 65535, float64(sg) / 65535, float64(sb) / 65535}
			r := f(b, s)

			i := dst.PixOffset(x, y)
			dst.Pix[i+0] = uint8(clamp01(r[0])*255 + 0.5)
			dst.Pix[i+1] = uint8(clamp01(r[1])*255 + 0.5)
			dst.Pix[i+2] = uint8(clamp01(r[2])*255 + 0.5)
			dst.Pix[i+3] = uint8(float64(ba)/65535*255 + 0.5)
		}
	}
	return dst
}

func lum(c [3]float64) float64 {
	return 0.3*c[0] + 0.59*c[1] + 0.11*c[2]
}

func setLum(c [3]float64, l float64) [3]float64 {
	d := l - lum(c)
	return clipColor([3]float64{c[0] + d, c[1] + d, c[2] + d})
}

func clipColor(c [3]float64) [3]float64 {
	l := lum(c)
	n := min3(c)
	x := max3(c)
	if n < 0 {
		for i := range c {
			c[i] = l + (c[i]-l)*l/(l-n)
		}
	}
	if x > 1 {
		for i := range c {
			c[i] = l + (c[i]-l)*(1-l)/(x-l)
		}
	}
	return c
}

func sat(c [3]float64) float64 {
	return max3(c) - min3(c)
}

func setSat(c [3]float64, s float64) [3]float64 {
	lo, mid, hi := 0, 1, 2
	// Order the component indices by value.
	if c[lo] > c[mid] {
		lo, mid = mid, lo
	}
	if c[mid] > c[hi] {
		mid, hi = hi, mid
	}
	if c[lo] > c[mid] {
		lo, mid = mid, lo
	}

	var out [3]float64
	if c[hi] > c[lo] {
		out[mid] = (c[mid] - c[lo]) * s / (c[hi] - c[lo])
		out[hi] = s
	}
	out[lo] = 0
	return out
}

func min3(c [3]float64) float64 {
	m := c[0]
	if c[1] < m {
		m = c[1]
	}
	if c[2] < m {
		m = c[2]
	}
	return m
}

func max3(c [3]float64) float64 {
	m := c[0]
	if c[1] > m {
		m = c[1]
	}
	if c[2] > m {
		m = c[2]
	}
	return m
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Package colormap provides color schemes for visualization.
package colormap

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// RGBA is a color with float channels in [0, 1].
type RGBA struct {
	R, G, B, A float64
}

// RGBA implements color.Color.
func (c RGBA) RGBA() (r, g, b, a uint32) {
	alpha := clamp01(c.A)
	a = uint32(alpha*0xffff + 0.5)
	r = uint32(clamp01(c.R)*alpha*0xffff + 0.5)
	g = uint32(clamp01(c.G)*alpha*0xffff + 0.5)
	b = uint32(clamp01(c.B)*alpha*0xffff + 0.5)
	return
}

// RGB drops the alpha channel.
func (c RGBA) RGB() colorful.Color {
	return colorful.Color{R: c.R, G: c.G, B: c.B}
}

// Hex formats the color as #rrggbb, ignoring alpha.
func (c RGBA) Hex() string {
	return c.RGB().Clamped().Hex()
}

// Colormap maps normalized values [0, 1] to colors.
type Colormap interface {
	Name() string
	At(t float64) RGBA
}

// LinearColormap is a linear interpolation colormap over evenly spaced anchors.
type LinearColormap struct {
	name   string
	colors []RGBA
}

// NewLinear creates a linear colormap. The anchors are copied.
func NewLinear(name string, colors []RGBA) LinearColormap {
	return LinearColormap{name: name, colors: append([]RGBA(nil), colors...)}
}

// Name returns the colormap name.
func (c LinearColormap) Name() string { return c.name }

// At returns the color at position t (0-1). NaN maps to transparent black.
func (c LinearColormap) At(t float64) RGBA {
	n := len(c.colors)
	if n == 0 || math.IsNaN(t) {
		return RGBA{}
	}
	if t <= 0 || n == 1 {
		return c.colors[0]
	}
	if t >= 1 {
		return c.colors[n-1]
	}

	idx := t * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		upper = n - 1
	}

	frac := idx - float64(lower)
	return interpolate(c.colors[lower], c.colors[upper], frac)
}

// Colors returns a copy of the anchor colors.
func (c LinearColormap) Colors() []RGBA {
	return append([]RGBA(nil), c.colors...)
}

func interpolate(c1, c2 RGBA, t float64) RGBA {
	return RGBA{
		R: c1.R + t*(c2.R-c1.R),
		G: c1.G + t*(c2.G-c1.G),
		B: c1.B + t*(c2.B-c1.B),
		A: c1.A + t*(c2.A-c1.A),
	}
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

// fromBytes builds an opaque linear colormap from 8-bit anchors.
func fromBytes(name string, anchors [][3]uint8) LinearColormap {
	colors := make([]RGBA, len(anchors))
	for i, a := range anchors {
		colors[i] = RGBA{
			R: float64(a[0]) / 255,
			G: float64(a[1]) / 255,
			B: float64(a[2]) / 255,
			A: 1,
		}
	}
	return LinearColormap{name: name, colors: colors}
}

// Viridis colormap (matplotlib viridis)
var Viridis = fromBytes("viridis", [][3]uint8{
	{68, 1, 84},
	{72, 35, 116},
	{64, 67, 135},
	{52, 94, 141},
	{41, 120, 142},
	{32, 144, 140},
	{34, 167, 132},
	{68, 190, 112},
	{121, 209, 81},
	{189, 222, 38},
	{253, 231, 37},
})

// Plasma colormap
var Plasma = fromBytes("plasma", [][3]uint8{
	{13, 8, 135},
	{75, 3, 161},
	{125, 3, 168},
	{168, 34, 150},
	{203, 70, 121},
	{229, 107, 93},
	{248, 148, 65},
	{253, 195, 40},
	{240, 249, 33},
})

// Inferno colormap
var Inferno = fromBytes("inferno", [][3]uint8{
	{0, 0, 4},
	{40, 11, 84},
	{101, 21, 110},
	{159, 42, 99},
	{212, 72, 66},
	{245, 125, 21},
	{250, 193, 39},
	{252, 255, 164},
})

// Magma colormap
var Magma = fromBytes("magma", [][3]uint8{
	{0, 0, 4},
	{28, 16, 68},
	{79, 18, 123},
	{129, 37, 129},
	{181, 54, 122},
	{229, 80, 100},
	{251, 135, 97},
	{254, 194, 135},
	{252, 253, 191},
})

// Seurat is the lightgrey to red feature-plot ramp.
var Seurat = fromBytes("seurat", [][3]uint8{
	{211, 211, 211},
	{255, 0, 0},
})

// CategoricalColormap provides distinct colors for categories.
type CategoricalColormap struct {
	name   string
	colors []RGBA
}

// Name returns the colormap name.
func (c CategoricalColormap) Name() string { return c.name }

// At returns the color of the bucket containing t.
func (c CategoricalColormap) At(t float64) RGBA {
	if len(c.colors) == 0 || math.IsNaN(t) {
		return RGBA{}
	}
	idx := int(t * float64(len(c.colors)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(c.colors) {
		idx = len(c.colors) - 1
	}
	return c.colors[idx]
}

// Categorical colormap with 20 distinct colors
var Categorical = CategoricalColormap{
	name: "categorical",
	colors: fromBytes("", [][3]uint8{
		{31, 119, 180},  // Blue
		{255, 127, 14},  // Orange
		{44, 160, 44},   // Green
		{214, 39, 40},   // Red
		{148, 103, 189}, // Purple
		{140, 86, 75},   // Brown
		{227, 119, 194}, // Pink
		{127, 127, 127}, // Gray
		{188, 189, 34},  // Olive
		{23, 190, 207},  // Cyan
		{174, 199, 232}, // Light blue
		{255, 187, 120}, // Light orange
		{152, 223, 138}, // Light green
		{255, 152, 150}, // Light red
		{197, 176, 213}, // Light purple
		{196, 156, 148}, // Light brown
		{247, 182, 210}, // Light pink
		{199, 199, 199}, // Light gray
		{219, 219, 141}, // Light olive
		{158, 218, 229}, // Light cyan
	}).colors,
}

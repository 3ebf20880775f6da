package colormap

import (
	"errors"
	"fmt"

	"github.com/aclements/go-moremath/vec"
	"github.com/lucasb-eyer/go-colorful"
)

// ErrNoColors is returned when a colormap is built from an empty color list.
var ErrNoColors = errors.New("colormap needs at least one color")

// Sample evaluates cm at n evenly spaced points across [0, 1], endpoints included.
func Sample(cm Colormap, n int) []RGBA {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []RGBA{cm.At(0)}
	}

	out := make([]RGBA, n)
	for i, t := range vec.Linspace(0, 1, n) {
		out[i] = cm.At(t)
	}
	return out
}

// FromSamples builds an opaque colormap that interpolates linearly between
// evenly spaced RGB samples.
func FromSamples(name string, samples []colorful.Color) LinearColormap {
	colors := make([]RGBA, len(samples))
	for i, s := range samples {
		colors[i] = RGBA{R: s.R, G: s.G, B: s.B, A: 1}
	}
	return LinearColormap{name: name, colors: colors}
}

// FromHex builds a colormap from "#rrggbb" anchors.
func FromHex(name string, hexes []string) (LinearColormap, error) {
	if len(hexes) == 0 {
		return LinearColormap{}, ErrNoColors
	}

	samples := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return LinearColormap{}, fmt.Errorf("invalid color %q: %w", h, err)
		}
		samples[i] = c
	}
	return FromSamples(name, samples), nil
}

// Reverse returns cm traversed from 1 to 0, named with an "_r" suffix.
func Reverse(cm Colormap) Colormap {
	return reversed{cm}
}

type reversed struct {
	base Colormap
}

func (r reversed) Name() string { return r.base.Name() + "_r" }

func (r reversed) At(t float64) RGBA { return r.base.At(1 - t) }

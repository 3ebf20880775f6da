// Package scheme generates families of hue-rotated colormaps and holds them
// in ordered, named collections.
package scheme

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/scimaplab/server/pkg/colormap"
)

// Rotate shifts the hue of every color by shift turns, wrapping modulo 1.
// Alpha is dropped; saturation and value are unchanged. The result has the
// same length and order as colors, and an empty input yields an empty result.
// Channels outside [0, 1] are not validated.
func Rotate(colors []colormap.RGBA, shift float64) []colorful.Color {
	out := make([]colorful.Color, len(colors))
	for i, c := range colors {
		h, s, v := c.RGB().Hsv()
		out[i] = colorful.Hsv(rotateHue(h, shift), s, v)
	}
	return out
}

// rotateHue adds shift turns to a hue in degrees and returns a hue in [0, 360).
func rotateHue(deg, shift float64) float64 {
	h := deg/360 + shift
	h -= math.Floor(h)
	deg = h * 360
	if deg >= 360 {
		deg = 0
	}
	return deg
}

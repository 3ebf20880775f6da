package scheme

import (
	"errors"
	"fmt"

	"github.com/aclements/go-moremath/vec"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/scimaplab/server/pkg/colormap"
)

// Resolution is the number of points each source colormap is sampled at.
// Rotated colormaps are rebuilt from these samples only.
const Resolution = 100

const (
	defaultBaseName = "Map"
	schemeSuffix    = "_HueRot"
)

// ErrInvalidRotations is returned when fewer than one rotation is requested.
var ErrInvalidRotations = errors.New("number of rotations must be at least 1")

// Backend samples colormaps and rebuilds them from samples.
type Backend interface {
	Sample(cm colormap.Colormap, n int) []colormap.RGBA
	FromSamples(name string, samples []colorful.Color) colormap.Colormap
}

type linearBackend struct{}

func (linearBackend) Sample(cm colormap.Colormap, n int) []colormap.RGBA {
	return colormap.Sample(cm, n)
}

func (linearBackend) FromSamples(name string, samples []colorful.Color) colormap.Colormap {
	return colormap.FromSamples(name, samples)
}

// Generator builds hue-rotation schemes on top of a Backend.
type Generator struct {
	backend Backend
}

// NewGenerator creates a generator. A nil backend uses piecewise-linear colormaps.
func NewGenerator(b Backend) *Generator {
	if b == nil {
		b = linearBackend{}
	}
	return &Generator{backend: b}
}

var defaultGenerator = NewGenerator(nil)

// Generate builds a scheme of nRotations hue-rotated copies of cm using the
// default backend. See Generator.Generate.
func Generate(cm colormap.Colormap, nRotations int, schemeName string) (*Collection, error) {
	return defaultGenerator.Generate(cm, nRotations, schemeName)
}

// GenerateByName resolves name in the colormap registry and generates a scheme from it.
func GenerateByName(name string, nRotations int, schemeName string) (*Collection, error) {
	cm, err := colormap.Lookup(name)
	if err != nil {
		return nil, err
	}
	return Generate(cm, nRotations, schemeName)
}

// Generate samples cm at Resolution points and produces one colormap per
// shift in Shifts(nRotations). The colormaps are named <base><i>, where base
// is the colormap name or "Map" when it has none. An empty schemeName
// defaults to <base>_HueRot.
func (g *Generator) Generate(cm colormap.Colormap, nRotations int, schemeName string) (*Collection, error) {
	if nRotations < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRotations, nRotations)
	}

	base := BaseName(cm)
	samples := g.backend.Sample(cm, Resolution)

	entries := make([]Entry, 0, nRotations)
	for i, shift := range Shifts(nRotations) {
		name := fmt.Sprintf("%s%d", base, i)
		entries = append(entries, Entry{
			Name:     name,
			Colormap: g.backend.FromSamples(name, Rotate(samples, shift)),
		})
	}

	if schemeName == "" {
		schemeName = base + schemeSuffix
	}
	return NewCollection(schemeName, entries)
}

// Shifts returns n+1 evenly spaced values over [0, 1] without the last one,
// that is 0, 1/n, ..., (n-1)/n. The full turn is left out because it
// repeats shift 0.
func Shifts(n int) []float64 {
	if n < 1 {
		return nil
	}
	return vec.Linspace(0, 1, n+1)[:n]
}

// BaseName is the prefix used for colormaps generated from cm.
func BaseName(cm colormap.Colormap) string {
	if name := cm.Name(); name != "" {
		return name
	}
	return defaultBaseName
}

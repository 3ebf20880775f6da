// Package render provides swatch figure rendering using fogleman/gg.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"io"
	"sync"

	"github.com/fogleman/gg"
	"github.com/scimaplab/server/pkg/colormap"
	"github.com/scimaplab/server/pkg/scheme"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// GradientSamples is the number of steps each gradient swatch is drawn with.
const GradientSamples = 256

const padding = 8

// ErrNoSwatches is returned when asked to render an empty set of colormaps.
var ErrNoSwatches = errors.New("no colormaps to render")

// Config contains renderer configuration.
type Config struct {
	Width     int     // figure width in pixels
	RowHeight int     // pixels per colormap, title included
	FontPath  string  // optional TrueType font for titles
	FontSize  float64 // points, used with FontPath
}

// SwatchRenderer draws colormaps as titled horizontal gradients stacked vertically.
type SwatchRenderer struct {
	config     Config
	face       font.Face
	bufferPool sync.Pool
}

// NewSwatchRenderer creates a new swatch renderer.
func NewSwatchRenderer(cfg Config) (*SwatchRenderer, error) {
	if cfg.Width <= 2*padding {
		cfg.Width = 600
	}
	if cfg.RowHeight <= 0 {
		cfg.RowHeight = 100
	}
	if cfg.FontSize <= 0 {
		cfg.FontSize = 18
	}

	var face font.Face = basicfont.Face7x13
	if cfg.FontPath != "" {
		f, err := gg.LoadFontFace(cfg.FontPath, cfg.FontSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load font %s: %w", cfg.FontPath, err)
		}
		face = f
	}

	titleHeight := face.Metrics().Height.Ceil() + 2*padding
	if cfg.RowHeight < titleHeight+padding+1 {
		cfg.RowHeight = titleHeight + padding + 1
	}

	return &SwatchRenderer{
		config: cfg,
		face:   face,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}, nil
}

// Size returns the figure dimensions for n colormaps.
func (r *SwatchRenderer) Size(n int) (width, height int) {
	return r.config.Width, n * r.config.RowHeight
}

// Render draws the entries into a single PNG figure.
func (r *SwatchRenderer) Render(entries []scheme.Entry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, ErrNoSwatches
	}

	width, height := r.Size(len(entries))
	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetFontFace(r.face)

	titleHeight := r.titleHeight()
	for i, e := range entries {
		top := i * r.config.RowHeight

		dc.SetColor(color.Black)
		dc.DrawStringAnchored(e.Name, float64(width)/2, float64(top+titleHeight/2), 0.5, 0.5)

		r.drawGradient(dc, e.Colormap,
			padding, top+titleHeight,
			width-2*padding, r.config.RowHeight-titleHeight-padding)
	}

	return r.encodeContext(dc)
}

// GradientBounds returns the pixel rectangle of the gradient in row i.
func (r *SwatchRenderer) GradientBounds(i int) (x0, y0, x1, y1 int) {
	top := i*r.config.RowHeight + r.titleHeight()
	return padding, top, r.config.Width - padding, (i+1)*r.config.RowHeight - padding
}

func (r *SwatchRenderer) titleHeight() int {
	return r.face.Metrics().Height.Ceil() + 2*padding
}

// drawGradient fills w x h pixels at (x, y) with GradientSamples steps of cm
// spanning [0, 1]. Step edges are snapped to whole pixels.
func (r *SwatchRenderer) drawGradient(dc *gg.Context, cm colormap.Colormap, x, y, w, h int) {
	for k := 0; k < GradientSamples; k++ {
		x0 := k * w / GradientSamples
		x1 := (k + 1) * w / GradientSamples
		if x1 == x0 {
			continue
		}
		dc.SetColor(cm.At(float64(k) / float64(GradientSamples-1)))
		dc.DrawRectangle(float64(x+x0), float64(y), float64(x1-x0), float64(h))
		dc.Fill()
	}
}

func (r *SwatchRenderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	// Use fast PNG encoder
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

// PNGSurface is a scheme.Surface that writes each figure to w as PNG.
type PNGSurface struct {
	renderer *SwatchRenderer
	w        io.Writer
}

// NewPNGSurface creates a surface writing to w.
func NewPNGSurface(r *SwatchRenderer, w io.Writer) *PNGSurface {
	return &PNGSurface{renderer: r, w: w}
}

// DrawSwatches renders the entries and writes the PNG.
func (s *PNGSurface) DrawSwatches(entries []scheme.Entry) error {
	data, err := s.renderer.Render(entries)
	if err != nil {
		return err
	}
	_, err = s.w.Write(data)
	return err
}

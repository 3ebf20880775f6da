// Package service provides business logic for the scheme server.
package service

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/scimaplab/server/internal/cache"
	"github.com/scimaplab/server/internal/render"
	"github.com/scimaplab/server/internal/store"
	"github.com/scimaplab/server/pkg/colormap"
	"github.com/scimaplab/server/pkg/scheme"
)

var (
	// ErrSchemeNotFound is returned when no scheme is registered under a name.
	ErrSchemeNotFound = errors.New("scheme not found")
	// ErrInvalidRequest is returned for malformed generate requests.
	ErrInvalidRequest = errors.New("invalid request")
)

// MaxRotations bounds the number of hue rotations per scheme. Each rotation
// is a rebuilt colormap and a row in the display figure.
const MaxRotations = 64

// SchemeServiceConfig contains scheme service configuration.
type SchemeServiceConfig struct {
	Cache    *cache.Manager
	Renderer *render.SwatchRenderer
	Store    *store.Store // nil disables persistence
}

// GenerateRequest describes a hue-rotation scheme to build. Colors, when
// set, define the source colormap as hex anchors and take precedence over
// Colormap.
type GenerateRequest struct {
	Colormap   string   `json:"colormap"`
	Colors     []string `json:"colors,omitempty"`
	BaseName   string   `json:"base_name,omitempty"`
	NRotations int      `json:"n_rotations"`
	Name       string   `json:"name,omitempty"`
	Persist    bool     `json:"persist,omitempty"`
}

// SchemeInfo describes a registered scheme.
type SchemeInfo struct {
	Name       string   `json:"name"`
	Base       string   `json:"base"`
	NRotations int      `json:"n_rotations"`
	Colormaps  []string `json:"colormaps"`
	Persisted  bool     `json:"persisted"`
}

type registeredScheme struct {
	collection *scheme.Collection
	base       string
	nRotations int
	persisted  bool
	generation uint64
}

func (r *registeredScheme) info() SchemeInfo {
	return SchemeInfo{
		Name:       r.collection.Name(),
		Base:       r.base,
		NRotations: r.nRotations,
		Colormaps:  r.collection.Names(),
		Persisted:  r.persisted,
	}
}

// SchemeService generates, registers, persists and renders schemes.
type SchemeService struct {
	cache    *cache.Manager
	renderer *render.SwatchRenderer
	store    *store.Store

	mu         sync.RWMutex
	schemes    map[string]*registeredScheme
	order      []string
	generation uint64
}

// NewSchemeService creates a new scheme service.
func NewSchemeService(cfg SchemeServiceConfig) *SchemeService {
	return &SchemeService{
		cache:    cfg.Cache,
		renderer: cfg.Renderer,
		store:    cfg.Store,
		schemes:  make(map[string]*registeredScheme),
	}
}

// Generate builds a scheme and registers it under its scheme name,
// replacing any scheme of the same name.
func (s *SchemeService) Generate(req GenerateRequest) (*SchemeInfo, error) {
	if req.Persist && s.store == nil {
		return nil, fmt.Errorf("%w: persistence is disabled", ErrInvalidRequest)
	}
	if err := checkRotations(req.NRotations); err != nil {
		return nil, err
	}

	cm, cacheable, err := resolveSource(req)
	if err != nil {
		return nil, err
	}

	cacheKey := ""
	if cacheable {
		cacheKey = cache.SchemeKey(cm.Name(), req.NRotations, req.Name)
	}
	coll, err := s.generate(cm, req.NRotations, req.Name, cacheKey)
	if err != nil {
		return nil, err
	}

	reg := &registeredScheme{
		collection: coll,
		base:       scheme.BaseName(cm),
		nRotations: req.NRotations,
	}

	if req.Persist {
		err := s.store.Save(&store.SchemeRecord{
			Name:       coll.Name(),
			Base:       reg.base,
			NRotations: req.NRotations,
			Samples:    colormap.Sample(cm, scheme.Resolution),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to save scheme %q: %w", coll.Name(), err)
		}
		reg.persisted = true
	} else if err := s.forget(coll.Name()); err != nil {
		return nil, err
	}

	s.register(reg)
	log.Printf("[SchemeService] registered %q: %d colormaps from %q (persisted=%v)",
		coll.Name(), coll.Len(), reg.base, reg.persisted)

	info := reg.info()
	return &info, nil
}

// resolveSource returns the source colormap and whether it is a stable
// registry entry that can be memoized by name.
func resolveSource(req GenerateRequest) (colormap.Colormap, bool, error) {
	if len(req.Colors) > 0 {
		cm, err := colormap.FromHex(req.BaseName, req.Colors)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return cm, false, nil
	}
	if req.Colormap == "" {
		return nil, false, fmt.Errorf("%w: colormap or colors required", ErrInvalidRequest)
	}
	cm, err := colormap.Lookup(req.Colormap)
	if err != nil {
		return nil, false, err
	}
	return cm, true, nil
}

func (s *SchemeService) generate(cm colormap.Colormap, nRotations int, name, cacheKey string) (*scheme.Collection, error) {
	if cacheKey != "" {
		if coll, ok := s.cache.GetScheme(cacheKey); ok {
			return coll, nil
		}
	}

	coll, err := scheme.Generate(cm, nRotations, name)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		s.cache.SetScheme(cacheKey, coll)
	}
	return coll, nil
}

// checkRotations rejects counts above MaxRotations. Counts below one are left
// to the generator.
func checkRotations(n int) error {
	if n > MaxRotations {
		return fmt.Errorf("%w: at most %d rotations, got %d", ErrInvalidRequest, MaxRotations, n)
	}
	return nil
}

// forget removes a saved row so a non-persisted replacement is not brought
// back by LoadSaved.
func (s *SchemeService) forget(name string) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Delete(name); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to delete saved scheme %q: %w", name, err)
	}
	return nil
}

func (s *SchemeService) register(reg *registeredScheme) {
	name := reg.collection.Name()

	s.mu.Lock()
	prev, exists := s.schemes[name]
	if !exists {
		s.order = append(s.order, name)
	}
	s.generation++
	reg.generation = s.generation
	s.schemes[name] = reg
	s.mu.Unlock()

	if exists {
		s.cache.DeleteDisplay(cache.DisplayKey(name, prev.generation))
	}
}

func (s *SchemeService) lookup(name string) (*registeredScheme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.schemes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSchemeNotFound, name)
	}
	return reg, nil
}

// LoadSaved regenerates every persisted scheme. It returns the number loaded.
func (s *SchemeService) LoadSaved() (int, error) {
	if s.store == nil {
		return 0, nil
	}

	records, err := s.store.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list saved schemes: %w", err)
	}

	loaded := 0
	for _, rec := range records {
		cm := colormap.NewLinear(rec.Base, rec.Samples)
		coll, err := scheme.Generate(cm, rec.NRotations, rec.Name)
		if err != nil {
			log.Printf("[SchemeService] skipping saved scheme %q: %v", rec.Name, err)
			continue
		}
		s.register(&registeredScheme{
			collection: coll,
			base:       rec.Base,
			nRotations: rec.NRotations,
			persisted:  true,
		})
		loaded++
	}
	return loaded, nil
}

// Scheme returns information about a registered scheme.
func (s *SchemeService) Scheme(name string) (*SchemeInfo, error) {
	reg, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	info := reg.info()
	return &info, nil
}

// Schemes returns all registered schemes in registration order.
func (s *SchemeService) Schemes() []SchemeInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]SchemeInfo, 0, len(s.order))
	for _, name := range s.order {
		infos = append(infos, s.schemes[name].info())
	}
	return infos
}

// Delete unregisters a scheme and removes any saved row for it.
func (s *SchemeService) Delete(name string) error {
	s.mu.Lock()
	reg, ok := s.schemes[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrSchemeNotFound, name)
	}
	delete(s.schemes, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.cache.DeleteDisplay(cache.DisplayKey(name, reg.generation))

	return s.forget(name)
}

// Colormap looks up a colormap in a scheme. Keys that parse as integers are
// positions (negative counts from the end); anything else is a name.
func (s *SchemeService) Colormap(schemeName, key string) (colormap.Colormap, error) {
	reg, err := s.lookup(schemeName)
	if err != nil {
		return nil, err
	}
	if i, err := strconv.Atoi(key); err == nil {
		return reg.collection.Lookup(i)
	}
	return reg.collection.Lookup(key)
}

// Display returns the PNG figure of a registered scheme.
func (s *SchemeService) Display(name string) ([]byte, error) {
	reg, err := s.lookup(name)
	if err != nil {
		return nil, err
	}

	cacheKey := cache.DisplayKey(name, reg.generation)
	if data, ok := s.cache.GetDisplay(cacheKey); ok {
		return data, nil
	}
	return s.renderAndCache(reg.collection, cacheKey)
}

// Preview renders a hue-rotation scheme of a registry colormap without
// registering it.
func (s *SchemeService) Preview(colormapName string, nRotations int) ([]byte, error) {
	if err := checkRotations(nRotations); err != nil {
		return nil, err
	}

	cacheKey := cache.PreviewKey(colormapName, nRotations)
	if data, ok := s.cache.GetDisplay(cacheKey); ok {
		return data, nil
	}

	cm, err := colormap.Lookup(colormapName)
	if err != nil {
		return nil, err
	}
	coll, err := s.generate(cm, nRotations, "", cache.SchemeKey(cm.Name(), nRotations, ""))
	if err != nil {
		return nil, err
	}
	return s.renderAndCache(coll, cacheKey)
}

func (s *SchemeService) renderAndCache(coll *scheme.Collection, cacheKey string) ([]byte, error) {
	var buf bytes.Buffer
	if err := coll.Display(render.NewPNGSurface(s.renderer, &buf)); err != nil {
		return nil, fmt.Errorf("failed to render scheme %q: %w", coll.Name(), err)
	}

	data := buf.Bytes()
	if err := s.cache.SetDisplay(cacheKey, data); err != nil {
		log.Printf("[SchemeService] not caching %s: %v", cacheKey, err)
	}
	return data, nil
}

// RegisterColormap adds a hex-defined colormap to the registry so schemes
// can be generated from it by name.
func (s *SchemeService) RegisterColormap(name string, colors []string) error {
	cm, err := colormap.FromHex(name, colors)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := colormap.Register(cm); err != nil {
		return err
	}
	log.Printf("[SchemeService] registered colormap %q with %d anchors", name, len(colors))
	return nil
}

// Stats returns cache and registry statistics.
func (s *SchemeService) Stats() map[string]interface{} {
	stats := s.cache.Stats()

	s.mu.RLock()
	stats["schemes"] = len(s.schemes)
	s.mu.RUnlock()

	return stats
}

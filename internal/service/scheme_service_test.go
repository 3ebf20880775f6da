package service

import (
	"bytes"
	"errors"
	"image/png"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/scimaplab/server/internal/cache"
	"github.com/scimaplab/server/internal/render"
	"github.com/scimaplab/server/internal/store"
	"github.com/scimaplab/server/pkg/colormap"
	"github.com/scimaplab/server/pkg/scheme"
)

func newTestService(t *testing.T, st *store.Store) *SchemeService {
	t.Helper()

	cacheManager, err := cache.NewManager(cache.Config{
		DisplayCacheSizeMB: 8,
		DisplayTTL:         time.Minute,
		SchemeCacheSize:    16,
	})
	if err != nil {
		t.Fatalf("failed to initialize cache: %v", err)
	}
	t.Cleanup(func() { cacheManager.Close() })

	renderer, err := render.NewSwatchRenderer(render.Config{Width: 300, RowHeight: 60})
	if err != nil {
		t.Fatalf("failed to initialize renderer: %v", err)
	}

	return NewSchemeService(SchemeServiceConfig{
		Cache:    cacheManager,
		Renderer: renderer,
		Store:    st,
	})
}

func newTestStore(t *testing.T, path string) *store.Store {
	t.Helper()

	st, err := store.NewStore(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return st
}

func TestGenerateAndLookup(t *testing.T) {
	svc := newTestService(t, nil)

	info, err := svc.Generate(GenerateRequest{Colormap: "viridis", NRotations: 3})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := &SchemeInfo{
		Name:       "viridis_HueRot",
		Base:       "viridis",
		NRotations: 3,
		Colormaps:  []string{"viridis0", "viridis1", "viridis2"},
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Fatalf("unexpected info (-want +got):\n%s", diff)
	}

	last, err := svc.Colormap("viridis_HueRot", "-1")
	if err != nil {
		t.Fatalf("Colormap(-1): %v", err)
	}
	if last.Name() != "viridis2" {
		t.Errorf("expected viridis2 for -1, got %q", last.Name())
	}
	byName, err := svc.Colormap("viridis_HueRot", "viridis1")
	if err != nil {
		t.Fatalf("Colormap(viridis1): %v", err)
	}
	if byName.Name() != "viridis1" {
		t.Errorf("unexpected colormap %q", byName.Name())
	}

	if _, err := svc.Colormap("viridis_HueRot", "viridis9"); !errors.Is(err, scheme.ErrNotFound) {
		t.Errorf("expected scheme.ErrNotFound, got %v", err)
	}
	if _, err := svc.Colormap("viridis_HueRot", "3"); !errors.Is(err, scheme.ErrIndexOutOfRange) {
		t.Errorf("expected scheme.ErrIndexOutOfRange, got %v", err)
	}
	if _, err := svc.Colormap("missing", "0"); !errors.Is(err, ErrSchemeNotFound) {
		t.Errorf("expected ErrSchemeNotFound, got %v", err)
	}
}

func TestGenerateErrors(t *testing.T) {
	svc := newTestService(t, nil)

	tests := []struct {
		name string
		req  GenerateRequest
		want error
	}{
		{"zeroRotations", GenerateRequest{Colormap: "viridis"}, scheme.ErrInvalidRotations},
		{"unknownColormap", GenerateRequest{Colormap: "nope", NRotations: 2}, colormap.ErrUnknownColormap},
		{"noSource", GenerateRequest{NRotations: 2}, ErrInvalidRequest},
		{"badColors", GenerateRequest{Colors: []string{"blue"}, NRotations: 2}, ErrInvalidRequest},
		{"persistWithoutStore", GenerateRequest{Colormap: "viridis", NRotations: 2, Persist: true}, ErrInvalidRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Generate(tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if n := len(svc.Schemes()); n != 0 {
		t.Fatalf("failed requests registered %d schemes", n)
	}
}

func TestGenerateFromColors(t *testing.T) {
	svc := newTestService(t, nil)

	info, err := svc.Generate(GenerateRequest{
		Colors:     []string{"#ff0000", "#0000ff"},
		BaseName:   "rb",
		NRotations: 2,
		Name:       "custom",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if info.Name != "custom" || info.Base != "rb" {
		t.Fatalf("unexpected info %+v", info)
	}
	if diff := cmp.Diff([]string{"rb0", "rb1"}, info.Colormaps); diff != "" {
		t.Fatalf("unexpected colormaps (-want +got):\n%s", diff)
	}

	// Half a turn maps red to cyan.
	cm, err := svc.Colormap("custom", "1")
	if err != nil {
		t.Fatal(err)
	}
	if got := cm.At(0).Hex(); got != "#00ffff" {
		t.Errorf("expected cyan start, got %s", got)
	}
}

func TestSchemesOrderAndDelete(t *testing.T) {
	svc := newTestService(t, nil)

	for _, name := range []string{"b", "a", "c"} {
		if _, err := svc.Generate(GenerateRequest{Colormap: "magma", NRotations: 2, Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	// Re-registering keeps the listing position.
	if _, err := svc.Generate(GenerateRequest{Colormap: "plasma", NRotations: 4, Name: "a"}); err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, info := range svc.Schemes() {
		names = append(names, info.Name)
	}
	if diff := cmp.Diff([]string{"b", "a", "c"}, names); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	if info, _ := svc.Scheme("a"); info.Base != "plasma" || info.NRotations != 4 {
		t.Fatalf("expected replaced scheme, got %+v", info)
	}

	if err := svc.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Scheme("a"); !errors.Is(err, ErrSchemeNotFound) {
		t.Fatalf("expected ErrSchemeNotFound, got %v", err)
	}
	if err := svc.Delete("a"); !errors.Is(err, ErrSchemeNotFound) {
		t.Fatalf("expected ErrSchemeNotFound deleting twice, got %v", err)
	}
}

func TestDisplayAndPreview(t *testing.T) {
	svc := newTestService(t, nil)

	if _, err := svc.Generate(GenerateRequest{Colormap: "inferno", NRotations: 3}); err != nil {
		t.Fatal(err)
	}

	data, err := svc.Display("inferno_HueRot")
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Fatal("expected PNG data")
	}
	again, err := svc.Display("inferno_HueRot")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Fatal("expected cached figure on second call")
	}

	if _, err := svc.Display("missing"); !errors.Is(err, ErrSchemeNotFound) {
		t.Fatalf("expected ErrSchemeNotFound, got %v", err)
	}

	preview, err := svc.Preview("seurat", 2)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !bytes.HasPrefix(preview, []byte("\x89PNG")) {
		t.Fatal("expected PNG preview")
	}
	if n := len(svc.Schemes()); n != 1 {
		t.Fatalf("preview must not register schemes, have %d", n)
	}
	if _, err := svc.Preview("seurat", 0); !errors.Is(err, scheme.ErrInvalidRotations) {
		t.Fatalf("expected ErrInvalidRotations, got %v", err)
	}
}

func TestPersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemes.sqlite")

	st := newTestStore(t, path)
	svc := newTestService(t, st)
	if _, err := svc.Generate(GenerateRequest{Colormap: "plasma_r", NRotations: 3, Persist: true}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := svc.Generate(GenerateRequest{Colormap: "magma", NRotations: 2}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	before, err := svc.Colormap("plasma_r_HueRot", "2")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st = newTestStore(t, path)
	defer st.Close()
	reloaded := newTestService(t, st)

	n, err := reloaded.LoadSaved()
	if err != nil {
		t.Fatalf("LoadSaved: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 saved scheme, got %d", n)
	}

	info, err := reloaded.Scheme("plasma_r_HueRot")
	if err != nil {
		t.Fatal(err)
	}
	if !info.Persisted || info.Base != "plasma_r" {
		t.Fatalf("unexpected reloaded info %+v", info)
	}

	cm, err := reloaded.Colormap("plasma_r_HueRot", "plasma_r2")
	if err != nil {
		t.Fatal(err)
	}
	got := colormap.Sample(cm, scheme.Resolution)
	want := colormap.Sample(before, scheme.Resolution)
	for i := range want {
		if d := math.Abs(got[i].R-want[i].R) + math.Abs(got[i].G-want[i].G) + math.Abs(got[i].B-want[i].B); d > 1e-9 {
			t.Fatalf("sample %d differs after reload: %v vs %v", i, got[i], want[i])
		}
	}

	if err := reloaded.Delete("plasma_r_HueRot"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.Get("plasma_r_HueRot"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected saved scheme to be removed, got %v", err)
	}
}

func TestReplacingPersistedSchemeDropsSavedRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemes.sqlite")

	st := newTestStore(t, path)
	svc := newTestService(t, st)
	if _, err := svc.Generate(GenerateRequest{Colormap: "viridis", NRotations: 3, Name: "x", Persist: true}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := svc.Generate(GenerateRequest{Colormap: "plasma", NRotations: 2, Name: "x"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := st.Get("x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected replaced scheme to leave the store, got %v", err)
	}
	if info, _ := svc.Scheme("x"); info.Persisted || info.Base != "plasma" {
		t.Fatalf("unexpected replaced info %+v", info)
	}

	// A saved row the service no longer tracks as persisted is still removed.
	if err := st.Save(&store.SchemeRecord{
		Name:       "x",
		Base:       "viridis",
		NRotations: 3,
		Samples:    colormap.Sample(colormap.Viridis, scheme.Resolution),
	}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete("x"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st = newTestStore(t, path)
	defer st.Close()
	n, err := newTestService(t, st).LoadSaved()
	if err != nil {
		t.Fatalf("LoadSaved: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected deleted scheme to stay deleted, loaded %d", n)
	}
}

func TestRotationLimit(t *testing.T) {
	svc := newTestService(t, nil)

	if _, err := svc.Generate(GenerateRequest{Colormap: "viridis", NRotations: MaxRotations + 1}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := svc.Preview("viridis", MaxRotations+1); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	info, err := svc.Generate(GenerateRequest{Colormap: "viridis", NRotations: MaxRotations})
	if err != nil {
		t.Fatalf("Generate at the limit: %v", err)
	}
	if len(info.Colormaps) != MaxRotations {
		t.Fatalf("expected %d colormaps, got %d", MaxRotations, len(info.Colormaps))
	}
}

func TestDisplayAfterReplace(t *testing.T) {
	svc := newTestService(t, nil)

	figureHeight := func(data []byte) int {
		t.Helper()
		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("failed to decode PNG: %v", err)
		}
		return cfg.Height
	}

	if _, err := svc.Generate(GenerateRequest{Colormap: "magma", NRotations: 2, Name: "fig"}); err != nil {
		t.Fatal(err)
	}
	old, err := svc.Display("fig")
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if h := figureHeight(old); h != 2*60 {
		t.Fatalf("expected height 120, got %d", h)
	}
	reg, err := svc.lookup("fig")
	if err != nil {
		t.Fatal(err)
	}
	oldGeneration := reg.generation

	if _, err := svc.Generate(GenerateRequest{Colormap: "magma", NRotations: 3, Name: "fig"}); err != nil {
		t.Fatal(err)
	}
	// A render of the old registration finishing after the replacement.
	if err := svc.cache.SetDisplay(cache.DisplayKey("fig", oldGeneration), old); err != nil {
		t.Fatal(err)
	}

	data, err := svc.Display("fig")
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if h := figureHeight(data); h != 3*60 {
		t.Fatalf("expected the replaced figure (height 180), got %d", h)
	}
}

func TestRegisterColormap(t *testing.T) {
	svc := newTestService(t, nil)

	if err := svc.RegisterColormap("svc_test_ramp", []string{"#000000", "#00ff00"}); err != nil {
		t.Fatalf("RegisterColormap: %v", err)
	}
	if err := svc.RegisterColormap("svc_test_ramp", []string{"#000000"}); !errors.Is(err, colormap.ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
	if err := svc.RegisterColormap("svc_test_empty", nil); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	info, err := svc.Generate(GenerateRequest{Colormap: "svc_test_ramp", NRotations: 2})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if info.Name != "svc_test_ramp_HueRot" {
		t.Fatalf("unexpected scheme name %q", info.Name)
	}
	if got := svc.Stats()["schemes"]; got != 1 {
		t.Fatalf("expected 1 scheme in stats, got %v", got)
	}
}

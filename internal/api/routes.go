// Package api provides HTTP handlers for the sCiMapLab server.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/scimaplab/server/internal/service"
	"github.com/scimaplab/server/pkg/colormap"
	"github.com/scimaplab/server/pkg/scheme"
)

const (
	defaultSampleCount      = scheme.Resolution
	maxSampleCount          = 4096
	defaultPreviewRotations = 6
	maxRequestBodyBytes     = 1 << 20 // 1 MiB
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Service     *service.SchemeService
	CORSOrigins []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/colormaps", func(r chi.Router) {
			r.Get("/", colormapsHandler)
			r.Post("/", registerColormapHandler(cfg.Service))
			r.Get("/{name}/samples", colormapSamplesHandler)
			r.Get("/{name}/hue_rotation.png", previewHandler(cfg.Service))
		})

		r.Route("/schemes", func(r chi.Router) {
			r.Get("/", schemesHandler(cfg.Service))
			r.Post("/", createSchemeHandler(cfg.Service))
			r.Get("/{scheme}", schemeHandler(cfg.Service))
			r.Delete("/{scheme}", deleteSchemeHandler(cfg.Service))
			r.Get("/{scheme}/maps/{key}", schemeColormapHandler(cfg.Service))
			r.Get("/{scheme}/display.png", displayHandler(cfg.Service))
		})

		r.Get("/stats", statsHandler(cfg.Service))
	})

	return r
}

// errorStatus maps service and domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrSchemeNotFound),
		errors.Is(err, scheme.ErrNotFound),
		errors.Is(err, scheme.ErrIndexOutOfRange),
		errors.Is(err, colormap.ErrUnknownColormap):
		return http.StatusNotFound
	case errors.Is(err, colormap.ErrAlreadyRegistered):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, scheme.ErrInvalidRotations),
		errors.Is(err, scheme.ErrKeyType),
		errors.Is(err, colormap.ErrInvalidName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), errorStatus(err))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writePNG(w http.ResponseWriter, data []byte, cacheControl string) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", cacheControl)
	w.Write(data)
}

// parseCount reads a positive integer query parameter, falling back to def
// when absent.
func parseCount(r *http.Request, key string, def, max int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, errors.New("invalid " + key + " parameter")
	}
	return n, nil
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidRequest, err)
	}
	return nil
}

func hexColors(samples []colormap.RGBA) []string {
	out := make([]string, len(samples))
	for i, c := range samples {
		out[i] = c.Hex()
	}
	return out
}

func colormapsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"colormaps": colormapCatalog(),
	})
}

type registerColormapRequest struct {
	Name   string   `json:"name"`
	Colors []string `json:"colors"`
}

func registerColormapHandler(svc *service.SchemeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerColormapRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if err := svc.RegisterColormap(req.Name, req.Colors); err != nil {
			writeError(w, err)
			return
		}

		cm, err := colormap.Lookup(req.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, describeColormap(cm))
	}
}

func colormapSamplesHandler(w http.ResponseWriter, r *http.Request) {
	n, err := parseCount(r, "n", defaultSampleCount, maxSampleCount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cm, err := colormap.Lookup(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":   cm.Name(),
		"colors": hexColors(colormap.Sample(cm, n)),
	})
}

func previewHandler(svc *service.SchemeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := parseCount(r, "n", defaultPreviewRotations, service.MaxRotations)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data, err := svc.Preview(chi.URLParam(r, "name"), n)
		if err != nil {
			writeError(w, err)
			return
		}
		writePNG(w, data, "public, max-age=3600")
	}
}

func schemesHandler(svc *service.SchemeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"schemes": svc.Schemes(),
		})
	}
}

func createSchemeHandler(svc *service.SchemeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.GenerateRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}

		info, err := svc.Generate(req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, info)
	}
}

func schemeHandler(svc *service.SchemeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := svc.Scheme(chi.URLParam(r, "scheme"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func deleteSchemeHandler(svc *service.SchemeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(chi.URLParam(r, "scheme")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func schemeColormapHandler(svc *service.SchemeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := parseCount(r, "n", defaultSampleCount, maxSampleCount)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		schemeName := chi.URLParam(r, "scheme")
		cm, err := svc.Colormap(schemeName, chi.URLParam(r, "key"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"scheme": schemeName,
			"name":   cm.Name(),
			"colors": hexColors(colormap.Sample(cm, n)),
		})
	}
}

func displayHandler(svc *service.SchemeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := svc.Display(chi.URLParam(r, "scheme"))
		if err != nil {
			writeError(w, err)
			return
		}
		// Schemes can be replaced under the same name.
		writePNG(w, data, "no-cache")
	}
}

func statsHandler(svc *service.SchemeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Stats())
	}
}

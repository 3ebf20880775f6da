// Package main is the entry point for the sCiMapLab server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/scimaplab/server/internal/api"
	"github.com/scimaplab/server/internal/cache"
	"github.com/scimaplab/server/internal/config"
	"github.com/scimaplab/server/internal/render"
	"github.com/scimaplab/server/internal/service"
	"github.com/scimaplab/server/internal/store"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting sCiMapLab server on port %d", cfg.Server.Port)

	ctx := context.Background()

	// Initialize cache manager
	cacheManager, err := cache.NewManager(cache.Config{
		DisplayCacheSizeMB: cfg.Cache.DisplaySizeMB,
		DisplayTTL:         time.Duration(cfg.Cache.DisplayTTLMinutes) * time.Minute,
		SchemeCacheSize:    cfg.Cache.SchemeCacheEntries,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()
	log.Printf("Display cache: %s, ttl=%dm; scheme cache: %d entries",
		humanize.IBytes(uint64(cfg.Cache.DisplaySizeMB)<<20),
		cfg.Cache.DisplayTTLMinutes, cfg.Cache.SchemeCacheEntries)

	// Initialize swatch renderer
	renderer, err := render.NewSwatchRenderer(render.Config{
		Width:     cfg.Render.Width,
		RowHeight: cfg.Render.RowHeight,
		FontPath:  cfg.Render.FontPath,
		FontSize:  cfg.Render.FontSize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize renderer: %v", err)
	}

	// Initialize scheme store (SQLite persistence)
	schemeStore, err := store.NewStore(cfg.Store.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to initialize scheme store: %v", err)
	}
	defer schemeStore.Close()
	if fi, err := os.Stat(cfg.Store.SQLitePath); err == nil {
		log.Printf("Scheme store: %s (%s)", cfg.Store.SQLitePath, humanize.Bytes(uint64(fi.Size())))
	}

	schemeService := service.NewSchemeService(service.SchemeServiceConfig{
		Cache:    cacheManager,
		Renderer: renderer,
		Store:    schemeStore,
	})

	loaded, err := schemeService.LoadSaved()
	if err != nil {
		log.Fatalf("Failed to load saved schemes: %v", err)
	}
	log.Printf("Loaded %d saved scheme(s)", loaded)

	// Generate configured presets
	presets := cfg.Schemes.Names()
	log.Printf("Generating %d preset scheme(s)", len(presets))
	for _, name := range presets {
		p := cfg.Schemes.Presets[name]
		info, err := schemeService.Generate(service.GenerateRequest{
			Colormap:   p.Colormap,
			NRotations: p.NRotations,
			Name:       name,
		})
		if err != nil {
			log.Fatalf("Failed to generate preset %q: %v", name, err)
		}
		log.Printf("  [%s] %s x%d -> %v", name, p.Colormap, p.NRotations, info.Colormaps)
	}

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Service:     schemeService,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

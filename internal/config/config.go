// Package config handles configuration loading for the sCiMapLab server.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`
	Render  RenderConfig  `yaml:"render"`
	Store   StoreConfig   `yaml:"store"`
	Schemes SchemesConfig `yaml:"schemes"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	DisplaySizeMB      int `yaml:"display_size_mb"`
	DisplayTTLMinutes  int `yaml:"display_ttl_minutes"`
	SchemeCacheEntries int `yaml:"scheme_cache_entries"`
}

// RenderConfig contains swatch figure settings.
type RenderConfig struct {
	Width     int     `yaml:"width"`
	RowHeight int     `yaml:"row_height"`
	FontPath  string  `yaml:"font_path"`
	FontSize  float64 `yaml:"font_size"`
}

// StoreConfig contains persistence settings.
type StoreConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// PresetConfig describes a scheme generated at startup.
type PresetConfig struct {
	Colormap   string `yaml:"colormap"`
	NRotations int    `yaml:"n_rotations"`
}

// SchemesConfig holds scheme presets keyed by scheme name, in file order.
type SchemesConfig struct {
	Presets map[string]PresetConfig
	order   []string
}

// UnmarshalYAML decodes the presets mapping and records key order.
func (s *SchemesConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("schemes: expected mapping, got %v", node.Tag)
	}

	s.Presets = make(map[string]PresetConfig, len(node.Content)/2)
	s.order = s.order[:0]
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var p PresetConfig
		if err := node.Content[i+1].Decode(&p); err != nil {
			return fmt.Errorf("schemes.%s: %w", name, err)
		}
		if _, dup := s.Presets[name]; !dup {
			s.order = append(s.order, name)
		}
		s.Presets[name] = p
	}
	return nil
}

// Names returns preset names in config order.
func (s SchemesConfig) Names() []string {
	return append([]string(nil), s.order...)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Cache: CacheConfig{
			DisplaySizeMB:      64,
			DisplayTTLMinutes:  10,
			SchemeCacheEntries: 128,
		},
		Render: RenderConfig{
			Width:     600,
			RowHeight: 100,
			FontSize:  18,
		},
		Store: StoreConfig{
			SQLitePath: "./data/schemes.sqlite",
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Cache.DisplaySizeMB == 0 {
		cfg.Cache.DisplaySizeMB = defaults.Cache.DisplaySizeMB
	}
	if cfg.Cache.DisplayTTLMinutes == 0 {
		cfg.Cache.DisplayTTLMinutes = defaults.Cache.DisplayTTLMinutes
	}
	if cfg.Cache.SchemeCacheEntries == 0 {
		cfg.Cache.SchemeCacheEntries = defaults.Cache.SchemeCacheEntries
	}
	if cfg.Render.Width == 0 {
		cfg.Render.Width = defaults.Render.Width
	}
	if cfg.Render.RowHeight == 0 {
		cfg.Render.RowHeight = defaults.Render.RowHeight
	}
	if cfg.Render.FontSize == 0 {
		cfg.Render.FontSize = defaults.Render.FontSize
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = defaults.Store.SQLitePath
	}
}

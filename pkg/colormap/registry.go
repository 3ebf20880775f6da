package colormap

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownColormap is returned when a name is not registered.
	ErrUnknownColormap = errors.New("unknown colormap")
	// ErrAlreadyRegistered is returned when registering a taken name.
	ErrAlreadyRegistered = errors.New("colormap already registered")
	// ErrInvalidName is returned for empty names and names ending in "_r".
	ErrInvalidName = errors.New("invalid colormap name")
)

const reversedSuffix = "_r"

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Colormap)
)

func init() {
	for _, cm := range []Colormap{Viridis, Plasma, Inferno, Magma, Seurat, Categorical} {
		registry[cm.Name()] = cm
	}
}

// Register adds a named colormap to the registry.
func Register(cm Colormap) error {
	name := cm.Name()
	if name == "" || strings.HasSuffix(name, reversedSuffix) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registry[name]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, name)
	}
	registry[name] = cm
	return nil
}

// Lookup resolves a colormap by name. A "_r" suffix yields the reversed map.
func Lookup(name string) (Colormap, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if cm, ok := registry[name]; ok {
		return cm, nil
	}
	if base, ok := strings.CutSuffix(name, reversedSuffix); ok {
		if cm, ok := registry[base]; ok {
			return Reverse(cm), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownColormap, name)
}

// Names returns the registered names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package scheme

import (
	"errors"
	"fmt"

	"github.com/scimaplab/server/pkg/colormap"
)

var (
	// ErrNotFound is returned when a name is not in the collection.
	ErrNotFound = errors.New("colormap not found")
	// ErrIndexOutOfRange is returned when an index is outside the collection.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrKeyType is returned when a lookup key is neither an integer nor a string.
	ErrKeyType = errors.New("key must be an integer or string")
	// ErrDuplicateName is returned when two entries share a name.
	ErrDuplicateName = errors.New("duplicate colormap name")
)

// Entry is a named colormap.
type Entry struct {
	Name     string
	Colormap colormap.Colormap
}

// Surface draws colormaps as labelled gradient swatches, stacked vertically
// in the given order.
type Surface interface {
	DrawSwatches(entries []Entry) error
}

// Collection is an ordered set of uniquely named colormaps. It is immutable
// once created.
type Collection struct {
	name  string
	names []string
	maps  map[string]colormap.Colormap
}

// NewCollection creates a collection. Entry order defines positional lookup.
func NewCollection(name string, entries []Entry) (*Collection, error) {
	c := &Collection{
		name:  name,
		names: make([]string, 0, len(entries)),
		maps:  make(map[string]colormap.Colormap, len(entries)),
	}
	for _, e := range entries {
		if _, ok := c.maps[e.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, e.Name)
		}
		c.names = append(c.names, e.Name)
		c.maps[e.Name] = e.Colormap
	}
	return c, nil
}

// Name returns the scheme name.
func (c *Collection) Name() string { return c.name }

// Len returns the number of colormaps.
func (c *Collection) Len() int { return len(c.names) }

// Names returns the colormap names in order.
func (c *Collection) Names() []string {
	return append([]string(nil), c.names...)
}

// Entries returns the colormaps in order.
func (c *Collection) Entries() []Entry {
	entries := make([]Entry, len(c.names))
	for i, name := range c.names {
		entries[i] = Entry{Name: name, Colormap: c.maps[name]}
	}
	return entries
}

// ByIndex returns the colormap at position i. Negative indices count from the end.
func (c *Collection) ByIndex(i int) (colormap.Colormap, error) {
	n := len(c.names)
	idx := i
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return nil, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, n)
	}
	return c.maps[c.names[idx]], nil
}

// ByName returns the colormap with the given name.
func (c *Collection) ByName(name string) (colormap.Colormap, error) {
	cm, ok := c.maps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return cm, nil
}

// Lookup dispatches on the key type: integers index by position, strings by name.
func (c *Collection) Lookup(key any) (colormap.Colormap, error) {
	switch k := key.(type) {
	case int:
		return c.ByIndex(k)
	case int32:
		return c.ByIndex(int(k))
	case int64:
		return c.ByIndex(int(k))
	case string:
		return c.ByName(k)
	default:
		return nil, fmt.Errorf("%w, got %T", ErrKeyType, key)
	}
}

// Display hands every colormap to s.
func (c *Collection) Display(s Surface) error {
	return s.DrawSwatches(c.Entries())
}

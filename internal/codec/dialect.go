// Package codec renders a schema as SQL DDL for a named dialect.
package codec

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tordrt/schemasync/internal/schema"
)

// ErrUnknownDialect is returned when no dialect is registered under a name
var ErrUnknownDialect = errors.New("unknown dialect")

// Dialect generates SQL text for a schema
type Dialect interface {
	// Name returns the registry key, e.g. "mysql"
	Name() string
	// Generate renders every table followed by one foreign key statement per resolvable relation
	Generate(s schema.Schema) string
	// FormatColumn renders a single column definition without indentation
	FormatColumn(c schema.Column) string
}

// DefaultDialect is used when no dialect has been selected
const DefaultDialect = "standard"

var (
	registryMu sync.RWMutex
	registry   = map[string]Dialect{}
)

func init() {
	Register(Standard{})
	Register(MySQL{})
	Register(Postgres{})
}

// Register adds a dialect, replacing any previous one with the same name
func Register(d Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(d.Name())] = d
}

// Get returns the dialect registered under name (case-insensitive)
func Get(name string) (Dialect, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownDialect, name, strings.Join(namesLocked(), ", "))
	}
	return d, nil
}

// Names returns the registered dialect names in sorted order
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Generate renders s with the named dialect
func Generate(name string, s schema.Schema) (string, error) {
	d, err := Get(name)
	if err != nil {
		return "", err
	}
	return d.Generate(s), nil
}

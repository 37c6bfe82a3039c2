package fetcher

import (
	"github.com/baracoder/dream2nix/pkg/store"
)

// Builder constructs a fetcher bound to an artifact store. Built-in fetcher
// packages register a Builder from init(), so a blank import of the package
// is enough to make its kind available.
type Builder func(st store.Store) Fetcher

var builders []Builder

// RegisterBuilder adds a built-in fetcher builder.
// Note: this is NOT thread safe, and should only be called in init()
func RegisterBuilder(b Builder) {
	builders = append(builders, b)
}

// BuildRegistry constructs a registry containing every built-in fetcher,
// each bound to st. Registration happens in builder registration order.
func BuildRegistry(st store.Store) (*Registry, error) {
	reg := NewRegistry()
	for _, b := range builders {
		if err := reg.Register(b(st)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

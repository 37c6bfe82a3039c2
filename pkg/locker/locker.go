// Package locker turns the manifest's source declarations into a dream.lock,
// fetching only what the existing lock cannot vouch for.
package locker

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/baracoder/dream2nix/pkg/config"
	"github.com/baracoder/dream2nix/pkg/fetcher"
	"github.com/baracoder/dream2nix/pkg/lock"
	"github.com/baracoder/dream2nix/pkg/source"
	"github.com/baracoder/dream2nix/pkg/store"
)

type Locker struct {
	Resolver *source.Resolver
	Log      *log.Logger
}

func New(resolver *source.Resolver, logger *log.Logger) *Locker {
	if logger == nil {
		logger = log.Default()
	}
	return &Locker{Resolver: resolver, Log: logger}
}

// Resolve turns one manifest entry into a canonical source spec, expanding
// the shortcut form when present.
func (lk *Locker) Resolve(name string, sc config.SourceConfig) (*source.SourceSpec, error) {
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("source %q: %w", name, err)
	}

	if sc.Short != "" {
		parsed, err := lk.Resolver.ParseShortcut(sc.Short)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", name, err)
		}
		spec, err := lk.Resolver.TranslateShortcut(parsed)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", name, err)
		}
		return spec, nil
	}

	spec, err := lk.Resolver.ConstructSource(sc.Kind, sc.Fields)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", name, err)
	}
	return spec, nil
}

// LockAll resolves and hashes every source in the manifest. It compares each
// spec against the existing lock to avoid redundant fetches: if a source's
// kind and fields are unchanged and the lock already carries a hash, the
// locked hash is reused as-is. Returns a new lock capturing the resolved
// state.
//
// In combined mode the per-source hashes are folded into a single
// sourcesCombinedHash and stripped from the individual records.
func (lk *Locker) LockAll(ctx context.Context, cfg *config.Config, existing *lock.Lock, combined bool) (*lock.Lock, error) {
	l := &lock.Lock{Sources: make(map[string]lock.Source, len(cfg.Sources))}

	// Sort source names for deterministic ordering.
	names := make([]string, 0, len(cfg.Sources))
	for name := range cfg.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec, err := lk.Resolve(name, cfg.Sources[name])
		if err != nil {
			return nil, err
		}

		hash := lockedHash(existing, name, spec)
		if hash == "" {
			artifacts, err := lk.Resolver.FetchSource(ctx, spec)
			if err != nil {
				return nil, fmt.Errorf("fetching source %q: %w", name, err)
			}
			hash = artifacts[fetcher.DefaultOutput].Hash
			lk.Log.Info("locked source", "name", name, "kind", spec.Kind, "hash", hash)
		} else {
			lk.Log.Debug("reusing locked hash", "name", name, "kind", spec.Kind)
		}

		rec, err := lock.FromSpec(spec, hash)
		if err != nil {
			return nil, fmt.Errorf("locking source %q: %w", name, err)
		}
		l.Sources[name] = rec
	}

	if combined {
		l.Generic.SourcesCombinedHash = combinedHash(l)
		l.StripHashes()
	}

	return l, nil
}

// lockedHash returns the hash recorded for name in the existing lock when
// the locked spec matches the resolved one, or "" when a fetch is needed.
func lockedHash(existing *lock.Lock, name string, spec *source.SourceSpec) string {
	if existing == nil {
		return ""
	}
	entry, ok := existing.Sources[name]
	if !ok || entry.Hash == "" {
		return ""
	}
	if entry.Spec().Key() != spec.Key() {
		return ""
	}
	return entry.Hash
}

// combinedHash folds the per-source hashes into one digest. The fold is over
// sorted source names, so the result does not depend on map order.
func combinedHash(l *lock.Lock) string {
	names := make([]string, 0, len(l.Sources))
	for name := range l.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(l.Sources[name].Hash))
		h.Write([]byte{0})
	}
	return store.HashPrefix + fmt.Sprintf("%x", h.Sum(nil))
}

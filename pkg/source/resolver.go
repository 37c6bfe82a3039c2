// Package source resolves source specs and shortcuts against a fetcher
// registry and drives fetches through the fetchers' output handlers.
package source

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/baracoder/dream2nix/pkg/fetcher"
)

const defaultCacheSize = 128

// Resolver dispatches construct/update/fetch/translate operations to the
// fetchers in its registry. All operations are pure functions of their
// inputs plus the read-only registry, so a Resolver is safe for concurrent
// use once constructed.
type Resolver struct {
	registry *fetcher.Registry
	strict   bool
	cache    *lru.Cache[string, *fetcher.Artifact]
	group    singleflight.Group
	log      *log.Logger
}

type Option func(*Resolver)

// StrictShortcuts makes ParseShortcut probe every registered fetcher and
// fail with AmbiguousShortcutError when more than one claims a string.
// The default is first-match-wins in registration order.
func StrictShortcuts(strict bool) Option {
	return func(r *Resolver) { r.strict = strict }
}

// CacheSize sets the number of fetched artifacts kept in the in-memory
// cache. A size of 0 disables caching.
func CacheSize(n int) Option {
	return func(r *Resolver) {
		r.cache = nil
		if n > 0 {
			// lru.New only fails for non-positive sizes.
			r.cache, _ = lru.New[string, *fetcher.Artifact](n)
		}
	}
}

// WithLogger sets the logger used for fetch progress.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

func NewResolver(registry *fetcher.Registry, opts ...Option) *Resolver {
	r := &Resolver{
		registry: registry,
		log:      log.Default(),
	}
	r.cache, _ = lru.New[string, *fetcher.Artifact](defaultCacheSize)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ConstructSource builds a SourceSpec for kind from the given field values.
// The field keys must exactly match the inputs declared by the registered
// fetcher: no missing, no extra.
func (r *Resolver) ConstructSource(kind string, fields map[string]string) (*SourceSpec, error) {
	f, err := r.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	if err := validateFields(f, fields); err != nil {
		return nil, err
	}

	spec := &SourceSpec{Kind: kind, Fields: fields}
	return spec.Clone(), nil
}

// UpdateSource returns a new SourceSpec with the version field replaced by
// newVersion and every other field unchanged. The input spec is not
// modified.
func (r *Resolver) UpdateSource(spec *SourceSpec, newVersion string) (*SourceSpec, error) {
	f, err := r.registry.Lookup(spec.Kind)
	if err != nil {
		return nil, err
	}

	updated := spec.Clone()
	updated.Fields[f.VersionField()] = newVersion
	return updated, nil
}

// FetchSource fetches the requested outputs of the spec. For each output it
// obtains the handler from the fetcher's output factory, computes the
// content hash, then materializes the artifact for that hash. When no
// outputs are named, the default output is fetched.
//
// Fetches of the same source/output pair are deduplicated in flight and the
// resulting artifacts cached, so concurrent callers of the same spec share
// one underlying fetch.
func (r *Resolver) FetchSource(ctx context.Context, spec *SourceSpec, outputs ...string) (map[string]*fetcher.Artifact, error) {
	f, err := r.registry.Lookup(spec.Kind)
	if err != nil {
		return nil, err
	}
	if err := validateFields(f, spec.Fields); err != nil {
		return nil, err
	}

	if len(outputs) == 0 {
		outputs = []string{fetcher.DefaultOutput}
	}

	artifacts := make(map[string]*fetcher.Artifact, len(outputs))
	for _, output := range outputs {
		art, err := r.fetchOutput(ctx, f, spec, output)
		if err != nil {
			return nil, err
		}
		artifacts[output] = art
	}
	return artifacts, nil
}

func (r *Resolver) fetchOutput(ctx context.Context, f fetcher.Fetcher, spec *SourceSpec, output string) (*fetcher.Artifact, error) {
	key := spec.Key() + "\x00" + output

	if r.cache != nil {
		if art, ok := r.cache.Get(key); ok {
			return art, nil
		}
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		handler, err := f.Output(spec.Fields, output)
		if err != nil {
			return nil, &fetcher.FetchError{Kind: spec.Kind, Output: output, Err: err}
		}

		hash, err := handler.CalcHash(ctx)
		if err != nil {
			return nil, &fetcher.FetchError{Kind: spec.Kind, Output: output, Err: err}
		}
		r.log.Debug("computed source hash", "kind", spec.Kind, "output", output, "hash", hash)

		art, err := handler.Fetched(ctx, hash)
		if err != nil {
			return nil, &fetcher.FetchError{Kind: spec.Kind, Output: output, Err: err}
		}
		if art.Hash != hash {
			return nil, &fetcher.FetchError{
				Kind:   spec.Kind,
				Output: output,
				Err:    fmt.Errorf("materialized content hash %s does not match computed hash %s", art.Hash, hash),
			}
		}

		if r.cache != nil {
			r.cache.Add(key, art)
		}
		return art, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*fetcher.Artifact), nil
}

// ParseShortcut probes each registered fetcher's shortcut recognizer, in
// registration order, for one that claims the string. In non-strict mode
// the first match wins; in strict mode every fetcher is probed and a second
// claimant is an error.
func (r *Resolver) ParseShortcut(shortcut string) (*fetcher.Shortcut, error) {
	var (
		parsed   *fetcher.Shortcut
		claimers []string
	)

	for _, kind := range r.registry.Kinds() {
		f, err := r.registry.Lookup(kind)
		if err != nil {
			return nil, err
		}
		sp, ok := f.(fetcher.ShortcutParser)
		if !ok {
			continue
		}
		p, ok := sp.ParseShortcut(shortcut)
		if !ok {
			continue
		}
		p.Kind = kind
		p.Raw = shortcut

		if !r.strict {
			return p, nil
		}
		if parsed == nil {
			parsed = p
		}
		claimers = append(claimers, kind)
	}

	if len(claimers) > 1 {
		return nil, &fetcher.AmbiguousShortcutError{Shortcut: shortcut, Kinds: claimers}
	}
	if parsed == nil {
		return nil, &fetcher.ShortcutParseError{Shortcut: shortcut}
	}
	return parsed, nil
}

// TranslateShortcut maps a parsed shortcut into a canonical SourceSpec for
// its kind, applying the same field validation as ConstructSource.
func (r *Resolver) TranslateShortcut(parsed *fetcher.Shortcut) (*SourceSpec, error) {
	f, err := r.registry.Lookup(parsed.Kind)
	if err != nil {
		return nil, err
	}
	sp, ok := f.(fetcher.ShortcutParser)
	if !ok {
		return nil, &fetcher.ShortcutParseError{Shortcut: parsed.Raw}
	}

	fields, err := sp.TranslateShortcut(parsed)
	if err != nil {
		return nil, err
	}
	return r.ConstructSource(parsed.Kind, fields)
}

// FetchShortcut parses and translates a shortcut string, then fetches the
// resulting source spec.
func (r *Resolver) FetchShortcut(ctx context.Context, shortcut string, outputs ...string) (map[string]*fetcher.Artifact, error) {
	parsed, err := r.ParseShortcut(shortcut)
	if err != nil {
		return nil, err
	}
	spec, err := r.TranslateShortcut(parsed)
	if err != nil {
		return nil, err
	}
	return r.FetchSource(ctx, spec, outputs...)
}

// validateFields checks that fields' keys exactly match the fetcher's
// declared inputs.
func validateFields(f fetcher.Fetcher, fields map[string]string) error {
	declared := f.Inputs()
	declaredSet := make(map[string]bool, len(declared))
	for _, in := range declared {
		declaredSet[in] = true
	}

	var missing, extra []string
	for _, in := range declared {
		if _, ok := fields[in]; !ok {
			missing = append(missing, in)
		}
	}
	for k := range fields {
		if !declaredSet[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)

	if len(missing) > 0 || len(extra) > 0 {
		return &fetcher.InvalidFieldsError{Kind: f.Kind(), Missing: missing, Extra: extra}
	}
	return nil
}

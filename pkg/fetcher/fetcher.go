package fetcher

import (
	"context"
)

// DefaultOutput is the output name every fetcher must support. It denotes
// the fetched source tree (or file) itself.
const DefaultOutput = "src"

// Fetcher describes one kind of source (git repository, plain URL, local
// path, ...). A fetcher declares which named inputs it accepts, which of
// them carries the version, and produces per-output handlers that do the
// actual hashing and materialization.
type Fetcher interface {
	// Kind returns the fetcher-kind identifier, e.g. "git".
	Kind() string
	// Inputs returns the accepted input names in declaration order.
	// Names must be unique and non-empty.
	Inputs() []string
	// VersionField names the input that carries the version. It must be
	// one of Inputs.
	VersionField() string
	// Output returns the handler for one named output of a source with
	// the given field values. The handler is bound to the fields; callers
	// obtain a fresh handler per source.
	Output(fields map[string]string, output string) (OutputHandler, error)
}

// OutputHandler hashes and materializes one named output of a source.
//
// The two operations must agree: Fetched(h) for h returned by CalcHash
// materializes content whose recomputed hash equals h.
type OutputHandler interface {
	// CalcHash computes the content hash of the output, fetching the
	// source if necessary.
	CalcHash(ctx context.Context) (string, error)
	// Fetched materializes the output for the given hash and verifies
	// the content matches it.
	Fetched(ctx context.Context, hash string) (*Artifact, error)
}

// Artifact is a materialized output of a fetch.
type Artifact struct {
	Kind   string // fetcher kind that produced it
	Output string // output name
	Path   string // content location on disk
	Hash   string // content hash ("sha256:<hex>")
}

// Shortcut is the parsed form of a short-form source string. Its grammar is
// owned by the fetcher that recognized it, not by the registry.
type Shortcut struct {
	Kind  string
	Raw   string
	Attrs map[string]string
}

// ShortcutParser is implemented by fetchers that own a shortcut grammar.
type ShortcutParser interface {
	// ParseShortcut reports whether the fetcher recognizes the shortcut
	// syntax, returning its parsed form when it does.
	ParseShortcut(shortcut string) (*Shortcut, bool)
	// TranslateShortcut maps a parsed shortcut into the canonical field
	// values for this kind. The returned keys must match Inputs exactly.
	TranslateShortcut(parsed *Shortcut) (map[string]string, error)
}

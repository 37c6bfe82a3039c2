package fetcher

import (
	"fmt"
	"strings"
)

// UnknownKindError is returned when no fetcher is registered for a kind.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("no fetcher registered for kind %q", e.Kind)
}

// DuplicateKindError is returned when a kind is registered twice.
type DuplicateKindError struct {
	Kind string
}

func (e *DuplicateKindError) Error() string {
	return fmt.Sprintf("fetcher for kind %q already registered", e.Kind)
}

// InvalidFetcherError is returned when a fetcher fails conformance
// validation at registration time.
type InvalidFetcherError struct {
	Kind   string
	Reason string
}

func (e *InvalidFetcherError) Error() string {
	return fmt.Sprintf("invalid fetcher for kind %q: %s", e.Kind, e.Reason)
}

// InvalidFieldsError is returned when a field set does not exactly match
// the inputs declared by a fetcher.
type InvalidFieldsError struct {
	Kind    string
	Missing []string
	Extra   []string
}

func (e *InvalidFieldsError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing [%s]", strings.Join(e.Missing, ", ")))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected [%s]", strings.Join(e.Extra, ", ")))
	}
	if len(parts) == 0 {
		parts = append(parts, "invalid fields")
	}
	return fmt.Sprintf("fields for kind %q: %s", e.Kind, strings.Join(parts, "; "))
}

// ShortcutParseError is returned when no registered fetcher recognizes a
// shortcut string.
type ShortcutParseError struct {
	Shortcut string
}

func (e *ShortcutParseError) Error() string {
	return fmt.Sprintf("no fetcher recognizes shortcut %q", e.Shortcut)
}

// AmbiguousShortcutError is returned in strict mode when more than one
// fetcher claims a shortcut string.
type AmbiguousShortcutError struct {
	Shortcut string
	Kinds    []string
}

func (e *AmbiguousShortcutError) Error() string {
	return fmt.Sprintf("shortcut %q claimed by multiple fetchers: %s", e.Shortcut, strings.Join(e.Kinds, ", "))
}

// FetchError wraps a failure from an output handler's hash or materialize
// step, carrying the kind and output name for diagnosis.
type FetchError struct {
	Kind   string
	Output string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching output %q of kind %q: %v", e.Output, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

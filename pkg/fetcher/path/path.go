// Package path fetches sources from local directories. Nothing is copied
// into the store; the artifact points at the directory itself. It declares
// the inputs [path, version] with version as the version field, and claims
// shortcuts that look like filesystem paths.
package path

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/baracoder/dream2nix/pkg/fetcher"
	"github.com/baracoder/dream2nix/pkg/store"
)

const Kind = "path"

func init() {
	fetcher.RegisterBuilder(func(st store.Store) fetcher.Fetcher {
		return New(st)
	})
}

type Fetcher struct{}

func New(st store.Store) *Fetcher {
	// Local directories live outside the store, so the store is unused.
	return &Fetcher{}
}

var (
	_ fetcher.Fetcher        = &Fetcher{}
	_ fetcher.ShortcutParser = &Fetcher{}
)

func (f *Fetcher) Kind() string         { return Kind }
func (f *Fetcher) Inputs() []string     { return []string{"path", "version"} }
func (f *Fetcher) VersionField() string { return "version" }

func (f *Fetcher) Output(fields map[string]string, output string) (fetcher.OutputHandler, error) {
	if output != fetcher.DefaultOutput {
		return nil, fmt.Errorf("unknown output %q, path provides only %q", output, fetcher.DefaultOutput)
	}
	if fields["path"] == "" {
		return nil, fmt.Errorf("path must not be empty")
	}

	return &outputHandler{path: fields["path"]}, nil
}

// ParseShortcut recognizes local filesystem paths: relative paths starting
// with ./ or ../, and absolute paths.
func (f *Fetcher) ParseShortcut(shortcut string) (*fetcher.Shortcut, bool) {
	if !isLocalPath(shortcut) {
		return nil, false
	}
	return &fetcher.Shortcut{
		Attrs: map[string]string{"path": shortcut, "version": ""},
	}, true
}

func (f *Fetcher) TranslateShortcut(parsed *fetcher.Shortcut) (map[string]string, error) {
	return map[string]string{
		"path":    parsed.Attrs["path"],
		"version": parsed.Attrs["version"],
	}, nil
}

// isLocalPath reports whether s looks like a local filesystem path.
func isLocalPath(s string) bool {
	return strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") || filepath.IsAbs(s)
}

type outputHandler struct {
	path string
}

var _ fetcher.OutputHandler = &outputHandler{}

func (h *outputHandler) CalcHash(ctx context.Context) (string, error) {
	dir, err := h.resolve()
	if err != nil {
		return "", err
	}
	return store.HashTree(dir)
}

func (h *outputHandler) Fetched(ctx context.Context, hash string) (*fetcher.Artifact, error) {
	dir, err := h.resolve()
	if err != nil {
		return nil, err
	}

	got, err := store.HashTree(dir)
	if err != nil {
		return nil, fmt.Errorf("computing content hash: %w", err)
	}
	if got != hash {
		return nil, fmt.Errorf("content hash %s does not match expected %s", got, hash)
	}

	return &fetcher.Artifact{
		Kind:   Kind,
		Output: fetcher.DefaultOutput,
		Path:   dir,
		Hash:   got,
	}, nil
}

// resolve validates the path and returns it in absolute form.
func (h *outputHandler) resolve() (string, error) {
	abs, err := filepath.Abs(h.path)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path for %q: %w", h.path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("local source path does not exist: %s", abs)
		}
		return "", fmt.Errorf("checking local source path %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("local source path is not a directory: %s", abs)
	}

	return abs, nil
}

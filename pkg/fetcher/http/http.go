// Package http fetches single-file sources from plain URLs. It declares
// the inputs [url, version] with version as the version field, and owns
// the "http(s)://...#<version>" shortcut grammar.
package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"path"
	"strings"

	"github.com/baracoder/dream2nix/pkg/fetcher"
	"github.com/baracoder/dream2nix/pkg/store"
)

const Kind = "http"

func init() {
	fetcher.RegisterBuilder(func(st store.Store) fetcher.Fetcher {
		return New(st)
	})
}

type Fetcher struct {
	store store.Store
	// Client allows tests to intercept the download.
	Client *nethttp.Client
}

func New(st store.Store) *Fetcher {
	return &Fetcher{store: st, Client: nethttp.DefaultClient}
}

var (
	_ fetcher.Fetcher        = &Fetcher{}
	_ fetcher.ShortcutParser = &Fetcher{}
)

func (f *Fetcher) Kind() string         { return Kind }
func (f *Fetcher) Inputs() []string     { return []string{"url", "version"} }
func (f *Fetcher) VersionField() string { return "version" }

func (f *Fetcher) Output(fields map[string]string, output string) (fetcher.OutputHandler, error) {
	if output != fetcher.DefaultOutput {
		return nil, fmt.Errorf("unknown output %q, http provides only %q", output, fetcher.DefaultOutput)
	}
	if fields["url"] == "" {
		return nil, fmt.Errorf("url must not be empty")
	}

	return &outputHandler{
		store:   f.store,
		client:  f.Client,
		url:     fields["url"],
		version: fields["version"],
	}, nil
}

// ParseShortcut recognizes plain "http://" and "https://" URLs. A fragment
// ("#1.2.3") carries the version; without one the version is left empty
// until the source is updated.
func (f *Fetcher) ParseShortcut(shortcut string) (*fetcher.Shortcut, bool) {
	if !strings.HasPrefix(shortcut, "http://") && !strings.HasPrefix(shortcut, "https://") {
		return nil, false
	}

	rawURL, version := shortcut, ""
	if idx := strings.LastIndex(shortcut, "#"); idx >= 0 {
		rawURL, version = shortcut[:idx], shortcut[idx+1:]
	}

	return &fetcher.Shortcut{
		Attrs: map[string]string{"url": rawURL, "version": version},
	}, true
}

func (f *Fetcher) TranslateShortcut(parsed *fetcher.Shortcut) (map[string]string, error) {
	return map[string]string{
		"url":     parsed.Attrs["url"],
		"version": parsed.Attrs["version"],
	}, nil
}

type outputHandler struct {
	store   store.Store
	client  *nethttp.Client
	url     string
	version string
}

var _ fetcher.OutputHandler = &outputHandler{}

func (h *outputHandler) CalcHash(ctx context.Context) (string, error) {
	segs, err := h.materialize(ctx)
	if err != nil {
		return "", err
	}
	return h.store.HashFile(segs...)
}

func (h *outputHandler) Fetched(ctx context.Context, hash string) (*fetcher.Artifact, error) {
	segs, err := h.materialize(ctx)
	if err != nil {
		return nil, err
	}

	got, err := h.store.HashFile(segs...)
	if err != nil {
		return nil, fmt.Errorf("computing content hash: %w", err)
	}
	if got != hash {
		return nil, fmt.Errorf("content hash %s does not match expected %s", got, hash)
	}

	return &fetcher.Artifact{
		Kind:   Kind,
		Output: fetcher.DefaultOutput,
		Path:   h.store.Path(segs...),
		Hash:   got,
	}, nil
}

// materialize downloads the file into the store at
// http/<key>/<filename>, unless already cached. The key is derived from
// url and version so distinct versions of the same URL don't collide.
func (h *outputHandler) materialize(ctx context.Context) ([]string, error) {
	segs := []string{"http", h.cacheKey(), h.filename()}

	cached, err := h.store.Exists(segs...)
	if err != nil {
		return nil, fmt.Errorf("checking cache: %w", err)
	}
	if cached {
		return segs, nil
	}

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, h.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", h.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, fmt.Errorf("downloading %s: unexpected status %s", h.url, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", h.url, err)
	}

	h.store.EnsureDir(segs[:len(segs)-1]...)
	if err := h.store.WriteFile(data, 0o644, segs...); err != nil {
		h.store.Remove(segs[:len(segs)-1]...)
		return nil, fmt.Errorf("writing download: %w", err)
	}
	return segs, nil
}

func (h *outputHandler) cacheKey() string {
	sum := sha256.Sum256([]byte(h.url + "\x00" + h.version))
	return hex.EncodeToString(sum[:])
}

// filename derives the stored file name from the URL path, falling back
// to "download" for URLs without one.
func (h *outputHandler) filename() string {
	u, err := url.Parse(h.url)
	if err != nil {
		return "download"
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "download"
	}
	return name
}

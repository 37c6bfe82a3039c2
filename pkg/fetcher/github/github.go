// Package github fetches sources as GitHub release/ref tarballs, without
// needing a git client. It declares the inputs [owner, repo, rev] with rev
// as the version field, and owns the "owner/repo@rev" and
// "github:owner/repo@rev" shortcut grammars.
package github

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/baracoder/dream2nix/pkg/fetcher"
	"github.com/baracoder/dream2nix/pkg/store"
)

const (
	Kind          = "github"
	shortcutStart = "github:"

	tarballURL = "https://codeload.github.com/%s/%s/tar.gz/%s"
)

func init() {
	fetcher.RegisterBuilder(func(st store.Store) fetcher.Fetcher {
		return New(st)
	})
}

type Fetcher struct {
	store store.Store
	// Client allows tests to intercept the tarball download.
	Client *http.Client
}

func New(st store.Store) *Fetcher {
	return &Fetcher{store: st, Client: http.DefaultClient}
}

var (
	_ fetcher.Fetcher        = &Fetcher{}
	_ fetcher.ShortcutParser = &Fetcher{}
)

func (f *Fetcher) Kind() string         { return Kind }
func (f *Fetcher) Inputs() []string     { return []string{"owner", "repo", "rev"} }
func (f *Fetcher) VersionField() string { return "rev" }

func (f *Fetcher) Output(fields map[string]string, output string) (fetcher.OutputHandler, error) {
	if output != fetcher.DefaultOutput {
		return nil, fmt.Errorf("unknown output %q, github provides only %q", output, fetcher.DefaultOutput)
	}
	for _, in := range f.Inputs() {
		if fields[in] == "" {
			return nil, fmt.Errorf("%s must not be empty", in)
		}
	}

	return &outputHandler{
		store:  f.store,
		client: f.Client,
		owner:  fields["owner"],
		repo:   fields["repo"],
		rev:    fields["rev"],
	}, nil
}

// ParseShortcut recognizes "owner/repo@rev" and the prefixed forms
// "github:owner/repo@rev" and "github:owner/repo/rev".
func (f *Fetcher) ParseShortcut(shortcut string) (*fetcher.Shortcut, bool) {
	s := shortcut
	prefixed := strings.HasPrefix(s, shortcutStart)
	if prefixed {
		s = strings.TrimPrefix(s, shortcutStart)
	}

	// Local paths and full URLs belong to other fetchers.
	if strings.Contains(s, "://") || strings.HasPrefix(s, ".") || strings.HasPrefix(s, "/") {
		return nil, false
	}

	var ownerRepo, rev string
	if at := strings.LastIndex(s, "@"); at > 0 && at < len(s)-1 {
		ownerRepo, rev = s[:at], s[at+1:]
	} else if prefixed {
		// github:owner/repo/rev
		if slash := strings.LastIndex(s, "/"); slash > 0 && slash < len(s)-1 {
			ownerRepo, rev = s[:slash], s[slash+1:]
		}
	}
	if rev == "" {
		return nil, false
	}

	parts := strings.Split(ownerRepo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, false
	}

	return &fetcher.Shortcut{
		Attrs: map[string]string{"owner": parts[0], "repo": parts[1], "rev": rev},
	}, true
}

func (f *Fetcher) TranslateShortcut(parsed *fetcher.Shortcut) (map[string]string, error) {
	return map[string]string{
		"owner": parsed.Attrs["owner"],
		"repo":  parsed.Attrs["repo"],
		"rev":   parsed.Attrs["rev"],
	}, nil
}

type outputHandler struct {
	store  store.Store
	client *http.Client
	owner  string
	repo   string
	rev    string
}

var _ fetcher.OutputHandler = &outputHandler{}

func (h *outputHandler) CalcHash(ctx context.Context) (string, error) {
	segs, err := h.materialize(ctx)
	if err != nil {
		return "", err
	}
	return h.store.HashDir(segs...)
}

func (h *outputHandler) Fetched(ctx context.Context, hash string) (*fetcher.Artifact, error) {
	segs, err := h.materialize(ctx)
	if err != nil {
		return nil, err
	}

	got, err := h.store.HashDir(segs...)
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

// materialize downloads and extracts the tarball into the store at
// github/<owner>/<repo>/<rev>, unless already cached.
func (h *outputHandler) materialize(ctx context.Context) ([]string, error) {
	segs := []string{"github", h.owner, h.repo, h.rev}

	cached, err := h.store.Exists(segs...)
	if err != nil {
		return nil, fmt.Errorf("checking cache: %w", err)
	}
	if cached {
		return segs, nil
	}

	url := fmt.Sprintf(tarballURL, h.owner, h.repo, h.rev)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading %s: unexpected status %s", url, resp.Status)
	}

	h.store.EnsureDir(segs...)
	if err := extractTarGz(resp.Body, h.store.Path(segs...)); err != nil {
		h.store.Remove(segs...)
		return nil, fmt.Errorf("extracting tarball for %s/%s@%s: %w", h.owner, h.repo, h.rev, err)
	}
	return segs, nil
}

// extractTarGz unpacks a gzipped tarball into dest, stripping the single
// top-level directory GitHub puts into its archives.
func extractTarGz(r io.Reader, dest string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		rel := stripTopDir(hdr.Name)
		if rel == "" {
			continue
		}
		if !filepath.IsLocal(rel) {
			return fmt.Errorf("tarball entry %q escapes the extraction directory", hdr.Name)
		}
		target := filepath.Join(dest, filepath.FromSlash(rel))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		}
	}
}

// stripTopDir removes the leading path component of a tar entry name.
func stripTopDir(name string) string {
	name = strings.TrimPrefix(name, "./")
	if idx := strings.Index(name, "/"); idx >= 0 {
		return strings.Trim(name[idx+1:], "/")
	}
	return ""
}

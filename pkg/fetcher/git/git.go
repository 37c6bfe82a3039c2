// Package git fetches sources from git repositories. It declares the
// inputs [url, rev] with rev as the version field, and owns the
// "git+<url>@<rev>" shortcut grammar.
package git

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/baracoder/dream2nix/pkg/fetcher"
	"github.com/baracoder/dream2nix/pkg/store"
)

const (
	Kind          = "git"
	shortcutStart = "git+"
)

func init() {
	fetcher.RegisterBuilder(func(st store.Store) fetcher.Fetcher {
		return New(st)
	})
}

type Fetcher struct {
	store store.Store
}

func New(st store.Store) *Fetcher {
	return &Fetcher{store: st}
}

var (
	_ fetcher.Fetcher        = &Fetcher{}
	_ fetcher.ShortcutParser = &Fetcher{}
)

func (f *Fetcher) Kind() string         { return Kind }
func (f *Fetcher) Inputs() []string     { return []string{"url", "rev"} }
func (f *Fetcher) VersionField() string { return "rev" }

func (f *Fetcher) Output(fields map[string]string, output string) (fetcher.OutputHandler, error) {
	if output != fetcher.DefaultOutput {
		return nil, fmt.Errorf("unknown output %q, git provides only %q", output, fetcher.DefaultOutput)
	}
	if fields["url"] == "" {
		return nil, fmt.Errorf("url must not be empty")
	}
	if fields["rev"] == "" {
		return nil, fmt.Errorf("rev must not be empty")
	}

	return &outputHandler{
		store: f.store,
		url:   fields["url"],
		rev:   fields["rev"],
	}, nil
}

// ParseShortcut recognizes "git+<url>@<rev>". The rev is the part after the
// last "@" so user@host URLs still parse; a rev containing "/" or ":" is
// rejected as not being a ref name.
func (f *Fetcher) ParseShortcut(shortcut string) (*fetcher.Shortcut, bool) {
	if !strings.HasPrefix(shortcut, shortcutStart) {
		return nil, false
	}

	rest := strings.TrimPrefix(shortcut, shortcutStart)
	idx := strings.LastIndex(rest, "@")
	if idx <= 0 || idx == len(rest)-1 {
		return nil, false
	}

	repoURL, rev := rest[:idx], rest[idx+1:]
	if strings.ContainsAny(rev, "/:") {
		return nil, false
	}

	return &fetcher.Shortcut{
		Attrs: map[string]string{"url": repoURL, "rev": rev},
	}, true
}

func (f *Fetcher) TranslateShortcut(parsed *fetcher.Shortcut) (map[string]string, error) {
	return map[string]string{
		"url": parsed.Attrs["url"],
		"rev": parsed.Attrs["rev"],
	}, nil
}

// outputHandler materializes one repository checkout, cached in the store
// under git/<host>/<repo-path>/<commit>.
type outputHandler struct {
	store store.Store
	url   string
	rev   string

	// resolved state, populated on first use
	commit  string
	refName plumbing.ReferenceName
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

// materialize resolves the rev and ensures the checkout exists in the
// store, returning its store segments.
func (h *outputHandler) materialize(ctx context.Context) ([]string, error) {
	if h.commit == "" {
		if err := h.resolveRev(ctx); err != nil {
			return nil, fmt.Errorf("resolving rev %q: %w", h.rev, err)
		}
	}

	segs, err := repoSegments(h.url, h.commit)
	if err != nil {
		return nil, err
	}

	cached, err := h.store.Exists(segs...)
	if err != nil {
		return nil, fmt.Errorf("checking cache: %w", err)
	}
	if cached {
		return segs, nil
	}

	h.store.EnsureDir(segs[:len(segs)-1]...)
	if err := h.clone(ctx, h.store.Path(segs...)); err != nil {
		h.store.Remove(segs...)
		return nil, fmt.Errorf("cloning %s: %w", h.url, err)
	}
	return segs, nil
}

// resolveRev resolves h.rev to a full commit hash, listing the remote refs
// (the ls-remote equivalent) for branch and tag names. Annotated tags are
// dereferenced to the underlying commit via their peeled ("^{}") entries.
// Abbreviated commit hashes are expanded by prefix-matching the advertised
// commit hashes.
func (h *outputHandler) resolveRev(ctx context.Context) error {
	if isCommitHash(h.rev) {
		h.commit = h.rev
		return nil
	}

	rem := gogit.NewRemote(memory.NewStorage(), &gitcfg.RemoteConfig{
		Name: "origin",
		URLs: []string{h.url},
	})
	refs, err := rem.ListContext(ctx, &gogit.ListOptions{})
	if err != nil {
		return err
	}

	if isShortCommitHash(h.rev) {
		return h.expandShortHash(refs)
	}

	peeled := h.rev + "^{}"
	var commit string
	var refName plumbing.ReferenceName
	for _, ref := range refs {
		short := ref.Name().Short()
		// Prefer the dereferenced entry for annotated tags, which points
		// to the underlying commit.
		if short == peeled {
			h.commit = ref.Hash().String()
			h.refName = plumbing.NewTagReferenceName(h.rev)
			return nil
		}
		if short == h.rev {
			commit = ref.Hash().String()
			refName = ref.Name()
		}
	}

	if commit == "" {
		return fmt.Errorf("rev %q not found in %s", h.rev, h.url)
	}
	h.commit = commit
	h.refName = refName
	return nil
}

// expandShortHash expands an abbreviated commit hash by prefix-matching
// against all advertised commit hashes.
func (h *outputHandler) expandShortHash(refs []*plumbing.Reference) error {
	prefix := strings.ToLower(h.rev)
	var match string
	for _, ref := range refs {
		hash := strings.ToLower(ref.Hash().String())
		if !strings.HasPrefix(hash, prefix) {
			continue
		}
		if match != "" && match != hash {
			return fmt.Errorf("short hash %q is ambiguous in %s", h.rev, h.url)
		}
		match = hash
	}

	if match == "" {
		return fmt.Errorf("short hash %q not found in %s", h.rev, h.url)
	}
	h.commit = match
	return nil
}

// clone checks the resolved commit out into dest. Branch and tag revs get
// a depth-1 single-branch clone; bare commit revs need the full history
// before the commit can be checked out.
func (h *outputHandler) clone(ctx context.Context, dest string) error {
	if h.refName != "" {
		_, err := gogit.PlainCloneContext(ctx, dest, false, &gogit.CloneOptions{
			URL:           h.url,
			ReferenceName: h.refName,
			SingleBranch:  true,
			Depth:         1,
		})
		return err
	}

	repo, err := gogit.PlainCloneContext(ctx, dest, false, &gogit.CloneOptions{URL: h.url})
	if err != nil {
		return err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	return wt.Checkout(&gogit.CheckoutOptions{Hash: plumbing.NewHash(h.commit)})
}

// repoSegments returns the store path segments for caching a repo at a
// given commit, e.g. "https://github.com/foo/bar.git" at commit "abc..." →
//
//	["git", "github.com", "foo", "bar", "abc..."]
func repoSegments(rawURL, commit string) ([]string, error) {
	host, repoPath, err := parseGitURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing git URL: %w", err)
	}
	segs := []string{"git", host}
	segs = append(segs, strings.Split(repoPath, "/")...)
	segs = append(segs, commit)
	return segs, nil
}

// parseGitURL extracts the host and repository path from a git URL.
// Supports HTTPS URLs and SSH shorthand (git@host:owner/repo.git).
func parseGitURL(rawURL string) (host, repoPath string, err error) {
	// SSH shorthand: git@github.com:owner/repo.git
	if idx := strings.Index(rawURL, ":"); idx > 0 && !strings.Contains(rawURL[:idx], "/") && !strings.Contains(rawURL, "://") {
		host = rawURL[:idx]
		if at := strings.Index(host, "@"); at >= 0 {
			host = host[at+1:]
		}
		repoPath = strings.TrimSuffix(rawURL[idx+1:], ".git")
		return host, repoPath, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	repoPath = strings.TrimPrefix(u.Path, "/")
	repoPath = strings.TrimSuffix(repoPath, ".git")
	return u.Host, repoPath, nil
}

// isCommitHash reports whether s is a full 40-character hex SHA-1 hash.
func isCommitHash(s string) bool {
	return len(s) == 40 && isHexString(s)
}

// isShortCommitHash reports whether s looks like an abbreviated commit hash (7-39 hex chars).
func isShortCommitHash(s string) bool {
	return len(s) >= 7 && len(s) < 40 && isHexString(s)
}

// isHexString reports whether s is non-empty and contains only hexadecimal characters.
func isHexString(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

package git

import (
	"strings"
	"testing"

	"github.com/baracoder/dream2nix/pkg/fetcher"
	"github.com/baracoder/dream2nix/pkg/store"
)

func TestDeclaration(t *testing.T) {
	reg := fetcher.NewRegistry()
	if err := reg.Register(New(store.New(t.TempDir()))); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	f, err := reg.Lookup(Kind)
	if err != nil {
		t.Fatalf("Lookup(%q) error: %v", Kind, err)
	}
	if f.VersionField() != "rev" {
		t.Errorf("VersionField() = %q, want %q", f.VersionField(), "rev")
	}
}

func TestParseGitURL(t *testing.T) {
	tests := map[string]struct {
		url      string
		wantHost string
		wantPath string
		wantErr  bool
	}{
		"https URL": {
			url:      "https://github.com/foo/bar.git",
			wantHost: "github.com",
			wantPath: "foo/bar",
		},
		"https URL without .git": {
			url:      "https://gitlab.com/group/sub/project",
			wantHost: "gitlab.com",
			wantPath: "group/sub/project",
		},
		"ssh shorthand": {
			url:      "git@github.com:foo/bar.git",
			wantHost: "github.com",
			wantPath: "foo/bar",
		},
		"ssh shorthand without user": {
			url:      "github.com:foo/bar",
			wantHost: "github.com",
			wantPath: "foo/bar",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			host, repoPath, err := parseGitURL(tc.url)
			if (err != nil) != tc.wantErr {
				t.Fatalf("parseGitURL(%q) error = %v, wantErr = %v", tc.url, err, tc.wantErr)
			}
			if host != tc.wantHost {
				t.Errorf("host = %q, want %q", host, tc.wantHost)
			}
			if repoPath != tc.wantPath {
				t.Errorf("repoPath = %q, want %q", repoPath, tc.wantPath)
			}
		})
	}
}

func TestRepoSegments(t *testing.T) {
	commit := strings.Repeat("a", 40)
	segs, err := repoSegments("https://github.com/foo/bar.git", commit)
	if err != nil {
		t.Fatalf("repoSegments() error: %v", err)
	}

	want := []string{"git", "github.com", "foo", "bar", commit}
	if len(segs) != len(want) {
		t.Fatalf("repoSegments() = %v, want %v", segs, want)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Errorf("segs[%d] = %q, want %q", i, segs[i], want[i])
		}
	}
}

func TestIsCommitHash(t *testing.T) {
	tests := map[string]struct {
		s         string
		wantFull  bool
		wantShort bool
	}{
		"full hash":      {s: strings.Repeat("ab", 20), wantFull: true},
		"short hash":     {s: "abc1234", wantShort: true},
		"too short":      {s: "abc12"},
		"branch name":    {s: "main"},
		"tag name":       {s: "v1.2.3"},
		"uppercase full": {s: strings.Repeat("AB", 20), wantFull: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := isCommitHash(tc.s); got != tc.wantFull {
				t.Errorf("isCommitHash(%q) = %v, want %v", tc.s, got, tc.wantFull)
			}
			if got := isShortCommitHash(tc.s); got != tc.wantShort {
				t.Errorf("isShortCommitHash(%q) = %v, want %v", tc.s, got, tc.wantShort)
			}
		})
	}
}

func TestParseShortcut(t *testing.T) {
	f := New(store.New(t.TempDir()))

	tests := map[string]struct {
		shortcut string
		wantOK   bool
		wantURL  string
		wantRev  string
	}{
		"https with rev": {
			shortcut: "git+https://github.com/foo/bar.git@main",
			wantOK:   true,
			wantURL:  "https://github.com/foo/bar.git",
			wantRev:  "main",
		},
		"user in URL": {
			shortcut: "git+https://user@example.com/repo.git@v1.0",
			wantOK:   true,
			wantURL:  "https://user@example.com/repo.git",
			wantRev:  "v1.0",
		},
		"missing rev": {
			shortcut: "git+https://github.com/foo/bar.git",
		},
		"empty rev": {
			shortcut: "git+https://github.com/foo/bar.git@",
		},
		"not a git shortcut": {
			shortcut: "https://github.com/foo/bar.git@main",
		},
		"rev containing path separator": {
			shortcut: "git+git@github.com:foo/bar.git",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			parsed, ok := f.ParseShortcut(tc.shortcut)
			if ok != tc.wantOK {
				t.Fatalf("ParseShortcut(%q) ok = %v, want %v", tc.shortcut, ok, tc.wantOK)
			}
			if !tc.wantOK {
				return
			}

			fields, err := f.TranslateShortcut(parsed)
			if err != nil {
				t.Fatalf("TranslateShortcut() error: %v", err)
			}
			if fields["url"] != tc.wantURL {
				t.Errorf("url = %q, want %q", fields["url"], tc.wantURL)
			}
			if fields["rev"] != tc.wantRev {
				t.Errorf("rev = %q, want %q", fields["rev"], tc.wantRev)
			}
		})
	}
}

func TestOutputValidation(t *testing.T) {
	f := New(store.New(t.TempDir()))

	tests := map[string]struct {
		fields  map[string]string
		output  string
		wantErr bool
	}{
		"valid": {
			fields: map[string]string{"url": "https://x/y.git", "rev": "main"},
			output: fetcher.DefaultOutput,
		},
		"unknown output": {
			fields:  map[string]string{"url": "https://x/y.git", "rev": "main"},
			output:  "docs",
			wantErr: true,
		},
		"empty url": {
			fields:  map[string]string{"url": "", "rev": "main"},
			output:  fetcher.DefaultOutput,
			wantErr: true,
		},
		"empty rev": {
			fields:  map[string]string{"url": "https://x/y.git", "rev": ""},
			output:  fetcher.DefaultOutput,
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.Output(tc.fields, tc.output)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Output() error = %v, wantErr = %v", err, tc.wantErr)
			}
		})
	}
}

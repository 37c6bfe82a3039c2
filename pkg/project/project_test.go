package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInit(t *testing.T) {
	dir := t.TempDir()

	if err := Init(dir, "myproject"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err != nil {
		t.Fatalf("manifest not created: %v", err)
	}

	// A second init must not overwrite the manifest.
	if err := Init(dir, "other"); err == nil {
		t.Fatal("Init() on existing manifest succeeded, want error")
	}
}

func TestEnsureGitignore(t *testing.T) {
	tests := map[string]struct {
		existing  string
		entries   []string
		wantAdded []string
	}{
		"fresh file": {
			entries:   []string{"dream2nix.local.toml", ".dream2nix/"},
			wantAdded: []string{"dream2nix.local.toml", ".dream2nix/"},
		},
		"entry already present": {
			existing:  "dream2nix.local.toml\n",
			entries:   []string{"dream2nix.local.toml", ".dream2nix/"},
			wantAdded: []string{".dream2nix/"},
		},
		"all present": {
			existing:  "dream2nix.local.toml\n.dream2nix/\n",
			entries:   []string{"dream2nix.local.toml", ".dream2nix/"},
			wantAdded: nil,
		},
		"file without trailing newline": {
			existing:  "node_modules",
			entries:   []string{".dream2nix/"},
			wantAdded: []string{".dream2nix/"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, ".gitignore")

			if tc.existing != "" {
				if err := os.WriteFile(path, []byte(tc.existing), 0o644); err != nil {
					t.Fatalf("writing .gitignore: %v", err)
				}
			}

			added, err := EnsureGitignore(dir, tc.entries)
			if err != nil {
				t.Fatalf("EnsureGitignore() error = %v", err)
			}

			if len(added) != len(tc.wantAdded) {
				t.Fatalf("added = %v, want %v", added, tc.wantAdded)
			}
			for i := range added {
				if added[i] != tc.wantAdded[i] {
					t.Errorf("added[%d] = %q, want %q", i, added[i], tc.wantAdded[i])
				}
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("reading .gitignore: %v", err)
			}
			for _, entry := range tc.entries {
				found := false
				for _, line := range strings.Split(string(data), "\n") {
					if line == entry {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("entry %q missing from .gitignore:\n%s", entry, data)
				}
			}
		})
	}
}

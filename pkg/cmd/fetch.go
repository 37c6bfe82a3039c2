package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/baracoder/dream2nix/pkg/config"
	"github.com/baracoder/dream2nix/pkg/locker"
	"github.com/baracoder/dream2nix/pkg/project"
	"github.com/baracoder/dream2nix/pkg/source"
)

func newFetchCmd() *cobra.Command {
	fetchCmd := &cobra.Command{
		Use:   "fetch [source]",
		Short: "Fetch a source into the store",
		Long: `Fetches a source and prints its store path and content hash.

The argument is either the name of a source from dream2nix.toml or a
shortcut like owner/repo@v1, git+https://host/repo.git@rev, an
http(s):// URL, or a local path.`,
		Args: cobra.ExactArgs(1),
		RunE: runFetch,
	}

	fetchCmd.Flags().StringSlice("output", nil, "outputs to fetch (default: the fetcher's default output)")

	return fetchCmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	outputs, err := cmd.Flags().GetStringSlice("output")
	if err != nil {
		return err
	}

	resolver, _, err := newResolver()
	if err != nil {
		return err
	}

	spec, err := resolveArg(resolver, args[0])
	if err != nil {
		return err
	}

	artifacts, err := resolver.FetchSource(cmd.Context(), spec, outputs...)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(artifacts))
	for output := range artifacts {
		names = append(names, output)
	}
	sort.Strings(names)

	for _, output := range names {
		art := artifacts[output]
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", output, art.Hash, art.Path)
	}
	return nil
}

// resolveArg interprets the fetch argument as a manifest source name when a
// manifest is present and has an entry under that name, and as a shortcut
// otherwise.
func resolveArg(resolver *source.Resolver, arg string) (*source.SourceSpec, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	manifestPath := filepath.Join(wd, project.ManifestFile)
	if _, err := os.Stat(manifestPath); err == nil {
		cfg, err := config.LoadFile(manifestPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", manifestPath, err)
		}
		if sc, ok := cfg.Sources[arg]; ok {
			lk := locker.New(resolver, nil)
			return lk.Resolve(arg, sc)
		}
	}

	parsed, err := resolver.ParseShortcut(arg)
	if err != nil {
		return nil, err
	}
	return resolver.TranslateShortcut(parsed)
}

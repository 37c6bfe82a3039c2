package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/baracoder/dream2nix/pkg/config"
	"github.com/baracoder/dream2nix/pkg/lock"
	"github.com/baracoder/dream2nix/pkg/locker"
	"github.com/baracoder/dream2nix/pkg/project"
)

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update [source] [version]",
		Short: "Update a source to a new version",
		Long: `Replaces the version field of a source from dream2nix.toml with the
given value, writes the manifest back in explicit form, and relocks.

A source declared as a shortcut is expanded to its kind and fields so
the new version can be recorded.`,
		Args: cobra.ExactArgs(2),
		RunE: runUpdate,
	}
}

func runUpdate(cmd *cobra.Command, args []string) error {
	name, version := args[0], args[1]

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	manifestPath := filepath.Join(wd, project.ManifestFile)

	cfg, err := config.LoadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("loading %s: %w", project.ManifestFile, err)
	}

	sc, ok := cfg.Sources[name]
	if !ok {
		return fmt.Errorf("source %q is not declared in %s", name, project.ManifestFile)
	}

	resolver, _, err := newResolver()
	if err != nil {
		return err
	}
	lk := locker.New(resolver, log.Default())

	spec, err := lk.Resolve(name, sc)
	if err != nil {
		return err
	}

	updated, err := resolver.UpdateSource(spec, version)
	if err != nil {
		return err
	}

	cfg.Sources[name] = config.SourceConfig{Kind: updated.Kind, Fields: updated.Fields}
	if err := config.SaveFile(manifestPath, cfg); err != nil {
		return fmt.Errorf("saving %s: %w", project.ManifestFile, err)
	}

	existing, err := lock.Load(filepath.Join(wd, lock.FileName))
	if err != nil {
		return fmt.Errorf("loading lock: %w", err)
	}

	l, err := lk.LockAll(cmd.Context(), cfg, existing, existing.Generic.SourcesCombinedHash != "")
	if err != nil {
		return err
	}

	if err := lock.Save(filepath.Join(wd, lock.FileName), l); err != nil {
		return fmt.Errorf("writing lock: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated %q to version %s\n", name, version)
	return nil
}

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

func newLockCmd() *cobra.Command {
	lockCmd := &cobra.Command{
		Use:   "lock",
		Short: "Resolve all sources and write dream.lock",
		Long: `Resolves every source in dream2nix.toml, computes content hashes, and
writes the result to dream.lock. Sources whose definition is unchanged
keep their locked hash without refetching.`,
		RunE: runLock,
	}

	lockCmd.Flags().StringP("out", "o", lock.FileName, "lock file to write")
	lockCmd.Flags().Bool("combined", false, "replace per-source hashes with one combined hash")

	return lockCmd
}

func runLock(cmd *cobra.Command, args []string) error {
	out, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	combined, err := cmd.Flags().GetBool("combined")
	if err != nil {
		return err
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	cfg, err := config.LoadFile(filepath.Join(wd, project.ManifestFile))
	if err != nil {
		return fmt.Errorf("loading %s: %w", project.ManifestFile, err)
	}

	existing, err := lock.Load(out)
	if err != nil {
		return fmt.Errorf("loading lock: %w", err)
	}

	resolver, _, err := newResolver()
	if err != nil {
		return err
	}

	lk := locker.New(resolver, log.Default())
	l, err := lk.LockAll(cmd.Context(), cfg, existing, combined)
	if err != nil {
		return err
	}

	if err := lock.Save(out, l); err != nil {
		return fmt.Errorf("writing lock: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Locked %d source(s) in %s\n", len(l.Sources), out)
	return nil
}

package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/baracoder/dream2nix/pkg/project"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new dream2nix project",
		Long:  "Creates a dream2nix.toml manifest and configures .gitignore entries.",
		RunE:  runInit,
		// init does not need dev config resolution; skip the root PersistentPreRunE.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	name := project.InferName(wd)

	if err := project.Init(wd, name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", project.ManifestFile)

	// Prompt for local files to gitignore.
	selected, err := promptIgnoreEntries()
	if err != nil {
		return err
	}

	added, err := project.EnsureGitignore(wd, selected)
	if err != nil {
		return err
	}
	for _, entry := range added {
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s to .gitignore\n", entry)
	}

	return nil
}

// promptIgnoreEntries uses huh to present a multi-select of project-local
// files that usually stay out of version control.
func promptIgnoreEntries() ([]string, error) {
	options := make([]huh.Option[string], len(project.IgnoreEntries))
	for i, entry := range project.IgnoreEntries {
		options[i] = huh.NewOption(entry, entry).Selected(true)
	}

	var selected []string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Add local files to .gitignore?").
				Options(options...).
				Value(&selected),
		),
	).Run()
	if err != nil {
		return nil, fmt.Errorf("prompt failed: %w", err)
	}

	return selected, nil
}

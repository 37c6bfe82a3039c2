package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/baracoder/dream2nix/pkg/fetcher"
)

// fetcherInfo is the serializable description of one registered fetcher.
type fetcherInfo struct {
	Kind         string   `json:"kind"`
	Inputs       []string `json:"inputs"`
	VersionField string   `json:"versionField"`
	Shortcuts    bool     `json:"shortcuts"`
}

func newFetchersCmd() *cobra.Command {
	fetchersCmd := &cobra.Command{
		Use:   "fetchers",
		Short: "List registered fetchers",
		Long:  "Lists every registered fetcher kind with its input fields and version field, in registration order.",
		RunE:  runFetchers,
	}

	fetchersCmd.Flags().String("output", "text", "output format: text, json, or yaml")

	return fetchersCmd
}

func runFetchers(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	reg, _, err := newRegistry()
	if err != nil {
		return err
	}

	var infos []fetcherInfo
	for _, kind := range reg.Kinds() {
		f, err := reg.Lookup(kind)
		if err != nil {
			return err
		}
		_, parses := f.(fetcher.ShortcutParser)
		infos = append(infos, fetcherInfo{
			Kind:         f.Kind(),
			Inputs:       f.Inputs(),
			VersionField: f.VersionField(),
			Shortcuts:    parses,
		})
	}

	switch format {
	case "text":
		for _, info := range infos {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tinputs: %s\tversion: %s\n",
				info.Kind, strings.Join(info.Inputs, ","), info.VersionField)
		}
	case "json":
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	case "yaml":
		data, err := yaml.Marshal(infos)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	return nil
}

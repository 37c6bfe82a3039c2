package cmd

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/baracoder/dream2nix/pkg/config"
	"github.com/baracoder/dream2nix/pkg/fetcher"
	"github.com/baracoder/dream2nix/pkg/source"
	"github.com/baracoder/dream2nix/pkg/store"
)

var (
	flagStoreRoot string
	flagStrict    bool
	flagCacheSize int
	flagVerbose   bool

	// DevCfg holds the resolved developer configuration, available to all
	// subcommands after PersistentPreRunE completes.
	DevCfg *config.DevConfig
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dream2nix",
		Short: "Reproducible source fetching",
		Long:  "dream2nix resolves source shortcuts and specs through pluggable fetchers and pins their content hashes in a dream.lock file.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			overrides := map[string]any{}
			if cmd.Flags().Changed("store") {
				overrides["store_root"] = flagStoreRoot
			}
			if cmd.Flags().Changed("strict-shortcuts") {
				overrides["strict_shortcuts"] = flagStrict
			}
			if cmd.Flags().Changed("cache-size") {
				overrides["cache_size"] = flagCacheSize
			}
			if cmd.Flags().Changed("verbose") {
				overrides["verbose"] = flagVerbose
			}

			cfg, err := config.LoadDevConfig(overrides)
			if err != nil {
				return err
			}
			DevCfg = cfg

			if DevCfg.Verbose {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagStoreRoot, "store", "", "artifact store root (default ~/"+store.DefaultRoot+")")
	root.PersistentFlags().BoolVar(&flagStrict, "strict-shortcuts", false, "fail when a shortcut is claimed by more than one fetcher")
	root.PersistentFlags().IntVar(&flagCacheSize, "cache-size", config.DefaultCacheSize, "in-memory artifact cache size (0 disables)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newInitCmd())
	root.AddCommand(newFetchCmd())
	root.AddCommand(newLockCmd())
	root.AddCommand(newUpdateCmd())
	root.AddCommand(newFetchersCmd())

	return root
}

// newRegistry builds the store and the fetcher registry from the resolved
// dev config.
func newRegistry() (*fetcher.Registry, store.Store, error) {
	var st store.Store
	if DevCfg.StoreRoot != "" {
		st = store.New(DevCfg.StoreRoot)
	} else {
		var err error
		st, err = store.Default()
		if err != nil {
			return nil, nil, err
		}
	}

	reg, err := fetcher.BuildRegistry(st)
	if err != nil {
		return nil, nil, err
	}
	return reg, st, nil
}

// newResolver builds the resolver on top of newRegistry.
func newResolver() (*source.Resolver, store.Store, error) {
	reg, st, err := newRegistry()
	if err != nil {
		return nil, nil, err
	}

	r := source.NewResolver(reg,
		source.StrictShortcuts(DevCfg.StrictShortcuts),
		source.CacheSize(DevCfg.CacheSize),
		source.WithLogger(log.Default()),
	)
	return r, st, nil
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

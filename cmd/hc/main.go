// hc - command-line client for hearth preferences and state.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/quantumlife/hearth/internal/config"
	"github.com/quantumlife/hearth/internal/kv"
	"github.com/quantumlife/hearth/internal/logging"
	"github.com/quantumlife/hearth/internal/prefs"
	"github.com/quantumlife/hearth/internal/state"
	"github.com/quantumlife/hearth/internal/store"
)

var (
	configPath    string
	dataDir       string
	askPassphrase bool

	version = "0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hc",
		Short: "hc - inspect and change hearth preferences",
		Long: `hc works directly on the storage the hearth daemon uses.

Changes made while the daemon runs with the file backend are picked up
by the daemon automatically.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.hearth)")
	rootCmd.PersistentFlags().BoolVar(&askPassphrase, "ask-passphrase", false, "prompt for the storage passphrase")

	rootCmd.AddCommand(prefsCmd())
	rootCmd.AddCommand(dispatchCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" && dataDir != "" {
		path = config.DefaultPath(dataDir)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	if askPassphrase {
		fmt.Fprint(os.Stderr, "Storage passphrase: ")
		pass, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("failed to read passphrase: %w", err)
		}
		cfg.Storage.Passphrase = string(pass)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openStorage(ctx context.Context) (kv.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s, err := kv.Open(ctx, cfg.KVOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return s, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// prefsCmd shows and changes persisted preferences
func prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change persisted preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer kv.Close(s)

			p, err := prefs.Load(cmd.Context(), s)
			if err != nil {
				return err
			}
			return printJSON(p)
		},
	})

	var theme, filter, sort string
	set := &cobra.Command{
		Use:   "set",
		Short: "Change stored preferences",
		Example: `  hc prefs set --theme dark
  hc prefs set --filter weekly --sort priceAsc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if theme == "" && filter == "" && sort == "" {
				return fmt.Errorf("nothing to set: use --theme, --filter or --sort")
			}

			s, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer kv.Close(s)

			p, err := prefs.Load(cmd.Context(), s)
			if err != nil {
				return err
			}
			if err := applyFlags(&p, theme, filter, sort); err != nil {
				return err
			}
			if err := prefs.Save(cmd.Context(), s, p); err != nil {
				return err
			}
			return printJSON(p)
		},
	}
	set.Flags().StringVar(&theme, "theme", "", "light, dark or system")
	set.Flags().StringVar(&filter, "filter", "", "all, one-off, weekly or monthly")
	set.Flags().StringVar(&sort, "sort", "", "nameAsc, nameDesc, dateAsc, dateDesc, priceAsc, priceDesc, newest or oldest")
	cmd.AddCommand(set)

	return cmd
}

func applyFlags(p *prefs.Preferences, theme, filter, sort string) error {
	if theme != "" {
		t, err := state.ParseTheme(theme)
		if err != nil {
			return err
		}
		p.Theme = t
	}
	if filter != "" {
		f, err := state.ParseFilterMode(filter)
		if err != nil {
			return err
		}
		p.Shopping.FilterMode = f
	}
	if sort != "" {
		o, err := state.ParseSortOption(sort)
		if err != nil {
			return err
		}
		p.Shopping.SortOption = o
	}
	return nil
}

// dispatchCmd runs one action through a development chain
func dispatchCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "dispatch <action-json>",
		Short: "Dispatch one action and print the resulting slice",
		Long: `Dispatch decodes an action envelope, runs it through a development
middleware chain seeded from the stored preferences, and prints the slice
the action belongs to. Persisted preferences are written back.`,
		Example: `  hc dispatch '{"type":"APP","action":{"type":"SET_THEME","payload":"dark"}}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := state.DecodeAction([]byte(args[0]))
			if err != nil {
				return err
			}

			level := logging.WARN
			if verbose {
				level = logging.DEBUG
			}
			logger := logging.New(os.Stderr, level)

			s, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer kv.Close(s)

			p, err := prefs.Load(cmd.Context(), s)
			if err != nil {
				return err
			}
			chain := store.NewChain(store.Development, store.Deps{Logger: logger, Storage: s})
			st := store.New(chain,
				store.WithInitialState(prefs.Apply(state.Initial(time.Now()), p)),
				store.WithLogger(logger),
			)

			result := st.Dispatch(cmd.Context(), a)
			switch a.Slice() {
			case state.SliceCalendar:
				return printJSON(result.Calendar)
			case state.SliceShopping:
				return printJSON(result.Shopping)
			}
			return printJSON(result.App)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log state before and after the action")
	return cmd
}

// configCmd manages the config file
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the config file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Storage.Passphrase = ""
			return printJSON(cfg)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := configPath
			if path == "" {
				path = config.DefaultPath(cfg.DataDir)
			}
			if _, err := os.Stat(path); err == nil {
				fmt.Printf("Config already exists at %s\n", path)
				return nil
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	})

	return cmd
}

// versionCmd shows version info
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hc %s\n", version)
		},
	}
}

// Package cli implements the stancache command line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/stancache/internal/config"
	"github.com/roach88/stancache/internal/engine"
	"github.com/roach88/stancache/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	CacheDir   string
	ConfigFile string

	// Engine allows overriding the sampling engine (for testing).
	// If nil, the CmdStan toolchain from configuration is used.
	Engine engine.Engine
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the stancache CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stancache",
		Short: "Content-addressed cache for MCMC runs",
		Long: `stancache caches Stan MCMC runs by content.

Program text is normalized (comments, blank lines, and interior whitespace
stripped) and fingerprinted; datasets are serialized with sorted keys and
fingerprinted; results are memoized by the exact argument tuple. Running the
same model on the same data twice invokes the sampler once.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.CacheDir, "cache-dir", "", "cache root directory (default ~/.stan_cache)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ~/.config/stancache/config.yaml)")

	// Add subcommands
	cmd.AddCommand(NewPathCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewHashCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// resolveConfig layers defaults, the config file, environment, and flags.
func (opts *RootOptions) resolveConfig() (config.Config, error) {
	path := opts.ConfigFile
	if path == "" {
		path = config.DefaultFilePath()
	}
	return config.Resolve(path, config.Config{CachePath: opts.CacheDir})
}

// openCache opens the content store and memo table at the configured cache
// root. The caller must invoke the returned closer.
func openCache(cfg config.Config) (*store.ContentStore, *store.Memo, func(), error) {
	cs, err := store.New(cfg.CachePath)
	if err != nil {
		return nil, nil, nil, err
	}
	memo, err := store.OpenMemo(filepath.Join(cfg.CachePath, store.MemoDBName))
	if err != nil {
		return nil, nil, nil, err
	}
	return cs, memo, func() {
		if err := memo.Close(); err != nil {
			slog.Error("error closing memo database", "error", err)
		}
	}, nil
}

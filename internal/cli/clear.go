package cli

import (
	"github.com/spf13/cobra"
)

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Delete all cached programs, datasets, and run results",
		Long: `Delete every stored program file, dataset file, and memo entry.

Clearing is not transactional: a failure partway leaves the cache partially
cleared, which is safe — later runs repopulate whatever is missing.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.resolveConfig()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to resolve configuration", err)
			}
			cs, memo, closer, err := openCache(cfg)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open cache", err)
			}
			defer closer()

			if err := cs.Clear(); err != nil {
				return WrapExitError(ExitCommandError, "failed to clear content store", err)
			}
			if err := memo.ClearAll(cmd.Context()); err != nil {
				return WrapExitError(ExitCommandError, "failed to clear memo table", err)
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Success("cache cleared: " + cfg.CachePath)
		},
	}
}

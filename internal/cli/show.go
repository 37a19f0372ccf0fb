package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/stancache/internal/model"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <model-file>",
		Short: "Print a model in canonical form with line numbers",
		Long: `Normalize a model file and print the canonical text the cache
would fingerprint, with line numbers and brace-depth indentation.

The rendering is display-only; the canonical text itself is what gets hashed
and stored.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read model file", err)
			}
			canonical := model.Normalize(string(text))
			if canonical == "" {
				return NewExitError(ExitCommandError, fmt.Sprintf("%s normalizes to an empty program", args[0]))
			}
			fmt.Fprint(cmd.OutOrStdout(), model.Format(canonical))
			return nil
		},
	}
}

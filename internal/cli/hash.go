package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/stancache/internal/fingerprint"
	"github.com/roach88/stancache/internal/model"
)

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <model-file>",
		Short: "Print the cache fingerprint of a model",
		Long: `Normalize a model file and print its fingerprint: the digest the
cache stores and keys it under. Cosmetic variants of the same model print
the same fingerprint.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read model file", err)
			}
			fp, err := fingerprint.Text(model.Normalize(string(text)))
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to fingerprint model", err)
			}
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Success(fp)
		},
	}
}

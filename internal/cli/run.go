package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/stancache/internal/chains"
	"github.com/roach88/stancache/internal/engine"
	"github.com/roach88/stancache/internal/runner"
)

// RunCmdOptions holds flags for the run command.
type RunCmdOptions struct {
	*RootOptions
	CmdStanHome string
	DropStuck   bool
	DiscardData bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunCmdOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <runfile.cue>",
		Short: "Run a model through the cache",
		Long: `Run the sampler for the model, data, and options described by a
CUE runfile, reusing a cached result when the exact run has executed before.

Example runfile:

  model: "rosenbrock.stan"
  data: { N: 2 }
  options: { chains: 4, iter_sampling: 1000, seed: 42 }

Example:
  stancache run rosenbrock.cue
  stancache run rosenbrock.cue --drop-stuck --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModel(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.CmdStanHome, "cmdstan", "", "CmdStan installation directory")
	cmd.Flags().BoolVar(&opts.DropStuck, "drop-stuck", false, "drop chains that never reached the typical log-density range")
	cmd.Flags().BoolVar(&opts.DiscardData, "discard-data", false, "remove the stored dataset copy after the run")

	return cmd
}

func runModel(opts *RunCmdOptions, runfilePath string, cmd *cobra.Command) error {
	spec, err := LoadRunSpec(runfilePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load runfile", err)
	}
	programText, err := os.ReadFile(spec.Model)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read model file", err)
	}

	cfg, err := opts.resolveConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve configuration", err)
	}
	if opts.CmdStanHome != "" {
		cfg.CmdStanHome = opts.CmdStanHome
	}

	cs, memo, closer, err := openCache(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open cache", err)
	}
	defer closer()

	eng := opts.Engine
	if eng == nil {
		eng = &engine.CmdStan{Home: cfg.CmdStanHome}
	}

	r := runner.New(cs, memo, eng, runner.Config{
		Verbose:     opts.Verbose,
		DiscardData: opts.DiscardData,
		Out:         cmd.OutOrStdout(),
	})

	result, err := r.Run(cmd.Context(), string(programText), spec.Data, engine.Options(spec.Options))
	if err != nil {
		return WrapExitError(ExitFailure, "run failed", err)
	}

	variables := result.StanVariables
	if opts.DropStuck {
		variables, err = chains.RemoveStuckChains(result.StanVariables, result.MethodVariables, nil)
		if err != nil {
			return WrapExitError(ExitFailure, "chain filter failed", err)
		}
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return f.Success(variables)
	}
	return f.Success(describeResult(variables))
}

// describeResult renders a one-line-per-variable overview of the draws.
func describeResult(variables map[string]*engine.Tensor) string {
	names := make([]string, 0, len(variables))
	for name := range variables {
		names = append(names, name)
	}
	sort.Strings(names)

	out := fmt.Sprintf("%d variable(s) sampled\n", len(names))
	for _, name := range names {
		t := variables[name]
		out += fmt.Sprintf("  %-10s: %d samples x %d value(s)\n", name, t.NumSamples(), t.SampleSize())
	}
	return out
}

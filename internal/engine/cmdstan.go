package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Option keys interpreted by the CmdStan adapter. Anything else in Options
// is forwarded verbatim as a sampler argument.
const (
	optChains       = "chains"
	optIterSampling = "iter_sampling"
	optIterWarmup   = "iter_warmup"
	optSeed         = "seed"
	optAdaptDelta   = "adapt_delta"
	optShowProgress = "show_progress"
	optShowConsole  = "show_console"
)

const (
	defaultChains       = 4
	defaultIterSampling = 1000
	defaultIterWarmup   = 1000
)

// CmdStan runs models through a CmdStan installation: compilation via its
// make-based build system, sampling via the compiled model binary, post-run
// reporting via the bundled stansummary and diagnose tools.
type CmdStan struct {
	// Home is the CmdStan checkout directory containing the makefile and
	// bin/ tools.
	Home string
	// Log receives toolchain progress. Nil means slog.Default().
	Log *slog.Logger
}

func (e *CmdStan) logger() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

type cmdstanModel struct {
	stanPath string
	exePath  string
}

func (m *cmdstanModel) Code() (string, error) {
	data, err := os.ReadFile(m.stanPath)
	if err != nil {
		return "", fmt.Errorf("read model source: %w", err)
	}
	return string(data), nil
}

func (m *cmdstanModel) Path() string { return m.stanPath }

// Compile builds the model executable for programPath. The build is
// incremental: make skips the work when the executable is newer than the
// source, so recompiling a cached program is cheap.
func (e *CmdStan) Compile(ctx context.Context, programPath string) (CompiledModel, error) {
	if e.Home == "" {
		return nil, fmt.Errorf("cmdstan: home directory not configured")
	}
	abs, err := filepath.Abs(programPath)
	if err != nil {
		return nil, fmt.Errorf("cmdstan: %w", err)
	}
	exePath := strings.TrimSuffix(abs, filepath.Ext(abs))

	cmd := exec.CommandContext(ctx, "make", exePath)
	cmd.Dir = e.Home
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("cmdstan: compile %s: %w\n%s", programPath, err, out)
	}
	e.logger().Debug("model compiled", "source", abs, "exe", exePath)
	return &cmdstanModel{stanPath: abs, exePath: exePath}, nil
}

// Sample runs the compiled model against dataPath. Chains execute
// sequentially; each writes its draws to a scratch CSV that is parsed and
// removed before Sample returns.
func (e *CmdStan) Sample(ctx context.Context, model CompiledModel, dataPath string, opts Options) (*RunResult, error) {
	cm, ok := model.(*cmdstanModel)
	if !ok {
		return nil, fmt.Errorf("cmdstan: model was not compiled by this engine")
	}

	numChains, err := intOption(opts, optChains, defaultChains)
	if err != nil {
		return nil, err
	}
	if numChains < 1 {
		return nil, fmt.Errorf("cmdstan: chains must be positive, got %d", numChains)
	}

	scratch, err := os.MkdirTemp("", "stancache-run-")
	if err != nil {
		return nil, fmt.Errorf("cmdstan: %w", err)
	}
	defer os.RemoveAll(scratch)

	csvPaths := make([]string, numChains)
	for chain := 1; chain <= numChains; chain++ {
		csvPath := filepath.Join(scratch, fmt.Sprintf("chain_%d.csv", chain))
		csvPaths[chain-1] = csvPath

		args, err := sampleArgs(opts, chain, dataPath, csvPath)
		if err != nil {
			return nil, err
		}
		cmd := exec.CommandContext(ctx, cm.exePath, args...)
		var consoleOut bytes.Buffer
		cmd.Stdout = &consoleOut
		cmd.Stderr = &consoleOut
		e.logger().Debug("sampling chain", "chain", chain, "exe", cm.exePath)
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("cmdstan: chain %d failed: %w\n%s", chain, err, consoleOut.String())
		}
	}

	chains := make([]*chainDraws, numChains)
	for i, p := range csvPaths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("cmdstan: %w", err)
		}
		draws, err := parseStanCSV(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("cmdstan: chain %d output: %w", i+1, err)
		}
		chains[i] = draws
	}

	result, err := combineChains(chains)
	if err != nil {
		return nil, fmt.Errorf("cmdstan: %w", err)
	}

	// Post-run reports are best effort: a missing helper binary degrades
	// verbose output but never fails the run.
	result.SummaryText = e.runReport(ctx, "stansummary", csvPaths)
	result.DiagnoseText = e.runReport(ctx, "diagnose", csvPaths)
	return result, nil
}

func (e *CmdStan) runReport(ctx context.Context, tool string, csvPaths []string) string {
	bin := filepath.Join(e.Home, "bin", tool)
	cmd := exec.CommandContext(ctx, bin, csvPaths...)
	out, err := cmd.Output()
	if err != nil {
		e.logger().Warn("report tool failed", "tool", tool, "error", err)
		return ""
	}
	return string(out)
}

// sampleArgs builds the CmdStan argument list for one chain. Interpreted
// keys map onto the sampler's argument tree; unrecognized keys append as
// literal key=value sampler arguments, keeping the option surface open.
func sampleArgs(opts Options, chain int, dataPath, csvPath string) ([]string, error) {
	iterSampling, err := intOption(opts, optIterSampling, defaultIterSampling)
	if err != nil {
		return nil, err
	}
	iterWarmup, err := intOption(opts, optIterWarmup, defaultIterWarmup)
	if err != nil {
		return nil, err
	}

	args := []string{
		"sample",
		fmt.Sprintf("num_samples=%d", iterSampling),
		fmt.Sprintf("num_warmup=%d", iterWarmup),
	}
	if delta, ok := opts[optAdaptDelta]; ok {
		args = append(args, "adapt", fmt.Sprintf("delta=%v", delta))
	}

	// Pass-through options, sorted for a stable command line.
	extras := make([]string, 0, len(opts))
	for k := range opts {
		switch k {
		case optChains, optIterSampling, optIterWarmup, optSeed, optAdaptDelta,
			optShowProgress, optShowConsole:
			continue
		}
		extras = append(extras, k)
	}
	sort.Strings(extras)
	for _, k := range extras {
		args = append(args, fmt.Sprintf("%s=%v", k, opts[k]))
	}

	args = append(args, "id="+fmt.Sprint(chain))
	if seed, ok := opts[optSeed]; ok {
		args = append(args, "random", fmt.Sprintf("seed=%v", seed))
	}
	args = append(args,
		"data", "file="+dataPath,
		"output", "file="+csvPath,
	)
	return args, nil
}

// intOption reads an integer option that may arrive as any numeric type
// (runfiles decode numbers as int64 or float64 depending on source).
func intOption(opts Options, key string, def int) (int, error) {
	v, ok := opts[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("option %s: %v is not an integer", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("option %s: unsupported type %T", key, v)
	}
}

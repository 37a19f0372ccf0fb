package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stancache/internal/engine"
	"github.com/roach88/stancache/internal/store"
)

const rosenbrock = `
data {
  int N;
}
parameters {
  real<lower=-10.0, upper=10.0> x[N];
}
model {
  for (i in 1:N-1) {
     target += -2 * (100 * square(x[i+1] - square(x[i])) + square(1 - x[i]));
  }
}
`

const rosenbrockCommented = `
data {
  // dimensionality:
  int N;
}
parameters {
  real<lower=-10.0, upper=10.0> x[N];
}
model {
  for (i in 1:N-1) {
     target += -2 * (100 * square(x[i+1] - square(x[i])) + square(1 - x[i]));
  }
}
`

type fakeModel struct {
	path string
	code string
}

func (m *fakeModel) Code() (string, error) { return m.code, nil }
func (m *fakeModel) Path() string          { return m.path }

// fakeEngine stands in for the external toolchain. It reads the stored
// program back like the real engine would, so integrity checking is
// exercised for real.
type fakeEngine struct {
	compileCalls int
	sampleCalls  int
	tamper       bool
	sampleErr    error
}

func (e *fakeEngine) Compile(_ context.Context, programPath string) (engine.CompiledModel, error) {
	e.compileCalls++
	data, err := os.ReadFile(programPath)
	if err != nil {
		return nil, err
	}
	code := string(data)
	if e.tamper {
		code += "\ntampered"
	}
	return &fakeModel{path: programPath, code: code}, nil
}

func (e *fakeEngine) Sample(_ context.Context, _ engine.CompiledModel, _ string, _ engine.Options) (*engine.RunResult, error) {
	e.sampleCalls++
	if e.sampleErr != nil {
		return nil, e.sampleErr
	}
	return &engine.RunResult{
		StanVariables: map[string]*engine.Tensor{
			"x": {Shape: []int{4, 2}, Data: []float64{1, 2, 3, 4, 5, 6, 7, 8}},
		},
		MethodVariables: map[string]*engine.Matrix{
			"lp__": {Rows: 2, Cols: 2, Data: []float64{-1, -2, -3, -4}},
		},
		SummaryText:  "mean sd\n",
		DiagnoseText: "no problems detected\n",
	}, nil
}

type testEnv struct {
	runner *Runner
	store  *store.ContentStore
	memo   *store.Memo
	eng    *fakeEngine
	out    *bytes.Buffer
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	root := t.TempDir()
	cs, err := store.New(root)
	require.NoError(t, err)
	memo, err := store.OpenMemo(filepath.Join(root, store.MemoDBName))
	require.NoError(t, err)
	t.Cleanup(func() { memo.Close() })

	eng := &fakeEngine{}
	out := &bytes.Buffer{}
	cfg.Out = out
	return &testEnv{
		runner: New(cs, memo, eng, cfg),
		store:  cs,
		memo:   memo,
		eng:    eng,
		out:    out,
	}
}

func (env *testEnv) counts(t *testing.T) (programs, datasets int) {
	t.Helper()
	p, err := env.store.Count(store.KindProgram)
	require.NoError(t, err)
	d, err := env.store.Count(store.KindDataset)
	require.NoError(t, err)
	return p, d
}

func TestRun_CachePopulation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})

	first, err := env.runner.Run(ctx, rosenbrock, map[string]any{"N": 2}, nil)
	require.NoError(t, err)
	second, err := env.runner.Run(ctx, rosenbrock, map[string]any{"N": 2}, nil)
	require.NoError(t, err)

	programs, datasets := env.counts(t)
	assert.Equal(t, 1, programs)
	assert.Equal(t, 1, datasets)
	assert.Equal(t, 1, env.eng.sampleCalls, "second run must not re-invoke the engine")
	assert.Equal(t, first, second)
}

func TestRun_CosmeticInvariance(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})

	_, err := env.runner.Run(ctx, rosenbrock, map[string]any{"N": 2}, nil)
	require.NoError(t, err)
	_, err = env.runner.Run(ctx, rosenbrockCommented, map[string]any{"N": 2}, nil)
	require.NoError(t, err)

	programs, datasets := env.counts(t)
	assert.Equal(t, 1, programs, "comment-only variants must share one stored program")
	assert.Equal(t, 1, datasets)
	assert.Equal(t, 1, env.eng.sampleCalls)
}

func TestRun_DatasetDiscrimination(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})

	_, err := env.runner.Run(ctx, rosenbrock, map[string]any{"N": 2}, nil)
	require.NoError(t, err)
	_, err = env.runner.Run(ctx, rosenbrockCommented, map[string]any{"N": 3}, nil)
	require.NoError(t, err)

	programs, datasets := env.counts(t)
	assert.Equal(t, 1, programs)
	assert.Equal(t, 2, datasets, "distinct data must store distinct dataset files")
	assert.Equal(t, 2, env.eng.sampleCalls)
}

func TestRun_VerbosityExcludedFromKey(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})

	_, err := env.runner.Run(ctx, rosenbrock, map[string]any{"N": 2}, engine.Options{"chains": 2})
	require.NoError(t, err)
	_, err = env.runner.Run(ctx, rosenbrock, map[string]any{"N": 2},
		engine.Options{"chains": 2, "show_progress": true, "show_console": true})
	require.NoError(t, err)

	assert.Equal(t, 1, env.eng.sampleCalls, "display-only options must hit the same memo entry")
}

func TestRun_OptionChangeMisses(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})

	_, err := env.runner.Run(ctx, rosenbrock, map[string]any{"N": 2}, engine.Options{"chains": 2})
	require.NoError(t, err)
	_, err = env.runner.Run(ctx, rosenbrock, map[string]any{"N": 2}, engine.Options{"chains": 4})
	require.NoError(t, err)

	assert.Equal(t, 2, env.eng.sampleCalls)
}

func TestRun_IntegrityViolationIsFatal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})
	env.eng.tamper = true

	_, err := env.runner.Run(ctx, rosenbrock, map[string]any{"N": 2}, nil)
	require.Error(t, err)

	var integrityErr *IntegrityError
	require.ErrorAs(t, err, &integrityErr)
	assert.NotEmpty(t, integrityErr.Fingerprint)
	assert.Equal(t, 0, env.eng.sampleCalls, "a corrupted program must never be sampled")

	// Nothing was memoized.
	n, err := env.memo.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRun_EngineErrorPropagates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})
	sentinel := errors.New("sampling diverged")
	env.eng.sampleErr = sentinel

	_, err := env.runner.Run(ctx, rosenbrock, map[string]any{"N": 2}, nil)
	require.ErrorIs(t, err, sentinel)

	n, err := env.memo.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "failed runs must not leave memo entries")
}

func TestRun_MemoSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})

	first, err := env.runner.Run(ctx, rosenbrock, map[string]any{"N": 2}, nil)
	require.NoError(t, err)

	// A fresh runner over the same cache root simulates a new process.
	eng2 := &fakeEngine{}
	runner2 := New(env.store, env.memo, eng2, Config{Out: &bytes.Buffer{}})
	second, err := runner2.Run(ctx, rosenbrock, map[string]any{"N": 2}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, eng2.sampleCalls)
	assert.Equal(t, first, second)
}

func TestRun_DiscardData(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{DiscardData: true})

	_, err := env.runner.Run(ctx, rosenbrock, map[string]any{"N": 2}, nil)
	require.NoError(t, err)

	_, datasets := env.counts(t)
	assert.Equal(t, 0, datasets, "discard mode must not retain the stored dataset")

	// The memo entry survives: the next run is still a hit.
	_, err = env.runner.Run(ctx, rosenbrock, map[string]any{"N": 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, env.eng.sampleCalls)
}

func TestRun_VerboseOutput(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{Verbose: true})

	_, err := env.runner.Run(ctx, rosenbrock, map[string]any{"N": 2}, nil)
	require.NoError(t, err)

	report := env.out.String()
	assert.Contains(t, report, "Data\n----")
	assert.Contains(t, report, "N         : 2")
	assert.Contains(t, report, "Slimmed Code")
	assert.Contains(t, report, "Summary")
	assert.Contains(t, report, "Diagnostics")

	// A hit replays the data summary but compiles and samples nothing, so
	// no program listing or post-run report appears.
	env.out.Reset()
	_, err = env.runner.Run(ctx, rosenbrock, map[string]any{"N": 2}, nil)
	require.NoError(t, err)
	assert.Contains(t, env.out.String(), "Data\n----")
	assert.NotContains(t, env.out.String(), "Slimmed Code")
}

func TestRun_ClearCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})

	_, err := env.runner.Run(ctx, rosenbrock, map[string]any{"N": 2}, nil)
	require.NoError(t, err)

	require.NoError(t, env.runner.ClearCache(ctx))

	programs, datasets := env.counts(t)
	assert.Equal(t, 0, programs)
	assert.Equal(t, 0, datasets)
	n, err := env.memo.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Cleared cache repopulates on the next run.
	_, err = env.runner.Run(ctx, rosenbrock, map[string]any{"N": 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, env.eng.sampleCalls)
}

// Package runner wraps the sampling engine with an argument-content-
// addressed memo table.
//
// A run is keyed by (canonical program text, dataset fingerprint, run
// options minus display-only keys). The first invocation of a key executes
// the engine and persists the result; every later invocation of the same key
// returns the persisted result without touching the engine. Entries survive
// process restarts and are removable only by a bulk cache clear.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/roach88/stancache/internal/engine"
	"github.com/roach88/stancache/internal/fingerprint"
	"github.com/roach88/stancache/internal/model"
	"github.com/roach88/stancache/internal/standata"
	"github.com/roach88/stancache/internal/store"
)

// Config holds runner behavior switches.
type Config struct {
	// Verbose enables the human-readable progress report: program listing,
	// input data summary, and post-run engine reports. Observational only;
	// never affects caching or returned values.
	Verbose bool
	// DiscardData removes the stored dataset copy once the run completes.
	// The memo entry survives either way; only the dataset file's lifetime
	// changes.
	DiscardData bool
	// Out receives verbose reports. Nil means os.Stdout.
	Out io.Writer
	// Log receives diagnostics. Nil means slog.Default().
	Log *slog.Logger
}

// Runner is the memoized executor.
type Runner struct {
	store *store.ContentStore
	memo  *store.Memo
	eng   engine.Engine
	cfg   Config
	out   io.Writer
	log   *slog.Logger
}

// New creates a Runner over an opened content store, memo table, and engine.
func New(cs *store.ContentStore, memo *store.Memo, eng engine.Engine, cfg Config) *Runner {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Runner{store: cs, memo: memo, eng: eng, cfg: cfg, out: out, log: log}
}

// Run executes (or replays) one sampling run for the given program text,
// data mapping, and options.
//
// The program text is canonicalized before anything else, so cosmetic
// variants of the same model share one cache identity. The data mapping is
// serialized key-sorted to a transient file, fingerprinted, and copied into
// the content store; the transient file is always removed before Run
// returns, and a failure to remove it is a warning, not an error.
func (r *Runner) Run(ctx context.Context, programText string, data map[string]any, opts engine.Options) (*engine.RunResult, error) {
	canonical := model.Normalize(programText)

	if r.cfg.Verbose {
		fmt.Fprintf(r.out, "\nData\n----\n")
		if err := standata.Summary(r.out, data); err != nil {
			return nil, err
		}
	}

	transient := filepath.Join(os.TempDir(), "stancache-"+uuid.NewString()+".json")
	if err := standata.WriteFile(transient, data); err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(transient); err != nil && !os.IsNotExist(err) {
			r.log.Warn("could not remove transient dataset", "path", transient, "error", err)
		}
	}()

	dataFP, err := fingerprint.File(transient)
	if err != nil {
		return nil, err
	}
	dataPath, err := r.store.EnsureFrom(store.KindDataset, dataFP, transient)
	if err != nil {
		return nil, err
	}
	if r.cfg.DiscardData {
		defer func() {
			if err := r.store.Remove(store.KindDataset, dataFP); err != nil {
				r.log.Warn("could not discard stored dataset", "fingerprint", dataFP, "error", err)
			}
		}()
	}

	key, err := MemoKey(canonical, dataFP, opts)
	if err != nil {
		return nil, err
	}

	blob, hit, err := r.memo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if hit {
		var result engine.RunResult
		if err := json.Unmarshal(blob, &result); err != nil {
			return nil, fmt.Errorf("runner: decode memo entry %s: %w", key, err)
		}
		r.log.Debug("memo hit", "key", key)
		return &result, nil
	}
	r.log.Debug("memo miss", "key", key)

	result, err := r.invoke(ctx, canonical, dataPath, opts)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("runner: encode result: %w", err)
	}
	if err := r.memo.Put(ctx, key, encoded); err != nil {
		return nil, err
	}
	return result, nil
}

// invoke performs a memo miss: store the program, compile it, verify the
// engine loaded exactly the requested text, and sample.
func (r *Runner) invoke(ctx context.Context, canonical, dataPath string, opts engine.Options) (*engine.RunResult, error) {
	if r.cfg.Verbose {
		fmt.Fprintf(r.out, "\nSlimmed Code\n------------\n%s", model.Format(canonical))
	}

	fp, err := fingerprint.Text(canonical)
	if err != nil {
		return nil, err
	}
	programPath, err := r.store.Ensure(store.KindProgram, fp, []byte(canonical))
	if err != nil {
		return nil, err
	}

	compiled, err := r.eng.Compile(ctx, programPath)
	if err != nil {
		return nil, err
	}
	code, err := compiled.Code()
	if err != nil {
		return nil, err
	}
	if code != canonical {
		return nil, &IntegrityError{Path: programPath, Fingerprint: fp}
	}

	// Engine failures propagate unchanged; no retry.
	result, err := r.eng.Sample(ctx, compiled, dataPath, opts)
	if err != nil {
		return nil, err
	}

	if r.cfg.Verbose {
		if result.SummaryText != "" {
			fmt.Fprintf(r.out, "\nSummary\n-------\n%s", result.SummaryText)
		}
		if result.DiagnoseText != "" {
			fmt.Fprintf(r.out, "\nDiagnostics\n-----------\n%s", result.DiagnoseText)
		}
	}
	return result, nil
}

// ClearCache removes every stored program and dataset file and every memo
// entry. A failure partway leaves the cache partially cleared; later runs
// simply repopulate it.
func (r *Runner) ClearCache(ctx context.Context) error {
	if err := r.store.Clear(); err != nil {
		return err
	}
	return r.memo.ClearAll(ctx)
}

// Package chains post-processes sampler output: it detects parallel chains
// that never reached the typical range of the log-density diagnostic and
// drops them wholesale before downstream analysis.
package chains

import (
	"fmt"
	"log/slog"

	"github.com/roach88/stancache/internal/engine"
)

// DiagnosticKey is the method variable the filter judges chain health by.
const DiagnosticKey = "lp__"

// RemoveStuckChains drops every chain whose log-density never enters the
// range achieved by the best chain, and returns the model variables
// restricted to the surviving chains' samples.
//
// A chain is kept when its per-chain maximum strictly exceeds the threshold,
// where the threshold is the worst iteration of the chain with the globally
// best maximum. The top chain itself is always kept. Discarded chains are
// reported (1-based) through the logger; discarding is never silent because
// it changes the statistical conclusions drawn from the result.
//
// When every chain survives, the input variables are returned unmodified and
// nothing is logged.
func RemoveStuckChains(stanVars map[string]*engine.Tensor, methodVars map[string]*engine.Matrix, log *slog.Logger) (map[string]*engine.Tensor, error) {
	if log == nil {
		log = slog.Default()
	}
	lp, ok := methodVars[DiagnosticKey]
	if !ok {
		return nil, fmt.Errorf("chains: diagnostic %s missing from method variables", DiagnosticKey)
	}
	if lp.Rows == 0 || lp.Cols == 0 {
		return nil, fmt.Errorf("chains: diagnostic %s has degenerate shape (%d, %d)", DiagnosticKey, lp.Rows, lp.Cols)
	}

	maxes := make([]float64, lp.Cols)
	for j := 0; j < lp.Cols; j++ {
		m := lp.At(0, j)
		for i := 1; i < lp.Rows; i++ {
			if v := lp.At(i, j); v > m {
				m = v
			}
		}
		maxes[j] = m
	}

	top := 0
	for j := 1; j < lp.Cols; j++ {
		if maxes[j] > maxes[top] {
			top = j
		}
	}

	// Threshold: the top chain's worst iteration.
	threshold := lp.At(0, top)
	for i := 1; i < lp.Rows; i++ {
		if v := lp.At(i, top); v < threshold {
			threshold = v
		}
	}

	keep := make([]bool, lp.Cols)
	var discarded []int
	for j := 0; j < lp.Cols; j++ {
		keep[j] = maxes[j] > threshold || j == top
		if !keep[j] {
			discarded = append(discarded, j+1)
		}
	}

	if len(discarded) == 0 {
		return stanVars, nil
	}
	log.Warn("removing stuck chains", "chains", discarded, "threshold", threshold)

	// Flat mask over the chain-major sample axis.
	mask := make([]bool, lp.Rows*lp.Cols)
	keptSamples := 0
	for j := 0; j < lp.Cols; j++ {
		for i := 0; i < lp.Rows; i++ {
			mask[j*lp.Rows+i] = keep[j]
			if keep[j] {
				keptSamples++
			}
		}
	}

	filtered := make(map[string]*engine.Tensor, len(stanVars))
	for name, t := range stanVars {
		if t.NumSamples() != len(mask) {
			return nil, fmt.Errorf("chains: variable %s has %d samples, diagnostic implies %d", name, t.NumSamples(), len(mask))
		}
		size := t.SampleSize()
		shape := append([]int{keptSamples}, t.Shape[1:]...)
		out := &engine.Tensor{Shape: shape, Data: make([]float64, 0, keptSamples*size)}
		for s := 0; s < len(mask); s++ {
			if mask[s] {
				out.Data = append(out.Data, t.Data[s*size:(s+1)*size]...)
			}
		}
		filtered[name] = out
	}
	return filtered, nil
}

package engine

import "fmt"

// Tensor is a draw-major array of one model variable. Shape[0] is the
// flattened sample axis (all chains concatenated chain-major); the remaining
// dimensions are the variable's own shape.
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// NumSamples returns the length of the leading sample axis.
func (t *Tensor) NumSamples() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// SampleSize returns the number of values per sample (product of the
// non-sample dimensions).
func (t *Tensor) SampleSize() int {
	n := 1
	for _, d := range t.Shape[1:] {
		n *= d
	}
	return n
}

// Matrix holds one method diagnostic series with shape (iteration, chain).
type Matrix struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"` // row-major
}

// At returns the value at iteration i of chain j.
func (m *Matrix) At(i, j int) float64 {
	return m.Data[i*m.Cols+j]
}

// Column copies out all iterations of chain j.
func (m *Matrix) Column(j int) []float64 {
	out := make([]float64, m.Rows)
	for i := 0; i < m.Rows; i++ {
		out[i] = m.At(i, j)
	}
	return out
}

// Options are free-form named run options forwarded to the sampler. This
// layer interprets only a small set of well-known keys; everything else
// passes through to the engine untouched.
type Options map[string]any

// RunResult pairs the model-declared variable draws with the sampler's
// method diagnostics for one invocation, plus the engine's post-run report
// text for verbose display.
type RunResult struct {
	StanVariables   map[string]*Tensor `json:"stan_variables"`
	MethodVariables map[string]*Matrix `json:"method_variables"`
	SummaryText     string             `json:"summary_text,omitempty"`
	DiagnoseText    string             `json:"diagnose_text,omitempty"`
}

// Validate checks internal consistency of a result: every tensor's data
// length must agree with its shape, and every matrix must be rectangular.
func (r *RunResult) Validate() error {
	for name, t := range r.StanVariables {
		want := t.NumSamples() * t.SampleSize()
		if len(t.Data) != want {
			return fmt.Errorf("variable %s: %d values, shape wants %d", name, len(t.Data), want)
		}
	}
	for name, m := range r.MethodVariables {
		if len(m.Data) != m.Rows*m.Cols {
			return fmt.Errorf("diagnostic %s: %d values, %dx%d wants %d", name, len(m.Data), m.Rows, m.Cols, m.Rows*m.Cols)
		}
	}
	return nil
}

// Package engine abstracts the external sampling toolchain behind a
// synchronous capability interface.
//
// The cache layer above never shells out directly: it compiles and samples
// through Engine, which lets the test suite substitute a double and keeps
// the memoization logic decoupled from the real toolchain's cost and
// non-determinism. The real implementation is CmdStan.
package engine

import "context"

// CompiledModel is an engine-produced handle to a compiled program. Its
// source must be readable back so callers can verify the engine loaded
// exactly the program they asked for.
type CompiledModel interface {
	// Code returns the exact program text the model was compiled from.
	Code() (string, error)
	// Path returns the program source path the model was compiled from.
	Path() string
}

// Engine compiles model programs and runs the sampler. Both operations block
// for the full duration of the external toolchain run; cancellation happens
// through ctx terminating the underlying process.
type Engine interface {
	Compile(ctx context.Context, programPath string) (CompiledModel, error)
	Sample(ctx context.Context, model CompiledModel, dataPath string, opts Options) (*RunResult, error)
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// runSpecSchema constrains a runfile. Data values are unconstrained beyond
// being present; the well-known sampler options get basic sanity bounds and
// everything else passes through untouched.
const runSpecSchema = `
model!: string
data!: {...}
options?: {
	chains?:        int & >0
	iter_sampling?: int & >0
	iter_warmup?:   int & >=0
	seed?:          int
	adapt_delta?:   number & >0 & <1
	show_progress?: bool
	...
}
`

// RunSpec describes one sampling run: the model source file, the data
// mapping, and the sampler options.
type RunSpec struct {
	Model   string         `json:"model"`
	Data    map[string]any `json:"data"`
	Options map[string]any `json:"options"`
}

// LoadRunSpec loads and validates a CUE runfile. The model path resolves
// relative to the runfile's directory.
func LoadRunSpec(path string) (*RunSpec, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runfile: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(runSpecSchema)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("runfile: internal schema: %w", err)
	}

	v := ctx.CompileBytes(source, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("runfile: %s", cueerrors.Details(err, nil))
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("runfile: %s", cueerrors.Details(err, nil))
	}

	var spec RunSpec
	if err := unified.Decode(&spec); err != nil {
		return nil, fmt.Errorf("runfile: decode: %w", err)
	}
	if len(spec.Data) == 0 {
		return nil, fmt.Errorf("runfile: data must declare at least one variable")
	}
	if !filepath.IsAbs(spec.Model) {
		spec.Model = filepath.Join(filepath.Dir(path), spec.Model)
	}
	return &spec, nil
}

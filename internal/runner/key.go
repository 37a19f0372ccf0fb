package runner

import (
	"fmt"

	"github.com/roach88/stancache/internal/engine"
	"github.com/roach88/stancache/internal/fingerprint"
	"github.com/roach88/stancache/internal/standata"
)

// ignoredOptionKeys never participate in the memo key. They only shape
// console output, so two runs differing in nothing else must resolve to the
// same memo entry.
var ignoredOptionKeys = map[string]bool{
	"show_progress": true,
	"show_console":  true,
}

// MemoKey fingerprints the exact argument tuple of a run: the canonical
// program text, the dataset fingerprint, and every run option except the
// ignored display-only keys.
//
// The dataset participates by fingerprint rather than by stored path, so a
// relocated cache root keeps its memo entries valid.
func MemoKey(canonicalText, datasetFingerprint string, opts engine.Options) (string, error) {
	kept := make(map[string]any, len(opts))
	for k, v := range opts {
		if ignoredOptionKeys[k] {
			continue
		}
		kept[k] = v
	}
	blob, err := standata.Marshal(map[string]any{
		"program": canonicalText,
		"dataset": datasetFingerprint,
		"options": kept,
	})
	if err != nil {
		return "", fmt.Errorf("memo key: %w", err)
	}
	return fingerprint.Text(string(blob))
}

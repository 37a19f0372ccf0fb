package standata

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
)

// Summary writes a human-readable, per-variable description of a data
// mapping: scalars verbatim, sequences by shape, non-empty numeric sequences
// with their min and max. Keys print in sorted order so output is
// deterministic.
//
// Summary is observational only; it never affects serialization or caching.
func Summary(w io.Writer, data map[string]any) error {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := data[k]
		shape := shapeOf(v)
		switch {
		case len(shape) == 0:
			fmt.Fprintf(w, "  %-10s: %v\n", k, v)
		case shape[0] == 0:
			fmt.Fprintf(w, "  %-10s: shape %s\n", k, shapeString(shape))
		default:
			flat := flatten(v)
			if len(flat) == 0 {
				// Non-numeric sequence (e.g. strings): shape only.
				fmt.Fprintf(w, "  %-10s: shape %s\n", k, shapeString(shape))
				continue
			}
			lo, hi := flat[0], flat[0]
			for _, x := range flat[1:] {
				if x < lo {
					lo = x
				}
				if x > hi {
					hi = x
				}
			}
			fmt.Fprintf(w, "  %-10s: shape %s [%v ... %v]\n", k, shapeString(shape), lo, hi)
		}
	}
	return nil
}

// shapeOf reports the nesting shape of a value: () for scalars, (n,) for a
// sequence, (n, m) for a sequence of sequences, and so on. The first element
// determines inner dimensions, matching the rectangular arrays the engine
// accepts.
func shapeOf(v any) []int {
	var shape []int
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		shape = append(shape, rv.Len())
		if rv.Len() == 0 {
			break
		}
		rv = rv.Index(0)
		if rv.Kind() == reflect.Interface {
			rv = rv.Elem()
		}
	}
	return shape
}

func shapeString(shape []int) string {
	parts := make([]string, len(shape))
	for i, n := range shape {
		parts[i] = fmt.Sprintf("%d", n)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// flatten collects every numeric leaf of a nested sequence as float64.
func flatten(v any) []float64 {
	var out []float64
	var walk func(rv reflect.Value)
	walk = func(rv reflect.Value) {
		if rv.Kind() == reflect.Interface {
			rv = rv.Elem()
		}
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				walk(rv.Index(i))
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out = append(out, float64(rv.Int()))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out = append(out, float64(rv.Uint()))
		case reflect.Float32, reflect.Float64:
			out = append(out, rv.Float())
		}
	}
	walk(reflect.ValueOf(v))
	return out
}

package standata

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stancache/internal/fingerprint"
)

func TestMarshal_SortsKeys(t *testing.T) {
	out, err := Marshal(map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(out))
}

func TestMarshal_KeyOrderInvariance(t *testing.T) {
	// Two logically identical mappings must serialize byte-identically and
	// therefore fingerprint identically.
	first := map[string]any{}
	first["a"] = 1
	first["b"] = 2
	second := map[string]any{}
	second["b"] = 2
	second["a"] = 1

	dir := t.TempDir()
	p1 := filepath.Join(dir, "first.json")
	p2 := filepath.Join(dir, "second.json")
	require.NoError(t, WriteFile(p1, first))
	require.NoError(t, WriteFile(p2, second))

	fp1, err := fingerprint.File(p1)
	require.NoError(t, err)
	fp2, err := fingerprint.File(p2)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
}

func TestMarshal_Values(t *testing.T) {
	cases := []struct {
		name string
		in   map[string]any
		want string
	}{
		{"ints", map[string]any{"n": 3}, `{"n":3}`},
		{"floats", map[string]any{"x": 0.5}, `{"x":0.5}`},
		{"float integral", map[string]any{"x": 2.0}, `{"x":2}`},
		{"bool", map[string]any{"flag": true}, `{"flag":true}`},
		{"string", map[string]any{"s": "abc"}, `{"s":"abc"}`},
		{"slice", map[string]any{"y": []float64{1, 2.5}}, `{"y":[1,2.5]}`},
		{"nested slice", map[string]any{"m": [][]int{{1, 2}, {3, 4}}}, `{"m":[[1,2],[3,4]]}`},
		{"empty slice", map[string]any{"e": []float64{}}, `{"e":[]}`},
		{"mixed any slice", map[string]any{"v": []any{1, 2.5}}, `{"v":[1,2.5]}`},
		{"nested object", map[string]any{"o": map[string]any{"b": 1, "a": 2}}, `{"o":{"a":2,"b":1}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Marshal(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(out))
		})
	}
}

func TestMarshal_ASCIIOnlyOutput(t *testing.T) {
	out, err := Marshal(map[string]any{"label": "température"})
	require.NoError(t, err)
	for i := 0; i < len(out); i++ {
		assert.LessOrEqual(t, out[i], byte(0x7f), "byte %d", i)
	}
	assert.Equal(t, `{"label":"temp\u00e9rature"}`, string(out))
}

func TestMarshal_NFCBeforeEscape(t *testing.T) {
	// Decomposed "e" + combining acute must serialize the same as the
	// precomposed form, so equivalent spellings fingerprint identically.
	precomposed, err := Marshal(map[string]any{"label": "température"})
	require.NoError(t, err)
	decomposed, err := Marshal(map[string]any{"label": "température"})
	require.NoError(t, err)
	assert.Equal(t, string(precomposed), string(decomposed))
	assert.Equal(t, `{"label":"temp\u00e9rature"}`, string(precomposed))
}

func TestMarshal_Rejects(t *testing.T) {
	bad := []map[string]any{
		{"x": nil},
		{"x": math.NaN()},
		{"x": math.Inf(1)},
		{"x": struct{}{}},
	}
	for _, in := range bad {
		_, err := Marshal(in)
		assert.Error(t, err, "%v", in)
	}
}

package engine

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// chainDraws holds the parsed draws of a single chain: one row per
// iteration, columns named by the CSV header.
type chainDraws struct {
	names []string
	rows  [][]float64
}

// parseStanCSV reads one chain's output CSV. Lines starting with '#' are
// toolchain commentary and are skipped; the first remaining line is the
// header, everything after it is draws.
func parseStanCSV(r io.Reader) (*chainDraws, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<22)

	draws := &chainDraws{}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if draws.names == nil {
			draws.names = fields
			continue
		}
		if len(fields) != len(draws.names) {
			return nil, fmt.Errorf("draw row has %d fields, header has %d", len(fields), len(draws.names))
		}
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", draws.names[i], err)
			}
			row[i] = v
		}
		draws.rows = append(draws.rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if draws.names == nil {
		return nil, fmt.Errorf("no header found in sampler output")
	}
	return draws, nil
}

// columnName is a parsed header entry: "x.2.3" becomes base "x" with index
// (2, 3). Indices are one-based in the CSV.
type columnName struct {
	base    string
	indices []int
}

func parseColumnName(s string) columnName {
	parts := strings.Split(s, ".")
	cn := columnName{base: parts[0]}
	for _, p := range parts[1:] {
		n, err := strconv.Atoi(p)
		if err != nil {
			// Dotted name that is not an index suffix; treat verbatim.
			return columnName{base: s}
		}
		cn.indices = append(cn.indices, n)
	}
	return cn
}

// isMethodColumn reports whether a column is a sampler diagnostic rather
// than a model-declared variable. The toolchain suffixes diagnostics with
// a double underscore (lp__, accept_stat__, ...).
func isMethodColumn(name string) bool {
	return strings.HasSuffix(name, "__")
}

// combineChains merges per-chain draws into a RunResult. All chains must
// share the header and iteration count. Model variables flatten chain-major
// along the sample axis; method diagnostics become (iteration, chain)
// matrices.
func combineChains(chains []*chainDraws) (*RunResult, error) {
	if len(chains) == 0 {
		return nil, fmt.Errorf("no chains to combine")
	}
	header := chains[0].names
	iters := len(chains[0].rows)
	if iters == 0 {
		return nil, fmt.Errorf("chain produced no draws")
	}
	for i, c := range chains[1:] {
		if len(c.rows) != iters {
			return nil, fmt.Errorf("chain %d has %d draws, chain 1 has %d", i+2, len(c.rows), iters)
		}
		if strings.Join(c.names, ",") != strings.Join(header, ",") {
			return nil, fmt.Errorf("chain %d header differs from chain 1", i+2)
		}
	}
	numChains := len(chains)

	result := &RunResult{
		StanVariables:   map[string]*Tensor{},
		MethodVariables: map[string]*Matrix{},
	}

	// Method diagnostics: one (iteration, chain) matrix per column.
	for col, name := range header {
		if !isMethodColumn(name) {
			continue
		}
		m := &Matrix{Rows: iters, Cols: numChains, Data: make([]float64, iters*numChains)}
		for j, c := range chains {
			for i, row := range c.rows {
				m.Data[i*numChains+j] = row[col]
			}
		}
		result.MethodVariables[name] = m
	}

	// Model variables: group indexed columns under their base name.
	groups := map[string][]int{} // base -> column positions
	dims := map[string][]int{}   // base -> max index per axis
	for col, name := range header {
		if isMethodColumn(name) {
			continue
		}
		cn := parseColumnName(name)
		groups[cn.base] = append(groups[cn.base], col)
		d := dims[cn.base]
		for ax, idx := range cn.indices {
			if ax >= len(d) {
				d = append(d, idx)
			} else if idx > d[ax] {
				d[ax] = idx
			}
		}
		dims[cn.base] = d
	}

	bases := make([]string, 0, len(groups))
	for b := range groups {
		bases = append(bases, b)
	}
	sort.Strings(bases)

	totalSamples := iters * numChains
	for _, base := range bases {
		cols := groups[base]
		shape := append([]int{totalSamples}, dims[base]...)
		size := len(cols)
		t := &Tensor{Shape: shape, Data: make([]float64, totalSamples*size)}

		// Element offset of each column within one sample, row-major over
		// the variable's own dimensions.
		offsets := make([]int, len(cols))
		for k, col := range cols {
			cn := parseColumnName(header[col])
			off := 0
			for ax, idx := range cn.indices {
				off = off*dims[base][ax] + (idx - 1)
			}
			offsets[k] = off
		}

		sample := 0
		for _, c := range chains {
			for _, row := range c.rows {
				for k, col := range cols {
					t.Data[sample*size+offsets[k]] = row[col]
				}
				sample++
			}
		}
		result.StanVariables[base] = t
	}

	return result, nil
}

package model

import (
	"fmt"
	"strings"
)

// Format renders canonical program text for display: one-based line numbers
// and indentation by brace depth.
//
// Format is display-only. Its output is never hashed or stored; the
// canonical text itself stays exactly as Normalize produced it.
func Format(canonical string) string {
	if canonical == "" {
		return ""
	}
	var b strings.Builder
	depth := 0
	for i, line := range strings.Split(canonical, "\n") {
		indent := depth
		if strings.HasPrefix(line, "}") && indent > 0 {
			indent--
		}
		fmt.Fprintf(&b, "%3d | %s%s\n", i+1, strings.Repeat("  ", indent), line)
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth < 0 {
			depth = 0
		}
	}
	return b.String()
}

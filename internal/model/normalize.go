// Package model canonicalizes Stan program text.
//
// Canonical text is the only form that is ever hashed or written to the
// content store, so cosmetic differences between two programs (comments,
// blank lines, indentation) must collapse to the same canonical form. The
// exact transformation is a compatibility contract: changing it would change
// every fingerprint and orphan existing cache directories.
package model

import "strings"

// commentMarker starts a line comment in the modeling language.
const commentMarker = "//"

// Normalize reduces program text to its canonical form: line comments
// stripped, lines trimmed, empty lines dropped, interior space runs
// collapsed, non-ASCII bytes removed.
//
// Normalize is a pure function. It is not idempotent: the bounded space
// collapse can leave double spaces that a second pass would collapse
// further. It never fails; the result may be empty.
func Normalize(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if i := strings.Index(line, commentMarker); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Bounded collapse: one four-space pass, then exactly two two-space
		// passes. Runs longer than four spaces can survive under-collapsed.
		// Existing fingerprints depend on this exact sequence, so it must
		// not be replaced with a full run-length collapse.
		line = strings.ReplaceAll(line, "    ", " ")
		line = strings.ReplaceAll(line, "  ", " ")
		line = strings.ReplaceAll(line, "  ", " ")
		kept = append(kept, line)
	}
	joined := strings.TrimSpace(strings.Join(kept, "\n"))
	return stripNonASCII(joined)
}

// stripNonASCII drops every byte outside 7-bit ASCII. Bytes are dropped, not
// replaced, matching the encoding behavior the fingerprint scheme was built
// on.
func stripNonASCII(s string) string {
	// Fast path: most model code is pure ASCII already.
	clean := true
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] <= 0x7f {
			b = append(b, s[i])
		}
	}
	return string(b)
}

// Package refine drives generated artifacts toward a compiling,
// contract-safe state.
package refine

import (
	"regexp"
	"strings"
)

// fencePattern matches a markdown code fence line, with optional language.
var fencePattern = regexp.MustCompile("^\\s*```[\\w+#.-]*\\s*$")

// headingPattern matches a markdown heading line.
var headingPattern = regexp.MustCompile(`^#{1,6}\s+\S`)

// prosePrefixes start explanatory lines that generators put around code.
var prosePrefixes = []string{
	"here is",
	"here's",
	"below is",
	"the fixed",
	"the corrected",
	"the updated",
	"i've",
	"i have",
	"sure",
	"explanation:",
	"note:",
	"changes made:",
}

// Sanitize mechanically removes formatting artifacts from generator output:
// markdown fences, leading explanatory prose with its headings, and trailing
// explanations. A leading '#' line followed by code is kept as a comment. When the output contains fenced blocks, the longest block is
// kept. Sanitize is idempotent.
func Sanitize(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	if block, ok := longestFencedBlock(content); ok {
		content = block
	}

	lines := strings.Split(content, "\n")
	lines = dropFences(lines)
	lines = trimLeading(lines)
	lines = trimTrailing(lines)

	out := strings.Join(lines, "\n")
	if out == "" {
		return ""
	}
	return out + "\n"
}

// longestFencedBlock returns the contents of the longest closed fenced block.
func longestFencedBlock(content string) (string, bool) {
	lines := strings.Split(content, "\n")
	var best []string
	found := false
	start := -1
	for i, line := range lines {
		if !fencePattern.MatchString(line) {
			continue
		}
		if start == -1 {
			start = i
			continue
		}
		block := lines[start+1 : i]
		if !found || blockLen(block) > blockLen(best) {
			best = block
			found = true
		}
		start = -1
	}
	if !found {
		return "", false
	}
	return strings.Join(best, "\n"), true
}

func blockLen(lines []string) int {
	n := 0
	for _, l := range lines {
		n += len(l)
	}
	return n
}

func dropFences(lines []string) []string {
	out := lines[:0:0]
	for _, l := range lines {
		if fencePattern.MatchString(l) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func isProse(line string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(line))
	for _, p := range prosePrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

func isHeading(line string) bool {
	return headingPattern.MatchString(strings.TrimSpace(line))
}

// proseFollows reports whether the first line after any blanks and headings
// is prose. A heading directly above code is read as a code comment.
func proseFollows(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) == "" || isHeading(l) {
			continue
		}
		return isProse(l)
	}
	return false
}

// trimLeading drops blank lines, prose and headings that introduce prose
// before the first code line.
func trimLeading(lines []string) []string {
	i := 0
	for i < len(lines) {
		line := lines[i]
		if strings.TrimSpace(line) == "" || isProse(line) || (isHeading(line) && proseFollows(lines[i+1:])) {
			i++
			continue
		}
		break
	}
	return lines[i:]
}

// trimTrailing drops trailing blank lines and a trailing prose paragraph that
// is separated from the code by a blank line.
func trimTrailing(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			continue
		}
		if i+1 < len(lines) && isProse(lines[i+1]) {
			lines = lines[:i]
			for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
				lines = lines[:len(lines)-1]
			}
		}
		break
	}

	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	return lines
}

// Package diagnostic turns static checker output into structured diagnostics.
package diagnostic

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// Diagnostic codes produced when checker output cannot be attributed.
const (
	CodeTimeout = "TIMEOUT"
	CodeUnknown = "UNKNOWN"
	// CodeCompile is used for compilers that print no error code (go, gcc).
	CodeCompile = "COMPILE"
)

// tscPattern matches "file.ts(12,5): error TS2304: Cannot find name 'x'."
var tscPattern = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\):\s+error\s+(TS\d+):\s+(.+)$`)

// tscPrettyPattern matches "file.ts:12:5 - error TS2304: Cannot find name 'x'."
var tscPrettyPattern = regexp.MustCompile(`^(.+?):(\d+):(\d+)\s+-\s+error\s+(TS\d+):\s+(.+)$`)

// compilerPattern matches "path/file.go:line:col: message" and "path/file.go:line: message".
var compilerPattern = regexp.MustCompile(`^([^:\s]+\.\w+):(\d+)(?::(\d+))?:\s+(.+)$`)

// Parse extracts diagnostics from checker output. Lines that match no known
// format are ignored; duplicates are reported once.
func Parse(output string) []models.Diagnostic {
	var diags []models.Diagnostic
	seen := map[string]bool{}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		d, ok := parseLine(line)
		if !ok {
			continue
		}
		key := d.File + ":" + strconv.Itoa(d.Line) + ":" + strconv.Itoa(d.Column) + ":" + d.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		diags = append(diags, d)
	}
	return diags
}

func parseLine(line string) (models.Diagnostic, bool) {
	if m := tscPattern.FindStringSubmatch(line); m != nil {
		return build(m[1], m[2], m[3], m[4], m[5]), true
	}
	if m := tscPrettyPattern.FindStringSubmatch(line); m != nil {
		return build(m[1], m[2], m[3], m[4], m[5]), true
	}
	if m := compilerPattern.FindStringSubmatch(line); m != nil {
		return build(m[1], m[2], m[3], CodeCompile, m[4]), true
	}
	return models.Diagnostic{}, false
}

func build(file, line, col, code, msg string) models.Diagnostic {
	l, _ := strconv.Atoi(line)
	c, _ := strconv.Atoi(col)
	return models.Diagnostic{
		File:    filepath.Clean(file),
		Code:    code,
		Message: strings.TrimSpace(msg),
		Line:    l,
		Column:  c,
	}
}

// Unknown builds the single diagnostic reported when a check failed but its
// output could not be parsed.
func Unknown(summary string) models.Diagnostic {
	return models.Diagnostic{Code: CodeUnknown, Message: Summary(summary, 5)}
}

// Summary returns the first n lines of output as a brief display string.
func Summary(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		total := len(lines)
		lines = append(lines[:n], "... ("+strconv.Itoa(total-n)+" lines truncated)")
	}
	return strings.Join(lines, "\n")
}

package build

import (
	"os"
	"strings"
	"time"
)

// Stale reports whether an action needs to run: any output missing, or
// any input newer than the oldest output. Unreadable inputs count as
// changed so the action runs and surfaces the real error.
func Stale(outputs, inputs []string) bool {
	oldest := time.Time{}
	for _, out := range outputs {
		info, err := os.Stat(out)
		if err != nil {
			return true
		}
		if oldest.IsZero() || info.ModTime().Before(oldest) {
			oldest = info.ModTime()
		}
	}

	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return true
		}
		if info.ModTime().After(oldest) {
			return true
		}
	}
	return false
}

// ParseDepsFile reads a make-style dependency file as written by
// OpenSCAD's -d flag and returns the dependency paths. A missing file
// yields no dependencies; the first build has nothing to consult.
func ParseDepsFile(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return parseDeps(string(data))
}

// parseDeps handles the "target: dep dep \" format, joining continuation
// lines and dropping the target itself.
func parseDeps(content string) []string {
	content = strings.ReplaceAll(content, "\\\r\n", " ")
	content = strings.ReplaceAll(content, "\\\n", " ")

	_, rest, ok := strings.Cut(content, ":")
	if !ok {
		return nil
	}

	return splitDeps(rest)
}

// splitDeps splits on whitespace while honoring backslash-escaped spaces
// in paths.
func splitDeps(s string) []string {
	var deps []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s) && s[i+1] == ' ':
			cur.WriteByte(' ')
			i++
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if cur.Len() > 0 {
				deps = append(deps, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		deps = append(deps, cur.String())
	}
	return deps
}

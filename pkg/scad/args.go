// Package scad builds command lines for the OpenSCAD compiler.
//
// OpenSCAD customizer values are passed as -D name=value flags. Strings need
// an extra layer of quoting so OpenSCAD sees a string literal rather than an
// identifier; how that layer is written depends on who consumes the argv.
package scad

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// QuoteMode selects how string define values are quoted.
type QuoteMode int

const (
	// QuoteSubprocess quotes strings for direct invocation via exec:
	// the value `foo` becomes `"foo"`.
	QuoteSubprocess QuoteMode = iota

	// QuoteMacro quotes strings for substitution into a build macro that
	// passes through a shell: the value `foo` becomes `'"foo"'`.
	QuoteMacro
)

// DefineArgs converts named customizer values into -D flags.
// Keys are emitted in sorted order so the argv is deterministic (it
// participates in cache keys). Numbers and booleans are passed through
// unquoted; booleans render lowercase as OpenSCAD expects.
func DefineArgs(vals map[string]any, mode QuoteMode) []string {
	if len(vals) == 0 {
		return nil
	}

	args := make([]string, 0, 2*len(vals))
	for _, k := range slices.Sorted(maps.Keys(vals)) {
		args = append(args, "-D", fmt.Sprintf("%s=%s", k, formatValue(vals[k], mode)))
	}
	return args
}

func formatValue(v any, mode QuoteMode) string {
	switch val := v.(type) {
	case string:
		if mode == QuoteMacro {
			return `'"` + val + `"'`
		}
		return `"` + val + `"`
	case bool:
		return strconv.FormatBool(val)
	case float64:
		// HCL numbers decode as float64; render integers without the
		// trailing ".0" OpenSCAD would choke on in integer contexts.
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

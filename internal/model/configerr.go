package model

import (
	"fmt"
	"regexp"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

var (
	reIncomplete = regexp.MustCompile(`(?i)incomplete value`)
	reNotAllowed = regexp.MustCompile(`(?i)not allowed|unknown field`)
	reConflict   = regexp.MustCompile(`(?i)conflicting values|cannot unify|incompatible`)
)

// CueErrDetails expands a CUE validation error into one human line per
// distinct problem, suitable for logging next to the wrapped error.
func CueErrDetails(err error) []string {
	if err == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	for _, e := range cueerrors.Errors(err) {
		raw, _ := e.Msg()
		path := normalizePath(e.Path())

		var kind string
		switch {
		case reNotAllowed.MatchString(raw):
			kind = fmt.Sprintf("field %s is not allowed", path)
		case reIncomplete.MatchString(raw):
			kind = fmt.Sprintf("field %s is required", path)
		case reConflict.MatchString(raw):
			kind = fmt.Sprintf("field %s has conflicting value", path)
		default:
			kind = raw
			if path != "" {
				kind = path + ": " + raw
			}
		}

		line := kind
		for _, p := range cueerrors.Positions(e) {
			if p.Filename() != "" {
				line = fmt.Sprintf("%s (%s:%d:%d)", kind, p.Filename(), p.Line(), p.Column())
				break
			}
		}

		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

func normalizePath(p []string) string {
	if len(p) > 0 && strings.HasPrefix(p[0], "#") {
		p = p[1:]
	}
	return strings.Join(p, ".")
}

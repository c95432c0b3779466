package helpers

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// CompileGlobs compiles file-name patterns, rejecting empty or malformed ones.
func CompileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, raw := range patterns {
		pattern := strings.TrimSpace(raw)
		if pattern == "" {
			return nil, fmt.Errorf("empty pattern")
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// MatchAny reports whether name matches at least one pattern.
func MatchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func HasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[]{}")
}

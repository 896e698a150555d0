package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// CompileURLPatterns compiles blacklist/whitelist patterns into regexes
// matched against the full URL. Patterns use shell-style wildcards: '*'
// matches any run of characters (including '/'); everything else is
// literal. A pattern without '*' matches as a substring.
// Returns an error if a pattern compiles to an invalid regex.
func CompileURLPatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" { // Skip empty patterns silently
			continue
		}
		re, err := regexp.Compile(wildcardToRegex(pattern))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid pattern #%d ('%s'): %v", ErrConfigValidation, i+1, pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// wildcardToRegex translates a wildcard pattern into an unanchored regex
// source. '*' becomes '.*'; all other characters are quoted.
func wildcardToRegex(pattern string) string {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(parts, ".*")
}

// MatchesAny reports whether the URL matches at least one compiled pattern.
func MatchesAny(url string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

package env

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// matchesAny reports whether (name, value) is matched by any pattern in
// patterns, per §4.E's wildcard rule: "*" matches any run of non-'='
// characters in a name pattern; a pattern containing "=" matches only
// when both the name and value sides match.
func matchesAny(patterns mapset.Set[string], name, value string) bool {
	if patterns == nil {
		return false
	}
	matched := false
	patterns.Each(func(pat string) bool {
		if envPatternMatch(pat, name, value) {
			matched = true
			return true
		}
		return false
	})
	return matched
}

func envPatternMatch(pattern, name, value string) bool {
	if eq := strings.IndexByte(pattern, '='); eq >= 0 {
		namePat, valuePat := pattern[:eq], pattern[eq+1:]
		return wildcardMatch(namePat, name) && wildcardMatch(valuePat, value)
	}
	return wildcardMatch(pattern, name)
}

// wildcardMatch implements the "*" matches any run of non-'=' characters
// rule; bracket classes are accepted (handled by classMatches below) but,
// per §4.E, not required for correctness.
func wildcardMatch(pattern, s string) bool {
	return matchRunes([]rune(pattern), []rune(s))
}

func matchRunes(p, s []rune) bool {
	for len(p) > 0 {
		switch {
		case p[0] == '*':
			rest := p[1:]
			for i := 0; ; i++ {
				if matchRunes(rest, s[i:]) {
					return true
				}
				if i >= len(s) {
					return false
				}
			}
		case p[0] == '[':
			end := -1
			for i := 1; i < len(p); i++ {
				if p[i] == ']' && i > 1 {
					end = i
					break
				}
			}
			if end < 0 {
				if len(s) == 0 || s[0] != '[' {
					return false
				}
				p, s = p[1:], s[1:]
				continue
			}
			if len(s) == 0 || !classMatches(p[1:end], s[0]) {
				return false
			}
			p, s = p[end+1:], s[1:]
		default:
			if len(s) == 0 || s[0] != p[0] {
				return false
			}
			p, s = p[1:], s[1:]
		}
	}
	return len(s) == 0
}

func classMatches(class []rune, c rune) bool {
	negate := false
	if len(class) > 0 && (class[0] == '!' || class[0] == '^') {
		negate = true
		class = class[1:]
	}
	matched := false
	for i := 0; i < len(class); i++ {
		if i+2 < len(class) && class[i+1] == '-' {
			if class[i] <= c && c <= class[i+2] {
				matched = true
			}
			i += 2
			continue
		}
		if class[i] == c {
			matched = true
		}
	}
	return matched != negate
}

package policy

import "strings"

// expandToken resolves one list member into its flattened literal tokens,
// recursively expanding aliases from aliasMap. A leading "!" negates every
// literal produced by the token; a "!!"-expanded member (used only by
// Defaults flags, never here) never reaches this function. Cycles are
// broken by refusing to re-enter a name already on the visiting stack,
// treating it instead as a literal (matches nothing sudoers-shaped, which
// is the conservative failure mode for a malformed policy).
func expandToken(token string, aliasMap map[string][]string, visiting map[string]bool) []negToken {
	negated := false
	for strings.HasPrefix(token, "!") {
		negated = !negated
		token = strings.TrimPrefix(token, "!")
	}
	token = strings.TrimSpace(token)

	if token == "ALL" {
		return []negToken{{value: "ALL", negated: negated}}
	}

	if members, ok := aliasMap[token]; ok {
		if visiting[token] {
			return []negToken{{value: token, negated: negated}}
		}
		visiting[token] = true
		defer delete(visiting, token)

		var out []negToken
		for _, m := range members {
			for _, nt := range expandToken(m, aliasMap, visiting) {
				if negated {
					nt.negated = !nt.negated
				}
				out = append(out, nt)
			}
		}
		return out
	}

	return []negToken{{value: token, negated: negated}}
}

type negToken struct {
	value   string
	negated bool
}

// expandList expands every member of tokens, in order, preserving the
// left-to-right sequencing last-match-wins evaluation depends on.
func expandList(tokens []string, aliasMap map[string][]string) []negToken {
	visiting := map[string]bool{}
	var out []negToken
	for _, t := range tokens {
		out = append(out, expandToken(t, aliasMap, visiting)...)
	}
	return out
}

// matchesList applies sudoers' last-match-wins membership rule: walk the
// expanded, order-preserved token list and let every match (positive or
// negated) overwrite the running verdict. "ALL" matches anything. An empty
// list matches nothing.
func matchesList(tokens []string, aliasMap map[string][]string, matchFn func(literal string) bool) bool {
	result := false
	for _, nt := range expandList(tokens, aliasMap) {
		if nt.value == "ALL" || matchFn(nt.value) {
			result = !nt.negated
		}
	}
	return result
}

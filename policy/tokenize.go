package policy

import "strings"

// splitTopLevel splits s on sep outside of double-quoted spans, collapsing
// repeated separators and trimming empties — used for both the space- and
// colon-delimited forms the grammar needs.
func splitTopLevel(s string, sep rune) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false

	flush := func() {
		tok := strings.TrimSpace(cur.String())
		if tok != "" {
			out = append(out, tok)
		}
		cur.Reset()
	}

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == sep && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()

	return out
}

// splitCommaList splits a comma-separated list of words/aliases, trimming
// surrounding whitespace from each member.
func splitCommaList(s string) []string {
	return splitTopLevel(s, ',')
}

// splitTopLevelParenAware splits s on sep outside of quotes AND outside of
// a "(...)" Runas_Spec span, so a Runas_Spec's own ":" (and, for the
// top-level Cmnd_Spec_List split, its member commas) are not mistaken for
// statement-level separators.
func splitTopLevelParenAware(s string, sep rune) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	inQuotes := false

	flush := func() {
		tok := strings.TrimSpace(cur.String())
		if tok != "" {
			out = append(out, tok)
		}
		cur.Reset()
	}

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == '(' && !inQuotes:
			depth++
			cur.WriteRune(r)
		case r == ')' && !inQuotes:
			depth--
			cur.WriteRune(r)
		case r == sep && !inQuotes && depth == 0:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()

	return out
}

// topLevelIndex finds the byte index of the first occurrence of sep
// outside of a quoted span, or -1.
func topLevelIndex(s string, sep rune) int {
	inQuotes := false
	for i, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == sep && !inQuotes:
			return i
		}
	}
	return -1
}

package query

import (
	"fmt"
	"strings"

	lcierrors "github.com/probelabs/probe/internal/errors"
)

// checkStrict implements the optional strict-mode validation from §4.1,
// grounded on the original Rust query_validator: it rejects queries that
// read like natural-language prose rather than an explicit boolean
// expression.
//
// Rejected shapes:
//   - multiple whitespace-separated bare words with no AND/OR/NOT and
//     not fully quoted ("error handler")
//   - an unquoted identifier containing '_' or mixed case, which almost
//     always means the caller meant a quoted exact phrase or a
//     compound-word search, not a literal multi-underscore token
//
// The returned error always contains the literal substring "Vague query
// format detected" (E2E-4) plus at least one concrete suggestion.
func checkStrict(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	if strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) && len(trimmed) >= 2 {
		return nil // fully quoted: unambiguous exact phrase
	}

	hasConnective := containsConnective(trimmed)

	words := strings.Fields(trimmed)
	if len(words) > 1 && !hasConnective {
		example := fmt.Sprintf("(%s AND %s)", words[0], words[1])
		return lcierrors.NewQueryError(
			"strict_syntax",
			trimmed,
			example,
			fmt.Errorf("Vague query format detected: %q reads as natural-language prose, not a boolean query; did you mean %s or %q?", trimmed, example, trimmed),
		)
	}

	for _, w := range words {
		if isAmbiguousIdentifier(w) {
			example := fmt.Sprintf("%q (quoted exact) or %s", w, splitIntoAndExample(w))
			return lcierrors.NewQueryError(
				"strict_syntax",
				w,
				example,
				fmt.Errorf("Vague query format detected: unquoted identifier %q mixes case or underscores; did you mean %s?", w, example),
			)
		}
	}

	return nil
}

func containsConnective(s string) bool {
	upper := strings.ToUpper(s)
	for _, kw := range []string{" AND ", " OR ", " NOT ", "NOT "} {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return strings.HasPrefix(upper, "NOT ")
}

func isAmbiguousIdentifier(w string) bool {
	w = strings.Trim(w, `()+-"`)
	if w == "" {
		return false
	}
	hasUnderscore := strings.Contains(w, "_")
	hasMixedCase := w != strings.ToLower(w) && w != strings.ToUpper(w)
	return hasUnderscore || hasMixedCase
}

func splitIntoAndExample(w string) string {
	parts := strings.FieldsFunc(w, func(r rune) bool { return r == '_' })
	if len(parts) < 2 {
		return fmt.Sprintf("(%s)", w)
	}
	return fmt.Sprintf("(%s AND %s)", parts[0], parts[1])
}

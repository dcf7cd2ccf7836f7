// Package extractref parses fileref syntax for the extract command:
// PATH[:LINE[-LINE]][#SYMBOL] or PATH#SYMBOL, plus free-text scanning
// for stdin/clipboard extraction modes.
package extractref

import (
	"regexp"
	"strconv"
	"strings"
)

// Ref is one parsed file reference. StartLine/EndLine are zero when
// absent; Symbol is empty when absent. A ref always has at least a
// Path.
type Ref struct {
	Path      string
	StartLine int
	EndLine   int
	Symbol    string
}

// HasLineRange reports whether the ref names an explicit line or line
// range (as opposed to a symbol or bare path).
func (r Ref) HasLineRange() bool {
	return r.StartLine > 0
}

// NormalizeSymbol rewrites a dotted/backslash-separated symbol path to
// the canonical "::" form, so "ns::A::m", `ns\A\m`, and "ns.A.m" all
// compare equal. A bare identifier (no separators) is returned as-is.
func NormalizeSymbol(symbol string) string {
	if symbol == "" {
		return ""
	}
	segments := splitSymbolSegments(symbol)
	return strings.Join(segments, "::")
}

var symbolSeparator = regexp.MustCompile(`::|\\|\.`)

func splitSymbolSegments(symbol string) []string {
	parts := symbolSeparator.Split(symbol, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Parse parses a single command-line fileref argument, e.g.
// "src/main.go:10-20", "src/lib.rs#ns::Foo::bar", or a bare path.
func Parse(arg string) Ref {
	if sym, rest, ok := splitSymbolSuffix(arg); ok {
		return Ref{Path: rest, Symbol: NormalizeSymbol(sym)}
	}
	if path, start, end, ok := splitLineSuffix(arg); ok {
		return Ref{Path: path, StartLine: start, EndLine: end}
	}
	return Ref{Path: arg}
}

// splitSymbolSuffix splits "PATH#SYMBOL" on the last '#', since a
// Windows path never legally contains '#' and a POSIX path rarely does
// in practice; the symbol portion is everything after it.
func splitSymbolSuffix(arg string) (symbol, path string, ok bool) {
	idx := strings.LastIndex(arg, "#")
	if idx < 0 {
		return "", "", false
	}
	return arg[idx+1:], arg[:idx], true
}

// lineSuffixPattern matches a trailing ":LINE" or ":LINE-LINE" after a
// path. Anchored at the end so a Windows drive-letter path like
// "C:\foo.go" is never mistaken for a line suffix (no digits follow
// immediately after that colon).
var lineSuffixPattern = regexp.MustCompile(`:(\d+)(?:-(\d+))?$`)

func splitLineSuffix(arg string) (path string, start, end int, ok bool) {
	loc := lineSuffixPattern.FindStringSubmatchIndex(arg)
	if loc == nil {
		return "", 0, 0, false
	}
	path = arg[:loc[0]]
	start, _ = strconv.Atoi(arg[loc[2]:loc[3]])
	end = start
	if loc[4] >= 0 {
		end, _ = strconv.Atoi(arg[loc[4]:loc[5]])
	}
	return path, start, end, true
}

// filerefPattern scans free text (clipboard/stdin) for embedded file
// references: a path-like token optionally followed by a line suffix
// or symbol suffix. Deliberately permissive about the path charset
// (paths in stack traces, diffs, and chat logs vary widely) while
// requiring at least one '/' or a recognizable extension, to avoid
// matching ordinary prose.
var filerefPattern = regexp.MustCompile(`(?:[\w./\\-]+/[\w.-]+|[\w-]+\.[a-zA-Z]{1,8})(?::\d+(?:-\d+)?)?(?:#[\w:.\\]+)?`)

// ExtractFromText scans free-form text for embedded file references,
// used by the extract command's stdin/clipboard modes.
func ExtractFromText(text string) []Ref {
	matches := filerefPattern.FindAllString(text, -1)
	refs := make([]Ref, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		refs = append(refs, Parse(m))
	}
	return refs
}

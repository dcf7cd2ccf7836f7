package query

import "strings"

// tokenKind enumerates the lexical categories the query grammar needs.
type tokenKind int

const (
	tokWord tokenKind = iota
	tokQuoted
	tokPlus
	tokMinus
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
	tokFilter // key:value, already split
	tokEOF
)

type token struct {
	kind  tokenKind
	text  string // surface word, quoted content, or filter value
	key   string // filter key only
	start int
	end   int
}

// lex tokenizes an ElasticSearch-style query string: quoted phrases,
// parens, AND/OR/NOT, +/- prefixes, and key:value filters.
func lex(q string) []token {
	var toks []token
	i := 0
	n := len(q)

	for i < n {
		c := q[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, start: i, end: i + 1})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, start: i, end: i + 1})
			i++
		case c == '"':
			j := i + 1
			for j < n && q[j] != '"' {
				j++
			}
			end := j
			if j < n {
				end = j + 1
			}
			toks = append(toks, token{kind: tokQuoted, text: q[i+1 : min(j, n)], start: i, end: end})
			i = end
		case c == '+' && i+1 < n && !isSpace(q[i+1]):
			j := scanWord(q, i+1)
			toks = append(toks, token{kind: tokPlus, text: q[i+1 : j], start: i, end: j})
			i = j
		case c == '-' && i+1 < n && !isSpace(q[i+1]):
			j := scanWord(q, i+1)
			toks = append(toks, token{kind: tokMinus, text: q[i+1 : j], start: i, end: j})
			i = j
		default:
			j := scanWord(q, i)
			if j == i {
				i++
				continue
			}
			word := q[i:j]
			if idx := strings.IndexByte(word, ':'); idx > 0 && isKnownFilterKey(word[:idx]) {
				toks = append(toks, token{kind: tokFilter, key: strings.ToLower(word[:idx]), text: word[idx+1:], start: i, end: j})
			} else {
				switch strings.ToUpper(word) {
				case "AND":
					toks = append(toks, token{kind: tokAnd, start: i, end: j})
				case "OR":
					toks = append(toks, token{kind: tokOr, start: i, end: j})
				case "NOT":
					toks = append(toks, token{kind: tokNot, start: i, end: j})
				default:
					toks = append(toks, token{kind: tokWord, text: word, start: i, end: j})
				}
			}
			i = j
		}
	}

	toks = append(toks, token{kind: tokEOF, start: n, end: n})
	return toks
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func scanWord(q string, i int) int {
	n := len(q)
	j := i
	for j < n && !isSpace(q[j]) && q[j] != '(' && q[j] != ')' && q[j] != '"' {
		j++
	}
	return j
}

func isKnownFilterKey(k string) bool {
	switch strings.ToLower(k) {
	case "ext", "file", "dir", "type", "lang":
		return true
	default:
		return false
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

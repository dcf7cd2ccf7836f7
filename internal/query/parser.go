package query

import (
	"fmt"

	lcierrors "github.com/probelabs/probe/internal/errors"
)

// parser is a small recursive-descent parser over the token stream
// produced by lex. It implements the grammar in the query compiler's
// design: expr := expr (AND|OR) expr | NOT expr | term | filter | group.
type parser struct {
	toks []token
	pos  int
	raw  string
}

func newParser(raw string) *parser {
	return &parser{toks: lex(raw), raw: raw}
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// parse parses the whole query, returning EmptyQuery as a *QueryError
// when there are no tokens at all.
func (p *parser) parse() (*exprNode, error) {
	if p.peek().kind == tokEOF {
		return nil, lcierrors.NewQueryError("empty", "", "", fmt.Errorf("query is empty"))
	}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		tk := p.peek()
		return nil, lcierrors.NewQueryError("parse", spanOf(p.raw, tk), "", fmt.Errorf("unexpected token near %q", tokenText(tk)))
	}
	return node, nil
}

func (p *parser) parseOr() (*exprNode, error) {
	left, err := p.parseAndChain()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAndChain()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: exprOr, children: []*exprNode{left, right}}
	}
	return left, nil
}

// parseAndChain collects a run of unary expressions. Adjacent terms
// with no connective form an exprImplicit group, which the compiler
// resolves to AND or OR depending on the any_term option; an explicit
// AND token ends the current group and joins the groups with exprAnd,
// which stays AND regardless of any_term.
func (p *parser) parseAndChain() (*exprNode, error) {
	runs := [][]*exprNode{nil}

	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	runs[0] = append(runs[0], first)

	for {
		if p.peek().kind == tokAnd {
			p.next()
			n, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			runs = append(runs, []*exprNode{n})
			continue
		}
		if canStartUnary(p.peek()) {
			n, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			runs[len(runs)-1] = append(runs[len(runs)-1], n)
			continue
		}
		break
	}

	groups := make([]*exprNode, 0, len(runs))
	for _, run := range runs {
		if len(run) == 1 {
			groups = append(groups, run[0])
		} else {
			groups = append(groups, &exprNode{kind: exprImplicit, children: run})
		}
	}
	if len(groups) == 1 {
		return groups[0], nil
	}
	return &exprNode{kind: exprAnd, children: groups}, nil
}

func canStartUnary(t token) bool {
	switch t.kind {
	case tokWord, tokQuoted, tokPlus, tokMinus, tokLParen, tokNot, tokFilter:
		return true
	default:
		return false
	}
}

func (p *parser) parseUnary() (*exprNode, error) {
	t := p.peek()
	switch t.kind {
	case tokNot:
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &exprNode{kind: exprNot, children: []*exprNode{inner}}, nil
	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, lcierrors.NewQueryError("parse", spanOf(p.raw, p.peek()), "", fmt.Errorf("expected closing parenthesis"))
		}
		p.next()
		return inner, nil
	case tokPlus:
		p.next()
		return &exprNode{kind: exprTerm, text: t.text, required: true}, nil
	case tokMinus:
		p.next()
		return &exprNode{kind: exprTerm, text: t.text, excluded: true}, nil
	case tokQuoted:
		p.next()
		return &exprNode{kind: exprTerm, text: t.text, quoted: true}, nil
	case tokFilter:
		p.next()
		return &exprNode{kind: exprFilter, key: t.key, text: t.text}, nil
	case tokWord:
		p.next()
		return &exprNode{kind: exprTerm, text: t.text}, nil
	default:
		return nil, lcierrors.NewQueryError("parse", spanOf(p.raw, t), "", fmt.Errorf("unexpected token near %q", tokenText(t)))
	}
}

func spanOf(raw string, t token) string {
	if t.start < 0 || t.end > len(raw) || t.start > t.end {
		return ""
	}
	return raw[t.start:t.end]
}

func tokenText(t token) string {
	if t.text != "" {
		return t.text
	}
	return "<end of query>"
}

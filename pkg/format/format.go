// Package format provides best-effort SQL formatting for dashboard queries.
//
// Formatting never fails: SQL the lexer cannot read is returned verbatim and the
// Result records why.
package format

import (
	"strings"
)

// Result is the outcome of formatting a query.
type Result struct {
	// Text is the formatted query, or the input unchanged when Formatted is false
	Text string
	// Formatted reports whether Text was produced by the formatter
	Formatted bool
	// Reason explains the fallback when Formatted is false
	Reason string
}

// SQL formats the first meaningful statement of query. Keywords and function
// names are uppercased, identifiers keep their case, the select list and the
// GROUP BY / ORDER BY lists get one item per line, and WHERE style conditions
// break before AND / OR. Subqueries are indented.
func SQL(query string) Result {
	tokens, err := tokenize(query)
	if err != nil {
		return unchanged(query, err.Error())
	}
	nodes, err := buildTree(tokens)
	if err != nil {
		return unchanged(query, err.Error())
	}
	stmt := firstStatement(nodes)
	if stmt == nil {
		return unchanged(query, "no statement found")
	}

	p := newPrinter()
	p.statement(stmt)
	return Result{Text: p.String(), Formatted: true}
}

func unchanged(query, reason string) Result {
	return Result{Text: query, Reason: reason}
}

// node is a token or a bracketed group of nodes.
type node struct {
	tok      token // the token, or the opening bracket of a group
	children []node
	close    token
	group    bool
}

func buildTree(tokens []token) ([]node, error) {
	type frame struct {
		open  token
		nodes []node
	}
	stack := []frame{{}}
	for _, t := range tokens {
		switch t.kind {
		case tokLParen, tokLBracket:
			stack = append(stack, frame{open: t})
		case tokRParen, tokRBracket:
			if len(stack) == 1 {
				return nil, errUnbalanced(t.text)
			}
			top := stack[len(stack)-1]
			if !matches(top.open, t) {
				return nil, errUnbalanced(t.text)
			}
			stack = stack[:len(stack)-1]
			parent := &stack[len(stack)-1]
			parent.nodes = append(parent.nodes, node{tok: top.open, children: top.nodes, close: t, group: true})
		default:
			top := &stack[len(stack)-1]
			top.nodes = append(top.nodes, node{tok: t})
		}
	}
	if len(stack) != 1 {
		return nil, errUnbalanced(stack[len(stack)-1].open.text)
	}
	return stack[0].nodes, nil
}

type unbalancedError string

func (e unbalancedError) Error() string {
	return "unbalanced " + string(e)
}

func errUnbalanced(bracket string) error {
	if bracket == "[" || bracket == "]" {
		return unbalancedError("brackets")
	}
	return unbalancedError("parentheses")
}

func matches(open, closing token) bool {
	return (open.kind == tokLParen && closing.kind == tokRParen) ||
		(open.kind == tokLBracket && closing.kind == tokRBracket)
}

// firstStatement returns the nodes of the first statement that holds more than comments.
func firstStatement(nodes []node) []node {
	start := 0
	for i := 0; i <= len(nodes); i++ {
		if i < len(nodes) && !(nodes[i].tok.kind == tokSemicolon && !nodes[i].group) {
			continue
		}
		stmt := nodes[start:i]
		if meaningful(stmt) {
			return stmt
		}
		start = i + 1
	}
	return nil
}

func meaningful(nodes []node) bool {
	for _, n := range nodes {
		if n.group || !isComment(n.tok) {
			return true
		}
	}
	return false
}

func isComment(t token) bool {
	return t.kind == tokLineComment || t.kind == tokBlockComment
}

// firstWord returns the uppercased first non-comment word of nodes.
func firstWord(nodes []node) string {
	for _, n := range nodes {
		if n.group {
			return ""
		}
		if isComment(n.tok) {
			continue
		}
		if n.tok.kind == tokWord {
			return strings.ToUpper(n.tok.text)
		}
		return ""
	}
	return ""
}

func isSubquery(n node) bool {
	if !n.group || n.tok.kind != tokLParen {
		return false
	}
	w := firstWord(n.children)
	return w == "SELECT" || w == "WITH"
}

// clause is a run of nodes introduced by a clause keyword such as FROM or ORDER BY.
// Leading nodes before the first keyword form a clause without keyword.
type clause struct {
	keyword []string
	body    []node
}

var joinModifiers = map[string]bool{
	"LEFT": true, "RIGHT": true, "FULL": true, "INNER": true, "CROSS": true,
	"NATURAL": true, "OUTER": true, "SEMI": true, "ANTI": true,
}

func splitClauses(nodes []node) []clause {
	var clauses []clause
	for i := 0; i < len(nodes); {
		if kw := clauseKeyword(nodes, i); kw != nil {
			clauses = append(clauses, clause{keyword: kw})
			i += len(kw)
			continue
		}
		if len(clauses) == 0 {
			clauses = append(clauses, clause{})
		}
		last := &clauses[len(clauses)-1]
		last.body = append(last.body, nodes[i])
		i++
	}
	return clauses
}

// clauseKeyword returns the uppercased words of the clause keyword starting at nodes[i].
func clauseKeyword(nodes []node, i int) []string {
	word := wordAt(nodes, i)
	switch word {
	case "SELECT", "FROM", "WHERE", "HAVING", "QUALIFY", "LIMIT", "OFFSET", "WINDOW", "WITH", "JOIN":
		return []string{word}
	case "UNION", "INTERSECT", "EXCEPT", "MINUS":
		if word == "EXCEPT" && i+1 < len(nodes) && nodes[i+1].group && !isSubquery(nodes[i+1]) {
			// SELECT * EXCEPT (col)
			return nil
		}
		if next := wordAt(nodes, i+1); next == "ALL" || next == "DISTINCT" {
			return []string{word, next}
		}
		return []string{word}
	case "GROUP", "ORDER":
		if wordAt(nodes, i+1) == "BY" {
			return []string{word, "BY"}
		}
	}
	if joinModifiers[word] {
		var words []string
		for j := i; j < len(nodes); j++ {
			w := wordAt(nodes, j)
			if w == "JOIN" {
				return append(words, w)
			}
			if !joinModifiers[w] {
				return nil
			}
			words = append(words, w)
		}
	}
	return nil
}

func wordAt(nodes []node, i int) string {
	if i >= len(nodes) || nodes[i].group || nodes[i].tok.kind != tokWord {
		return ""
	}
	return strings.ToUpper(nodes[i].tok.text)
}

// splitList splits nodes at top level commas.
func splitList(nodes []node) [][]node {
	var items [][]node
	start := 0
	for i, n := range nodes {
		if !n.group && n.tok.kind == tokComma {
			items = append(items, nodes[start:i])
			start = i + 1
		}
	}
	return append(items, nodes[start:])
}

var comma = token{kind: tokComma, text: ","}

func (p *printer) statement(nodes []node) {
	for _, c := range splitClauses(nodes) {
		p.newline()
		if c.keyword == nil {
			p.inline(c.body, false)
			continue
		}
		p.keyword(c.keyword...)

		switch c.keyword[0] {
		case "SELECT":
			body := c.body
			for len(body) > 0 && (wordAt(body, 0) == "DISTINCT" || wordAt(body, 0) == "ALL") {
				p.inline(body[:1], false)
				body = body[1:]
			}
			p.list(body)
		case "GROUP", "ORDER":
			p.list(c.body)
		case "WHERE", "HAVING", "QUALIFY":
			p.indent()
			p.newline()
			p.inline(c.body, true)
			p.dedent()
		case "WITH":
			for i, item := range splitList(c.body) {
				if i > 0 {
					p.token(comma)
					p.newline()
				}
				p.inline(item, false)
			}
		default:
			p.inline(c.body, false)
		}
	}
}

// list prints one item per line, indented under the clause keyword.
func (p *printer) list(nodes []node) {
	if len(nodes) == 0 {
		return
	}
	items := splitList(nodes)
	p.indent()
	for i, item := range items {
		p.newline()
		p.inline(item, false)
		if i < len(items)-1 {
			p.token(comma)
		}
	}
	p.dedent()
}

// inline prints nodes on the current line. Subqueries still get their own
// indented block, and with breakLogical every top level AND / OR starts a line.
func (p *printer) inline(nodes []node, breakLogical bool) {
	pendingBetween := false
	for i, n := range nodes {
		if n.group {
			p.group(n)
			continue
		}

		t := n.tok
		switch t.kind {
		case tokLineComment:
			p.lineComment(t)
			continue
		case tokWord:
			upper := strings.ToUpper(t.text)
			if i+1 < len(nodes) && nodes[i+1].group && nodes[i+1].tok.kind == tokLParen && !keywords[upper] {
				// function call
				t.text = upper
				p.token(t)
				p.tight = true
				continue
			}
			if keywords[upper] {
				t.text = upper
			}
			switch upper {
			case "BETWEEN":
				pendingBetween = true
			case "AND":
				if pendingBetween {
					pendingBetween = false
					break
				}
				if breakLogical {
					p.newline()
				}
			case "OR":
				if breakLogical {
					p.newline()
				}
			}
		case tokOperator:
			if (t.text == "-" || t.text == "+") && p.unaryContext() && !startsWithMinus(nodes, i+1) {
				p.token(t)
				p.tight = true
				continue
			}
		}
		p.token(t)
	}
}

func (p *printer) group(n node) {
	p.token(n.tok)
	if isSubquery(n) {
		p.indent()
		p.statement(n.children)
		p.dedent()
		p.newline()
	} else {
		p.inline(n.children, false)
	}
	p.token(n.close)
}

// unaryContext reports whether a sign printed now would be a unary operator.
func (p *printer) unaryContext() bool {
	if !p.hasPrev {
		return true
	}
	switch p.prev.kind {
	case tokOperator, tokComma, tokLParen, tokLBracket, tokColon, tokSemicolon, tokLineComment:
		return true
	case tokWord:
		return !endsValue(p.prev)
	}
	return false
}

func startsWithMinus(nodes []node, i int) bool {
	return i < len(nodes) && !nodes[i].group && strings.HasPrefix(nodes[i].tok.text, "-")
}

// keywords are uppercased wherever they appear and are never treated as function names.
var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "GROUP": true, "BY": true,
	"HAVING": true, "ORDER": true, "LIMIT": true, "OFFSET": true, "QUALIFY": true,
	"WINDOW": true, "WITH": true, "RECURSIVE": true, "AS": true, "ON": true,
	"USING": true, "JOIN": true, "INNER": true, "OUTER": true, "CROSS": true,
	"NATURAL": true, "FULL": true, "UNION": true, "ALL": true, "INTERSECT": true,
	"EXCEPT": true, "MINUS": true, "DISTINCT": true, "AND": true, "OR": true, "NOT": true,
	"IN": true, "IS": true, "NULL": true, "LIKE": true, "ILIKE": true, "RLIKE": true,
	"BETWEEN": true, "EXISTS": true, "CASE": true, "WHEN": true, "THEN": true,
	"ELSE": true, "END": true, "TRUE": true, "FALSE": true, "ASC": true, "DESC": true,
	"NULLS": true, "OVER": true, "PARTITION": true, "INTERVAL": true, "LATERAL": true,
	"ANY": true, "SOME": true, "VALUES": true,
}

// valueKeywords end an operand like an identifier does.
var valueKeywords = map[string]bool{
	"END": true, "NULL": true, "TRUE": true, "FALSE": true,
}

package format

import (
	"strings"
)

// Projection describes the output columns of a query.
type Projection struct {
	// Columns are the output column names in select list order
	Columns []string
	// Star is set when the select list contains * or t.*
	Star bool
}

// Columns reads the select list of the main SELECT of query, looking through
// a leading WITH clause. It returns false when the query cannot be tokenized or
// has no SELECT at its top level.
func Columns(query string) (Projection, bool) {
	tokens, err := tokenize(query)
	if err != nil {
		return Projection{}, false
	}
	nodes, err := buildTree(tokens)
	if err != nil {
		return Projection{}, false
	}
	stmt := firstStatement(nodes)
	if stmt == nil {
		return Projection{}, false
	}

	for _, c := range splitClauses(stmt) {
		if len(c.keyword) == 0 || c.keyword[0] != "SELECT" {
			continue
		}
		body := withoutComments(c.body)
		for len(body) > 0 && (wordAt(body, 0) == "DISTINCT" || wordAt(body, 0) == "ALL") {
			body = body[1:]
		}
		var proj Projection
		for _, item := range splitList(body) {
			if len(item) == 0 {
				continue
			}
			if isStar(item) {
				proj.Star = true
				continue
			}
			proj.Columns = append(proj.Columns, columnName(item))
		}
		return proj, true
	}
	return Projection{}, false
}

func withoutComments(nodes []node) []node {
	out := make([]node, 0, len(nodes))
	for _, n := range nodes {
		if !n.group && isComment(n.tok) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func isStar(item []node) bool {
	last := item[len(item)-1]
	if last.group || last.tok.text != "*" {
		return false
	}
	return len(item) == 1 || (!item[len(item)-2].group && item[len(item)-2].tok.kind == tokDot)
}

// columnName derives the output name of one select item: an explicit or
// implicit alias, the last part of a column reference, or the expression text.
func columnName(item []node) string {
	n := len(item)
	last := item[n-1]
	if !last.group && isName(last.tok) {
		if n == 1 {
			return unquote(last.tok.text)
		}
		prev := item[n-2]
		if wordAt(item, n-2) == "AS" {
			return unquote(last.tok.text)
		}
		if !prev.group && prev.tok.kind == tokDot {
			return unquote(last.tok.text)
		}
		if prev.group || endsOperand(prev.tok) {
			// implicit alias: count(*) n
			return unquote(last.tok.text)
		}
	}

	p := newPrinter()
	p.inline(item, false)
	return p.String()
}

func isName(t token) bool {
	if t.kind == tokQuoted {
		return true
	}
	return t.kind == tokWord && !keywords[strings.ToUpper(t.text)]
}

func endsOperand(t token) bool {
	switch t.kind {
	case tokString, tokNumber:
		return true
	}
	return endsValue(t)
}

func unquote(name string) string {
	if len(name) < 2 {
		return name
	}
	quote := name[0]
	if (quote == '`' || quote == '"') && name[len(name)-1] == quote {
		inner := name[1 : len(name)-1]
		return strings.ReplaceAll(inner, string([]byte{quote, quote}), string(quote))
	}
	return name
}

package format

import (
	"strings"
)

const indentSize = 2

// printer accumulates formatted output with indentation and token spacing.
type printer struct {
	output      strings.Builder
	depth       int
	atLineStart bool
	prev        token
	hasPrev     bool
	tight       bool // suppress the space before the next token
}

func newPrinter() *printer {
	return &printer{atLineStart: true}
}

// String returns the formatted output without surrounding whitespace.
func (p *printer) String() string {
	return strings.TrimSpace(p.output.String())
}

func (p *printer) write(s string) {
	if p.atLineStart && len(s) > 0 {
		p.writeIndent()
	}
	p.output.WriteString(s)
	p.atLineStart = false
}

func (p *printer) writeln() {
	p.output.WriteByte('\n')
	p.atLineStart = true
}

// newline starts a new line unless the printer already is at one.
func (p *printer) newline() {
	if !p.atLineStart {
		p.writeln()
	}
}

func (p *printer) writeIndent() {
	for i := 0; i < p.depth*indentSize; i++ {
		p.output.WriteByte(' ')
	}
	p.atLineStart = false
}

func (p *printer) indent() {
	p.depth++
}

func (p *printer) dedent() {
	if p.depth > 0 {
		p.depth--
	}
}

func (p *printer) space() {
	p.output.WriteByte(' ')
}

// token writes t, preceded by a space where SQL spacing calls for one.
func (p *printer) token(t token) {
	if !p.atLineStart && !p.tight && p.hasPrev && spaceBetween(p.prev, t) {
		p.space()
	}
	p.write(t.text)
	p.prev = t
	p.hasPrev = true
	p.tight = false
}

// lineComment writes a line comment on a line of its own.
func (p *printer) lineComment(t token) {
	p.newline()
	p.write(t.text)
	p.writeln()
	p.prev = t
	p.hasPrev = true
	p.tight = false
}

// keyword writes words uppercased as a single clause keyword.
func (p *printer) keyword(words ...string) {
	p.token(token{kind: tokWord, text: strings.ToUpper(strings.Join(words, " "))})
}

func spaceBetween(prev, next token) bool {
	switch next.kind {
	case tokComma, tokRParen, tokRBracket, tokDot, tokSemicolon:
		return false
	case tokColon:
		// json path access binds to the value before it, parameters do not
		return !endsValue(prev)
	case tokLBracket:
		if endsValue(prev) {
			return false
		}
	case tokOperator:
		if next.text == "::" {
			return false
		}
	}

	switch prev.kind {
	case tokLParen, tokLBracket, tokDot, tokColon:
		return false
	case tokOperator:
		return prev.text != "::"
	}
	return true
}

func endsValue(t token) bool {
	switch t.kind {
	case tokWord:
		upper := strings.ToUpper(t.text)
		return !keywords[upper] || valueKeywords[upper]
	case tokQuoted, tokRParen, tokRBracket:
		return true
	}
	return false
}

package format

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokQuoted // backtick or double quoted
	tokString
	tokNumber
	tokOperator
	tokComma
	tokDot
	tokColon
	tokSemicolon
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokLineComment
	tokBlockComment
)

type token struct {
	kind tokenKind
	text string
}

// operators longer than one character, longest first.
var multiCharOperators = []string{"<=>", "<=", ">=", "<>", "!=", "==", "||", "::", "->", "=>", "<<", ">>"}

const singleCharOperators = "+-*/%=<>!|&^~?@"

// lexer splits SQL text into tokens. It only knows enough about SQL to keep
// literals, quoted identifiers and comments intact.
type lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	last    tokenKind
}

func newLexer(input string) *lexer {
	l := &lexer{input: input, line: 1, last: tokEOF}
	l.readChar()
	return l
}

// tokenize returns all tokens of input, or an error describing the first
// construct the lexer could not read.
func tokenize(input string) ([]token, error) {
	l := newLexer(input)
	var tokens []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokEOF {
			return tokens, nil
		}
		l.last = tok.kind
		tokens = append(tokens, tok)
	}
}

func (l *lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	if l.ch == '\n' {
		l.line++
	}
}

func (l *lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *lexer) eof() bool {
	return l.pos >= len(l.input)
}

func (l *lexer) skipWhitespace() {
	for !l.eof() && (l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f') {
		l.readChar()
	}
}

func (l *lexer) next() (token, error) {
	l.skipWhitespace()
	if l.eof() {
		return token{kind: tokEOF}, nil
	}

	start := l.pos
	line := l.line

	switch {
	case l.ch == '-' && l.peekChar() == '-':
		for !l.eof() && l.ch != '\n' {
			l.readChar()
		}
		return token{kind: tokLineComment, text: strings.TrimRight(l.input[start:l.pos], " \t\r")}, nil
	case l.ch == '/' && l.peekChar() == '*':
		l.readChar()
		l.readChar()
		for {
			if l.eof() {
				return token{}, fmt.Errorf("unterminated block comment at line %d", line)
			}
			if l.ch == '*' && l.peekChar() == '/' {
				l.readChar()
				l.readChar()
				return token{kind: tokBlockComment, text: l.input[start:l.pos]}, nil
			}
			l.readChar()
		}
	case l.ch == '\'':
		if err := l.readQuoted('\'', true); err != nil {
			return token{}, fmt.Errorf("unterminated string literal at line %d", line)
		}
		return token{kind: tokString, text: l.input[start:l.pos]}, nil
	case l.ch == '"':
		if err := l.readQuoted('"', true); err != nil {
			return token{}, fmt.Errorf("unterminated quoted identifier at line %d", line)
		}
		return token{kind: tokQuoted, text: l.input[start:l.pos]}, nil
	case l.ch == '`':
		if err := l.readQuoted('`', false); err != nil {
			return token{}, fmt.Errorf("unterminated quoted identifier at line %d", line)
		}
		return token{kind: tokQuoted, text: l.input[start:l.pos]}, nil
	case isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar()) && !l.afterValue()):
		l.readNumber()
		return token{kind: tokNumber, text: l.input[start:l.pos]}, nil
	case isWordChar(l.ch):
		for !l.eof() && isWordChar(l.ch) {
			l.readChar()
		}
		word := l.input[start:l.pos]
		// prefixed literals such as r'...' and x'...'
		if isLiteralPrefix(word) && (l.ch == '\'' || l.ch == '"') {
			if err := l.readQuoted(l.ch, !strings.EqualFold(word, "r")); err != nil {
				return token{}, fmt.Errorf("unterminated string literal at line %d", line)
			}
			return token{kind: tokString, text: l.input[start:l.pos]}, nil
		}
		return token{kind: tokWord, text: word}, nil
	}

	simple := map[byte]tokenKind{
		',': tokComma,
		';': tokSemicolon,
		'(': tokLParen,
		')': tokRParen,
		'[': tokLBracket,
		']': tokRBracket,
		'.': tokDot,
	}
	if kind, ok := simple[l.ch]; ok {
		l.readChar()
		return token{kind: kind, text: l.input[start:l.pos]}, nil
	}

	rest := l.input[start:]
	for _, op := range multiCharOperators {
		if strings.HasPrefix(rest, op) {
			for range len(op) {
				l.readChar()
			}
			return token{kind: tokOperator, text: op}, nil
		}
	}
	if l.ch == ':' {
		l.readChar()
		return token{kind: tokColon, text: ":"}, nil
	}
	if strings.IndexByte(singleCharOperators, l.ch) >= 0 {
		l.readChar()
		return token{kind: tokOperator, text: l.input[start:l.pos]}, nil
	}

	return token{}, fmt.Errorf("unexpected character %q at line %d", l.ch, line)
}

// readQuoted consumes a quoted literal starting at the opening quote.
// A doubled quote is an escaped quote; backslash escapes are honoured when escapes is set.
func (l *lexer) readQuoted(quote byte, escapes bool) error {
	l.readChar()
	for {
		if l.eof() {
			return fmt.Errorf("unterminated")
		}
		switch {
		case escapes && l.ch == '\\':
			l.readChar()
			if l.eof() {
				return fmt.Errorf("unterminated")
			}
			l.readChar()
		case l.ch == quote && l.peekChar() == quote:
			l.readChar()
			l.readChar()
		case l.ch == quote:
			l.readChar()
			return nil
		default:
			l.readChar()
		}
	}
}

// readNumber consumes digits, one decimal point, an exponent and a type suffix (10L, 1.5BD).
func (l *lexer) readNumber() {
	seenDot := false
	for !l.eof() && (isDigit(l.ch) || (l.ch == '.' && !seenDot)) {
		if l.ch == '.' {
			seenDot = true
		}
		l.readChar()
	}
	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peekChar()) || l.peekChar() == '+' || l.peekChar() == '-') {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for !l.eof() && isDigit(l.ch) {
			l.readChar()
		}
	}
	for !l.eof() && isWordChar(l.ch) {
		l.readChar()
	}
}

// afterValue reports whether the previous token ends an operand, in which
// case a following '.' is member access rather than the start of a number.
func (l *lexer) afterValue() bool {
	switch l.last {
	case tokWord, tokQuoted, tokString, tokNumber, tokRParen, tokRBracket:
		return true
	}
	return false
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isWordChar(ch byte) bool {
	return ch == '_' || ch == '$' || isDigit(ch) ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
		ch >= 0x80
}

func isLiteralPrefix(word string) bool {
	switch strings.ToLower(word) {
	case "r", "x", "b":
		return true
	}
	return false
}

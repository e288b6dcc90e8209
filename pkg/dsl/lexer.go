package dsl

import (
	"strings"
	"unicode"
)

// Lexer tokenizes pipeline DSL source code.
type Lexer struct {
	input  string
	pos    int
	line   int
	col    int
	tokens []Token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		line:   1,
		col:    1,
		tokens: []Token{},
	}
}

// Tokenize tokenizes the entire input and returns the tokens, ending with
// TokenEOF. Characters outside the language become TokenIllegal.
func (l *Lexer) Tokenize() []Token {
	for l.pos < len(l.input) {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			break
		}

		ch := l.peek()

		switch {
		case ch == '\n':
			l.emit(TokenNewline, "\n")
			l.line++
			l.col = 1

		case ch == '#':
			l.scanComment()

		case ch == '"' || ch == '\'':
			l.scanString(ch)

		case ch == '|' && l.peekNext() == '>':
			l.emit(TokenPipe, "|>")

		case ch == '-' && unicode.IsDigit(rune(l.peekNext())):
			l.scanNumber()

		case unicode.IsDigit(rune(ch)):
			l.scanNumber()

		case unicode.IsLetter(rune(ch)) || ch == '_':
			l.scanIdentifier()

		default:
			if tt, ok := delimiters[ch]; ok {
				l.emit(tt, string(ch))
			} else {
				l.emit(TokenIllegal, string(ch))
			}
		}
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Line: l.line, Col: l.col})
	return l.tokens
}

var delimiters = map[byte]TokenType{
	'=': TokenAssign,
	'(': TokenLParen,
	')': TokenRParen,
	'[': TokenLBracket,
	']': TokenRBracket,
	'{': TokenLBrace,
	'}': TokenRBrace,
	',': TokenComma,
	':': TokenColon,
}

// emit appends a token at the current position and consumes its text.
func (l *Lexer) emit(tt TokenType, value string) {
	l.tokens = append(l.tokens, Token{Type: tt, Value: value, Line: l.line, Col: l.col})
	for range value {
		l.advance()
	}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.input) {
		return 0
	}
	return l.input[l.pos+1]
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		l.pos++
		l.col++
	}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch != ' ' && ch != '\t' && ch != '\r' {
			return
		}
		l.advance()
	}
}

func (l *Lexer) scanComment() {
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		l.advance()
	}
}

func (l *Lexer) scanString(quote byte) {
	line, startCol := l.line, l.col
	l.advance() // opening quote
	start := l.pos

	for l.pos < len(l.input) && l.input[l.pos] != quote && l.input[l.pos] != '\n' {
		l.advance()
	}
	if l.pos >= len(l.input) || l.input[l.pos] != quote {
		l.tokens = append(l.tokens, Token{Type: TokenIllegal, Value: "unterminated string", Line: line, Col: startCol})
		return
	}

	l.tokens = append(l.tokens, Token{Type: TokenString, Value: l.input[start:l.pos], Line: line, Col: startCol})
	l.advance() // closing quote
}

func (l *Lexer) scanNumber() {
	startCol := l.col
	start := l.pos
	isFloat := false

	if l.peek() == '-' {
		l.advance()
	}
	for l.pos < len(l.input) && unicode.IsDigit(rune(l.input[l.pos])) {
		l.advance()
	}
	if l.peek() == '.' && unicode.IsDigit(rune(l.peekNext())) {
		isFloat = true
		l.advance()
		for l.pos < len(l.input) && unicode.IsDigit(rune(l.input[l.pos])) {
			l.advance()
		}
	}

	tt := TokenInt
	if isFloat {
		tt = TokenFloat
	}
	l.tokens = append(l.tokens, Token{Type: tt, Value: l.input[start:l.pos], Line: l.line, Col: startCol})
}

func (l *Lexer) scanIdentifier() {
	startCol := l.col
	start := l.pos

	l.advance()
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if !unicode.IsLetter(rune(ch)) && !unicode.IsDigit(rune(ch)) && ch != '_' {
			break
		}
		l.advance()
	}

	value := l.input[start:l.pos]
	l.tokens = append(l.tokens, Token{Type: LookupIdent(strings.ToLower(value)), Value: value, Line: l.line, Col: startCol})
}

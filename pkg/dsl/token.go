package dsl

import "fmt"

// TokenType represents the type of a DSL token.
type TokenType uint8

const (
	TokenEOF TokenType = iota
	TokenIllegal
	TokenNewline
	TokenIdent  // variable, operation and column names
	TokenInt    // integer literals
	TokenFloat  // float literals
	TokenString // "quoted strings"

	// Operators
	TokenAssign // =
	TokenPipe   // |>

	// Delimiters
	TokenLParen   // (
	TokenRParen   // )
	TokenLBracket // [
	TokenRBracket // ]
	TokenLBrace   // {
	TokenRBrace   // }
	TokenComma    // ,
	TokenColon    // :

	// Keywords
	TokenReturn // return
	TokenTrue   // true
	TokenFalse  // false
)

var tokenNames = map[TokenType]string{
	TokenEOF:      "EOF",
	TokenIllegal:  "ILLEGAL",
	TokenNewline:  "NEWLINE",
	TokenIdent:    "IDENT",
	TokenInt:      "INT",
	TokenFloat:    "FLOAT",
	TokenString:   "STRING",
	TokenAssign:   "=",
	TokenPipe:     "|>",
	TokenLParen:   "(",
	TokenRParen:   ")",
	TokenLBracket: "[",
	TokenRBracket: "]",
	TokenLBrace:   "{",
	TokenRBrace:   "}",
	TokenComma:    ",",
	TokenColon:    ":",
	TokenReturn:   "RETURN",
	TokenTrue:     "TRUE",
	TokenFalse:    "FALSE",
}

// String returns the string representation of a token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Line  int
	Col   int
}

// String returns a human-readable representation of the token for debugging.
func (t Token) String() string {
	if t.Value != "" {
		return fmt.Sprintf("%s(%s)@%d:%d", t.Type, t.Value, t.Line, t.Col)
	}
	return fmt.Sprintf("%s@%d:%d", t.Type, t.Line, t.Col)
}

// Pos returns the token position.
func (t Token) Pos() Pos { return Pos{Line: t.Line, Col: t.Col} }

// keywords maps keyword strings to token types. Operation names are plain
// identifiers resolved by the compiler.
var keywords = map[string]TokenType{
	"return": TokenReturn,
	"true":   TokenTrue,
	"false":  TokenFalse,
}

// LookupIdent returns the token type for an identifier.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdent
}

package dsl

import (
	"strconv"

	"github.com/pkg/errors"
)

// Parser parses DSL tokens into an AST.
type Parser struct {
	tokens []Token
	pos    int
	errors []error
}

// NewParser creates a new parser for the given tokens.
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens: tokens,
		errors: []error{},
	}
}

// Parse tokenizes and parses src.
func Parse(src string) (*Program, error) {
	return NewParser(NewLexer(src).Tokenize()).Parse()
}

// Parse parses the tokens into a Program AST. It reports the first error.
func (p *Parser) Parse() (*Program, error) {
	program := &Program{
		Statements: []Stmt{},
	}

	for !p.isAtEnd() && len(p.errors) == 0 {
		p.skipNewlines()
		if p.isAtEnd() {
			break
		}

		stmt := p.parseStatement()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		if !p.check(TokenNewline) && !p.isAtEnd() {
			p.error("expected end of statement, got %v", p.peek().Type)
		}
	}

	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return program, nil
}

func (p *Parser) parseStatement() Stmt {
	if p.check(TokenReturn) {
		pos := p.advance().Pos()
		return &ReturnStmt{Pos: pos, Value: p.parseExpression()}
	}

	if p.check(TokenIdent) && p.peekNext().Type == TokenAssign {
		tok := p.advance()
		p.advance() // consume '='
		return &AssignStmt{Pos: tok.Pos(), Name: tok.Value, Value: p.parseExpression()}
	}

	if expr := p.parseExpression(); expr != nil {
		return &ExprStmt{Expr: expr}
	}
	return nil
}

func (p *Parser) parseExpression() Expr {
	left := p.parsePrimary()

	for p.continuesPipe() {
		p.skipNewlines()
		p.advance() // consume '|>'
		name := p.expect(TokenIdent)
		call := p.parseCall(name)
		if call == nil {
			return nil
		}
		left = &PipeExpr{Left: left, Call: call}
	}
	return left
}

// continuesPipe reports whether the next token, possibly on a later line,
// is '|>'.
func (p *Parser) continuesPipe() bool {
	for i := p.pos; i < len(p.tokens); i++ {
		switch p.tokens[i].Type {
		case TokenNewline:
			continue
		case TokenPipe:
			return true
		}
		return false
	}
	return false
}

func (p *Parser) parsePrimary() Expr {
	tok := p.peek()
	switch tok.Type {
	case TokenInt:
		p.advance()
		val, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			p.errorAt(tok, "invalid integer %q", tok.Value)
			return nil
		}
		return &IntLit{Pos: tok.Pos(), Value: val}

	case TokenFloat:
		p.advance()
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			p.errorAt(tok, "invalid float %q", tok.Value)
			return nil
		}
		return &FloatLit{Pos: tok.Pos(), Value: val}

	case TokenString:
		p.advance()
		return &StringLit{Pos: tok.Pos(), Value: tok.Value}

	case TokenTrue, TokenFalse:
		p.advance()
		return &BoolLit{Pos: tok.Pos(), Value: tok.Type == TokenTrue}

	case TokenIdent:
		p.advance()
		if p.check(TokenLParen) {
			return p.parseCall(tok)
		}
		return &Ident{Pos: tok.Pos(), Name: tok.Value}

	case TokenLBracket:
		return p.parseList()

	case TokenLBrace:
		return p.parseSchema()

	case TokenLParen:
		p.advance()
		expr := p.parseExpression()
		p.expect(TokenRParen)
		return expr

	case TokenIllegal:
		p.error("illegal token %q", tok.Value)
		return nil

	default:
		p.error("unexpected token: %v", tok)
		return nil
	}
}

// parseCall parses "(args)" after the function name token.
func (p *Parser) parseCall(name Token) *CallExpr {
	call := &CallExpr{Pos: name.Pos(), Func: name.Value}
	if p.expect(TokenLParen).Type != TokenLParen {
		return nil
	}

	for p.skipNewlines(); !p.check(TokenRParen) && !p.isAtEnd(); p.skipNewlines() {
		if p.check(TokenIdent) && p.peekNext().Type == TokenColon {
			kw := p.advance()
			p.advance() // consume ':'
			call.Kwargs = append(call.Kwargs, KeywordArg{Pos: kw.Pos(), Name: kw.Value, Value: p.parseExpression()})
		} else {
			if len(call.Kwargs) > 0 {
				p.error("positional argument after keyword argument")
				return nil
			}
			call.Args = append(call.Args, p.parseExpression())
		}
		if len(p.errors) > 0 {
			return nil
		}

		p.skipNewlines()
		if !p.check(TokenComma) {
			break
		}
		p.advance() // consume ','
	}

	p.expect(TokenRParen)
	return call
}

func (p *Parser) parseList() Expr {
	list := &ListLit{Pos: p.advance().Pos()}

	for p.skipNewlines(); !p.check(TokenRBracket) && !p.isAtEnd(); p.skipNewlines() {
		list.Elems = append(list.Elems, p.parseExpression())
		if len(p.errors) > 0 {
			return nil
		}
		p.skipNewlines()
		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}

	p.expect(TokenRBracket)
	return list
}

// parseSchema parses {name: type, name: type[d0, d1], ...}.
func (p *Parser) parseSchema() Expr {
	lit := &SchemaLit{Pos: p.advance().Pos()}

	for p.skipNewlines(); !p.check(TokenRBrace) && !p.isAtEnd(); p.skipNewlines() {
		name := p.expect(TokenIdent)
		p.expect(TokenColon)
		typ := p.expect(TokenIdent)
		col := ColumnDecl{Pos: name.Pos(), Name: name.Value, Type: typ.Value}

		if p.check(TokenLBracket) {
			p.advance()
			col.Shape = []int{}
			for !p.check(TokenRBracket) && !p.isAtEnd() {
				dim := p.expect(TokenInt)
				n, err := strconv.Atoi(dim.Value)
				if err != nil && len(p.errors) == 0 {
					p.errorAt(dim, "invalid dimension %q", dim.Value)
				}
				col.Shape = append(col.Shape, n)
				if !p.check(TokenComma) {
					break
				}
				p.advance()
			}
			p.expect(TokenRBracket)
		}
		if len(p.errors) > 0 {
			return nil
		}
		lit.Columns = append(lit.Columns, col)

		p.skipNewlines()
		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}

	p.expect(TokenRBrace)
	return lit
}

// Helper methods

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekNext() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if !p.isAtEnd() {
		p.pos++
	}
	return tok
}

func (p *Parser) check(t TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) expect(t TokenType) Token {
	if p.check(t) {
		return p.advance()
	}
	p.error("expected %v, got %v", t, p.peek().Type)
	return Token{}
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == TokenEOF
}

func (p *Parser) skipNewlines() {
	for p.check(TokenNewline) {
		p.advance()
	}
}

func (p *Parser) error(format string, args ...any) {
	p.errorAt(p.peek(), format, args...)
	p.advance() // skip the offending token
}

func (p *Parser) errorAt(tok Token, format string, args ...any) {
	p.errors = append(p.errors, errors.Wrapf(ErrSyntax, "%s: "+format, append([]any{tok.Pos()}, args...)...))
}

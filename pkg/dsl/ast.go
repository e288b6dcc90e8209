package dsl

import "fmt"

// Pos is a line/column position in the source.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string { return fmt.Sprintf("line %d, col %d", p.Line, p.Col) }

// Node is the interface implemented by all AST nodes.
type Node interface {
	Position() Pos
}

// Expr is the interface implemented by all expression nodes.
type Expr interface {
	Node
	expr()
}

// Stmt is the interface implemented by all statement nodes.
type Stmt interface {
	Node
	stmt()
}

// Program represents a complete DSL program.
type Program struct {
	Statements []Stmt
}

// ===== Statements =====

// AssignStmt binds a value to a variable.
// Example: ds = base |> batch(2)
type AssignStmt struct {
	Pos   Pos
	Name  string
	Value Expr
}

func (s *AssignStmt) Position() Pos { return s.Pos }
func (*AssignStmt) stmt()           {}

// ReturnStmt names the pipeline a program produces.
// Example: return ds
type ReturnStmt struct {
	Pos   Pos
	Value Expr
}

func (s *ReturnStmt) Position() Pos { return s.Pos }
func (*ReturnStmt) stmt()           {}

// ExprStmt represents an expression used as a statement.
type ExprStmt struct {
	Expr Expr
}

func (s *ExprStmt) Position() Pos { return s.Expr.Position() }
func (*ExprStmt) stmt()           {}

// ===== Expressions =====

// Ident is a variable reference, or a column name where one is expected.
type Ident struct {
	Pos  Pos
	Name string
}

func (e *Ident) Position() Pos { return e.Pos }
func (*Ident) expr()           {}

// IntLit represents an integer literal.
type IntLit struct {
	Pos   Pos
	Value int64
}

func (e *IntLit) Position() Pos { return e.Pos }
func (*IntLit) expr()           {}

// FloatLit represents a float literal.
type FloatLit struct {
	Pos   Pos
	Value float64
}

func (e *FloatLit) Position() Pos { return e.Pos }
func (*FloatLit) expr()           {}

// StringLit represents a string literal.
type StringLit struct {
	Pos   Pos
	Value string
}

func (e *StringLit) Position() Pos { return e.Pos }
func (*StringLit) expr()           {}

// BoolLit represents a boolean literal.
type BoolLit struct {
	Pos   Pos
	Value bool
}

func (e *BoolLit) Position() Pos { return e.Pos }
func (*BoolLit) expr()           {}

// ListLit represents a list.
// Example: [label, image]
type ListLit struct {
	Pos   Pos
	Elems []Expr
}

func (e *ListLit) Position() Pos { return e.Pos }
func (*ListLit) expr()           {}

// ColumnDecl is one column of a schema literal.
type ColumnDecl struct {
	Pos   Pos
	Name  string
	Type  string
	Shape []int
}

// SchemaLit represents a schema.
// Example: {label: uint32, image: uint8[28, 28]}
type SchemaLit struct {
	Pos     Pos
	Columns []ColumnDecl
}

func (e *SchemaLit) Position() Pos { return e.Pos }
func (*SchemaLit) expr()           {}

// KeywordArg is a named call argument.
// Example: drop: true
type KeywordArg struct {
	Pos   Pos
	Name  string
	Value Expr
}

// CallExpr represents a source or operation call.
// Example: batch(2, drop: true)
type CallExpr struct {
	Pos    Pos
	Func   string
	Args   []Expr
	Kwargs []KeywordArg
}

func (e *CallExpr) Position() Pos { return e.Pos }
func (*CallExpr) expr()           {}

// Kwarg returns the keyword argument called name, or nil.
func (e *CallExpr) Kwarg(name string) Expr {
	for _, kw := range e.Kwargs {
		if kw.Name == name {
			return kw.Value
		}
	}
	return nil
}

// PipeExpr feeds Left into the operation Call as its input.
// Example: base |> repeat(2)
type PipeExpr struct {
	Left Expr
	Call *CallExpr
}

func (e *PipeExpr) Position() Pos { return e.Call.Pos }
func (*PipeExpr) expr()           {}

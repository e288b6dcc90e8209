// Package dsl implements the pipeline description language:
//
//	base = random_data(44, {label: uint32, image: uint8[28, 28]})
//	ds = base |> repeat(2) |> project(label) |> shuffle(10) |> batch(2)
//	return ds
//
// Programs compile to an ir.Node tree.
package dsl

import (
	"github.com/pkg/errors"
	dataframe "github.com/rocketlaunchr/dataframe-go"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/akhildatla/dstree/pkg/ir"
	"github.com/akhildatla/dstree/pkg/schema"
)

// DSL errors
var (
	ErrSyntax    = errors.New("syntax error")
	ErrUndefined = errors.New("undefined name")
	ErrArgument  = errors.New("invalid argument")
	ErrNoReturn  = errors.New("program does not return a pipeline")
)

// Compiler evaluates DSL programs into IR. Variables persist across calls,
// which is what the REPL relies on.
type Compiler struct {
	frames map[string]*dataframe.DataFrame
	vars   *orderedmap.OrderedMap[string, any]
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithFrames makes in-memory frames available to frame("name").
func WithFrames(frames map[string]*dataframe.DataFrame) Option {
	return func(c *Compiler) {
		for name, df := range frames {
			c.frames[name] = df
		}
	}
}

// NewCompiler creates a new DSL compiler.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{
		frames: make(map[string]*dataframe.DataFrame),
		vars:   orderedmap.New[string, any](),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// AddFrame registers df under name for frame("name").
func (c *Compiler) AddFrame(name string, df *dataframe.DataFrame) {
	c.frames[name] = df
}

// CompilePipeline parses and compiles src with a fresh compiler.
func CompilePipeline(src string, opts ...Option) (*ir.Node, error) {
	program, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return NewCompiler(opts...).Compile(program)
}

// Compile runs the program and returns the pipeline of its first return
// statement.
func (c *Compiler) Compile(program *Program) (*ir.Node, error) {
	for _, stmt := range program.Statements {
		v, err := c.Exec(stmt)
		if err != nil {
			return nil, err
		}
		if _, ok := stmt.(*ReturnStmt); !ok {
			continue
		}
		node, ok := v.(*ir.Node)
		if !ok {
			return nil, errors.Wrapf(ErrArgument, "%s: return needs a pipeline, got %s", stmt.Position(), typeName(v))
		}
		return node, nil
	}
	return nil, errors.WithStack(ErrNoReturn)
}

// Exec runs one statement and returns its value. Assignments return the
// assigned value.
func (c *Compiler) Exec(stmt Stmt) (any, error) {
	switch s := stmt.(type) {
	case *AssignStmt:
		v, err := c.eval(s.Value)
		if err != nil {
			return nil, err
		}
		c.vars.Set(s.Name, v)
		return v, nil
	case *ReturnStmt:
		return c.eval(s.Value)
	case *ExprStmt:
		return c.eval(s.Expr)
	}
	return nil, errors.Errorf("unknown statement type: %T", stmt)
}

// Vars returns the variable names in definition order.
func (c *Compiler) Vars() []string {
	names := make([]string, 0, c.vars.Len())
	for pair := c.vars.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Lookup returns a copy of a variable's value.
func (c *Compiler) Lookup(name string) (any, bool) {
	v, ok := c.vars.Get(name)
	if !ok {
		return nil, false
	}
	return copyValue(v), true
}

// Pipeline returns a copy of the pipeline bound to name.
func (c *Compiler) Pipeline(name string) (*ir.Node, error) {
	v, ok := c.Lookup(name)
	if !ok {
		return nil, errors.Wrapf(ErrUndefined, "%q", name)
	}
	node, ok := v.(*ir.Node)
	if !ok {
		return nil, errors.Wrapf(ErrArgument, "%q is a %s, not a pipeline", name, typeName(v))
	}
	return node, nil
}

// copyValue gives every read its own pipeline, so reusing a variable never
// shares IR nodes between two parents.
func copyValue(v any) any {
	switch x := v.(type) {
	case *ir.Node:
		return x.DeepCopy()
	case *schema.Schema:
		return x.Clone()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = copyValue(e)
		}
		return out
	}
	return v
}

func (c *Compiler) eval(expr Expr) (any, error) {
	switch e := expr.(type) {
	case nil:
		return nil, errors.Wrap(ErrSyntax, "missing expression")
	case *IntLit:
		return e.Value, nil
	case *FloatLit:
		return e.Value, nil
	case *StringLit:
		return e.Value, nil
	case *BoolLit:
		return e.Value, nil
	case *Ident:
		v, ok := c.Lookup(e.Name)
		if !ok {
			return nil, errors.Wrapf(ErrUndefined, "%s: %q", e.Pos, e.Name)
		}
		return v, nil
	case *ListLit:
		out := make([]any, len(e.Elems))
		for i, el := range e.Elems {
			v, err := c.eval(el)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *SchemaLit:
		s := schema.New()
		for _, col := range e.Columns {
			if err := s.AddColumn(col.Name, col.Type, col.Shape); err != nil {
				return nil, errors.Wrapf(ErrArgument, "%s: %v", col.Pos, err)
			}
		}
		return s, nil
	case *CallExpr:
		return c.evalSource(e)
	case *PipeExpr:
		v, err := c.eval(e.Left)
		if err != nil {
			return nil, err
		}
		input, ok := v.(*ir.Node)
		if !ok {
			return nil, errors.Wrapf(ErrArgument, "%s: cannot pipe a %s into %s", e.Call.Pos, typeName(v), e.Call.Func)
		}
		return c.evalOp(e.Call, input)
	}
	return nil, errors.Errorf("unknown expression type: %T", expr)
}

func (c *Compiler) evalSource(call *CallExpr) (any, error) {
	fn, ok := sources[call.Func]
	if !ok {
		if _, isOp := operations[call.Func]; isOp {
			return nil, errors.Wrapf(ErrArgument, "%s: %s needs an input pipeline: x |> %s(...)", call.Pos, call.Func, call.Func)
		}
		return nil, errors.Wrapf(ErrUndefined, "%s: function %q", call.Pos, call.Func)
	}
	return fn(args{c: c, call: call})
}

func (c *Compiler) evalOp(call *CallExpr, input *ir.Node) (any, error) {
	fn, ok := operations[call.Func]
	if !ok {
		return nil, errors.Wrapf(ErrUndefined, "%s: operation %q", call.Pos, call.Func)
	}
	return fn(args{c: c, call: call}, input)
}

func typeName(v any) string {
	switch v.(type) {
	case *ir.Node:
		return "pipeline"
	case *schema.Schema:
		return "schema"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "string"
	case bool:
		return "bool"
	case []any:
		return "list"
	case nil:
		return "nothing"
	}
	return "value"
}

package dsl

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/akhildatla/dstree/pkg/ir"
)

// args reads the arguments of one builtin call.
type args struct {
	c    *Compiler
	call *CallExpr
}

func (a args) errorf(format string, v ...any) error {
	return errors.Wrapf(ErrArgument, "%s: %s: %s", a.call.Pos, a.call.Func, fmt.Sprintf(format, v...))
}

// check rejects more than maxPositional positional arguments (-1 for any
// number) and keywords outside allowed.
func (a args) check(maxPositional int, allowed ...string) error {
	if maxPositional >= 0 && len(a.call.Args) > maxPositional {
		return a.errorf("takes at most %d positional arguments, got %d", maxPositional, len(a.call.Args))
	}
	for _, kw := range a.call.Kwargs {
		ok := false
		for _, name := range allowed {
			ok = ok || kw.Name == name
		}
		if !ok {
			return a.errorf("unknown keyword %q", kw.Name)
		}
	}
	return nil
}

// arg returns positional argument i, else keyword kw, else nil.
func (a args) arg(i int, kw string) Expr {
	if i >= 0 && i < len(a.call.Args) {
		return a.call.Args[i]
	}
	if kw != "" {
		return a.call.Kwarg(kw)
	}
	return nil
}

func (a args) value(i int, kw string) (any, error) {
	e := a.arg(i, kw)
	if e == nil {
		return nil, a.errorf("missing argument %s", argName(i, kw))
	}
	return a.c.eval(e)
}

func (a args) int(i int, kw string, required bool, def int64) (int64, error) {
	if a.arg(i, kw) == nil && !required {
		return def, nil
	}
	v, err := a.value(i, kw)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, a.errorf("%s must be an int, got %s", argName(i, kw), typeName(v))
	}
	return n, nil
}

func (a args) bool(kw string, def bool) (bool, error) {
	if a.call.Kwarg(kw) == nil {
		return def, nil
	}
	v, err := a.value(-1, kw)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, a.errorf("%s must be a bool, got %s", kw, typeName(v))
	}
	return b, nil
}

func (a args) str(i int, kw string) (string, error) {
	v, err := a.value(i, kw)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", a.errorf("%s must be a string, got %s", argName(i, kw), typeName(v))
	}
	return s, nil
}

// names reads column or op names. Bare identifiers are names, not variable
// reads; lists are flattened.
func (a args) names(exprs ...Expr) ([]string, error) {
	var out []string
	for _, e := range exprs {
		switch x := e.(type) {
		case *Ident:
			out = append(out, x.Name)
		case *StringLit:
			out = append(out, x.Value)
		case *ListLit:
			inner, err := a.names(x.Elems...)
			if err != nil {
				return nil, err
			}
			out = append(out, inner...)
		case nil:
			return nil, a.errorf("missing column names")
		default:
			return nil, a.errorf("expected a name or a list of names at %s", e.Position())
		}
	}
	return out, nil
}

// pipelines evaluates every positional argument as a pipeline.
func (a args) pipelines() ([]*ir.Node, error) {
	if err := a.check(-1); err != nil {
		return nil, err
	}
	nodes := make([]*ir.Node, len(a.call.Args))
	for i := range a.call.Args {
		v, err := a.value(i, "")
		if err != nil {
			return nil, err
		}
		node, ok := v.(*ir.Node)
		if !ok {
			return nil, a.errorf("argument %d must be a pipeline, got %s", i+1, typeName(v))
		}
		nodes[i] = node
	}
	return nodes, nil
}

func argName(i int, kw string) string {
	if kw != "" {
		return kw
	}
	return fmt.Sprintf("argument %d", i+1)
}

package ir

import (
	"github.com/pkg/errors"

	"github.com/akhildatla/dstree/pkg/exec"
)

// Validate checks the parameters and arity of this node only.
func (n *Node) Validate() error {
	if err := n.validateArity(); err != nil {
		return err
	}

	invalid := func(format string, args ...any) error {
		return errors.Wrapf(ErrInvalidParams, "%s: "+format, append([]any{n.kind}, args...)...)
	}

	switch p := n.params.(type) {
	case *exec.RandomDataParams:
		if p.TotalRows < 0 {
			return invalid("total rows must not be negative, got %d", p.TotalRows)
		}
		if p.Schema == nil || p.Schema.Len() == 0 {
			return invalid("schema has no columns")
		}
	case *FileSourceParams:
		if p.Path == "" {
			return invalid("empty path")
		}
		if p.NumSamples < 0 {
			return invalid("num samples must not be negative, got %d", p.NumSamples)
		}
	case *exec.FrameParams:
		if p.Frame == nil {
			return invalid("frame %q is nil", p.Name)
		}
	case *exec.RepeatParams:
		if p.Count == 0 || p.Count < -1 {
			return invalid("count must be positive or -1, got %d", p.Count)
		}
	case *exec.ProjectParams:
		if len(p.Columns) == 0 {
			return invalid("no columns")
		}
		if err := uniqueColumns(p.Columns); err != nil {
			return invalid("%v", err)
		}
	case *exec.RenameParams:
		if len(p.From) == 0 || len(p.From) != len(p.To) {
			return invalid("%d input columns but %d output columns", len(p.From), len(p.To))
		}
	case *exec.ShuffleParams:
		if p.BufferSize <= 1 {
			return invalid("buffer size must be greater than 1, got %d", p.BufferSize)
		}
	case *exec.BatchParams:
		if p.BatchSize <= 0 {
			return invalid("batch size must be positive, got %d", p.BatchSize)
		}
	case *MapParams:
		if len(p.Operations) == 0 {
			return invalid("no operations")
		}
		if p.OutputSchema != nil && len(p.OutputColumns) != p.OutputSchema.Len() {
			return invalid("%d output columns but output schema has %d", len(p.OutputColumns), p.OutputSchema.Len())
		}
	case *exec.FilterParams:
		if p.Predicate == "" {
			return invalid("empty predicate")
		}
	case *exec.CountParams:
		if n.kind == KindSkip && p.Count < 0 {
			return invalid("count must not be negative, got %d", p.Count)
		}
		if n.kind == KindTake && (p.Count == 0 || p.Count < -1) {
			return invalid("count must be positive or -1, got %d", p.Count)
		}
	}
	return nil
}

func (n *Node) validateArity() error {
	got := len(n.children)
	switch {
	case n.kind >= numKinds:
		return errors.Wrapf(ErrUnknownKind, "%d", n.kind)
	case n.kind.IsSource():
		if got != 0 {
			return errors.Wrapf(ErrInvalidParams, "%s: source must not have children, got %d", n.kind, got)
		}
	case n.kind == KindConcat || n.kind == KindZip:
		if got < 2 {
			return errors.Wrapf(ErrInvalidParams, "%s: needs at least 2 children, got %d", n.kind, got)
		}
	default:
		if got != 1 {
			return errors.Wrapf(ErrInvalidParams, "%s: needs exactly 1 child, got %d", n.kind, got)
		}
	}
	for _, c := range n.children {
		if c == nil {
			return errors.Wrapf(ErrInvalidParams, "%s: nil child", n.kind)
		}
	}
	return nil
}

// ValidateTree validates every node of the subtree, root first.
func ValidateTree(root *Node) error {
	if root == nil {
		return errors.Wrap(ErrInvalidParams, "nil root")
	}
	if err := root.Validate(); err != nil {
		return err
	}
	for _, c := range root.children {
		if err := ValidateTree(c); err != nil {
			return err
		}
	}
	return nil
}

func uniqueColumns(cols []string) error {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if seen[c] {
			return errors.Errorf("duplicate column %q", c)
		}
		seen[c] = true
	}
	return nil
}

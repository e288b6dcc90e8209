package opt

import (
	"k8s.io/klog/v2"

	"github.com/akhildatla/dstree/pkg/exec"
)

// RepeatFoldPass collapses a counting operator sitting directly on top of
// another of the same kind. For example:
//
//	RepeatOp [count: 2]
//	   RepeatOp [count: 3]
//
// Becomes:
//
//	RepeatOp [count: 6]
//
// Skips add up, takes keep the smaller count. -1 is infinite for repeat and
// "all rows" for take.
type RepeatFoldPass struct{}

// Name implements exec.Pass.
func (RepeatFoldPass) Name() string { return "RepeatFoldPass" }

// Run implements exec.Pass.
func (p RepeatFoldPass) Run(t *exec.Tree) (bool, error) {
	changed := false
	for _, h := range preOrder(t) {
		op := t.Op(h)
		if op == nil {
			continue
		}
		for {
			c := onlyChild(t, h)
			if c == exec.NoHandle {
				break
			}
			inner := t.Op(c)
			if inner.Kind != op.Kind || inner.Cache != nil || !fold(op, inner) {
				break
			}
			if err := t.RemoveNode(c); err != nil {
				return changed, err
			}
			klog.V(3).Infof("%s: folded %s (%d) into %d", p.Name(), inner.Name(), c, h)
			changed = true
		}
	}
	return changed, nil
}

// fold merges inner's count into outer and reports whether it could.
func fold(outer, inner *exec.Operator) bool {
	switch outer.Kind {
	case exec.OpRepeat:
		o, ok1 := outer.Params.(*exec.RepeatParams)
		i, ok2 := inner.Params.(*exec.RepeatParams)
		if !ok1 || !ok2 {
			return false
		}
		if o.Count == -1 || i.Count == -1 {
			o.Count = -1
		} else {
			o.Count *= i.Count
		}
		return true

	case exec.OpSkip:
		o, ok1 := outer.Params.(*exec.CountParams)
		i, ok2 := inner.Params.(*exec.CountParams)
		if !ok1 || !ok2 {
			return false
		}
		o.Count += i.Count
		return true

	case exec.OpTake:
		o, ok1 := outer.Params.(*exec.CountParams)
		i, ok2 := inner.Params.(*exec.CountParams)
		if !ok1 || !ok2 {
			return false
		}
		if o.Count == -1 || (i.Count != -1 && i.Count < o.Count) {
			o.Count = i.Count
		}
		return true
	}
	return false
}

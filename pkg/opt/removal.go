package opt

import (
	"k8s.io/klog/v2"

	"github.com/akhildatla/dstree/pkg/exec"
)

// NoOpRemovalPass drops operators that do not change the rows flowing
// through them:
//
//	RepeatOp [count: 1]
//	SkipOp   [count: 0]
//	TakeOp   [count: -1]
//
// Cached operators are left alone.
type NoOpRemovalPass struct{}

// Name implements exec.Pass.
func (NoOpRemovalPass) Name() string { return "NoOpRemovalPass" }

// Run implements exec.Pass.
func (p NoOpRemovalPass) Run(t *exec.Tree) (bool, error) {
	changed := false
	for _, h := range preOrder(t) {
		op := t.Op(h)
		if op == nil || op.Cache != nil || !isNoOp(op) {
			continue
		}
		if len(t.Children(h)) != 1 {
			continue
		}
		if err := t.RemoveNode(h); err != nil {
			return changed, err
		}
		klog.V(3).Infof("%s: removed %s (%d)", p.Name(), op.Name(), h)
		changed = true
	}
	return changed, nil
}

func isNoOp(op *exec.Operator) bool {
	switch op.Kind {
	case exec.OpRepeat, exec.OpEpochCtrl:
		rp, ok := op.Params.(*exec.RepeatParams)
		return ok && rp.Count == 1
	case exec.OpSkip:
		cp, ok := op.Params.(*exec.CountParams)
		return ok && cp.Count == 0
	case exec.OpTake:
		cp, ok := op.Params.(*exec.CountParams)
		return ok && cp.Count == -1
	}
	return false
}

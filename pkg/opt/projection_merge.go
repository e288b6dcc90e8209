package opt

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/akhildatla/dstree/pkg/exec"
	"github.com/akhildatla/dstree/pkg/schema"
)

// ProjectMergePass removes a projection that is immediately re-projected:
//
//	ProjectOp [columns: a]
//	   ProjectOp [columns: a,b]
//
// Becomes:
//
//	ProjectOp [columns: a]
//
// The outer projection must only name columns the inner one kept.
type ProjectMergePass struct{}

// Name implements exec.Pass.
func (ProjectMergePass) Name() string { return "ProjectMergePass" }

// Run implements exec.Pass.
func (p ProjectMergePass) Run(t *exec.Tree) (bool, error) {
	changed := false
	for _, h := range preOrder(t) {
		op := t.Op(h)
		if op == nil || op.Kind != exec.OpProject {
			continue
		}
		for {
			c := onlyChild(t, h)
			if c == exec.NoHandle {
				break
			}
			inner := t.Op(c)
			if inner.Kind != exec.OpProject || inner.Cache != nil {
				break
			}
			kept := make(map[string]bool)
			for _, col := range inner.Params.(*exec.ProjectParams).Columns {
				kept[col] = true
			}
			for _, col := range op.Params.(*exec.ProjectParams).Columns {
				if !kept[col] {
					return changed, errors.Wrapf(schema.ErrUnknownColumn, "project %q after inner projection", col)
				}
			}
			if err := t.RemoveNode(c); err != nil {
				return changed, err
			}
			klog.V(3).Infof("%s: merged projection %d into %d", p.Name(), c, h)
			changed = true
		}
	}
	return changed, nil
}

package opt

import (
	"k8s.io/klog/v2"

	"github.com/akhildatla/dstree/pkg/exec"
)

// CacheInsertionPass materializes cache requests: every operator carrying a
// cache flag gets a CacheOp inserted directly above it.
type CacheInsertionPass struct{}

// Name implements exec.Pass.
func (CacheInsertionPass) Name() string { return "CacheInsertionPass" }

// Run implements exec.Pass.
func (p CacheInsertionPass) Run(t *exec.Tree) (bool, error) {
	changed := false
	for _, h := range preOrder(t) {
		op := t.Op(h)
		if op == nil || op.Cache == nil {
			continue
		}
		if parent := t.Op(t.Parent(h)); parent != nil && parent.Kind == exec.OpCache {
			continue
		}
		params := *op.Cache
		n, err := t.InsertAbove(h, &exec.Operator{
			Kind:          exec.OpCache,
			NumWorkers:    1,
			ConnectorSize: op.ConnectorSize,
			Params:        &params,
		})
		if err != nil {
			return changed, err
		}
		klog.V(3).Infof("%s: cache (%d) above %s (%d)", p.Name(), n, op.Name(), h)
		changed = true
	}
	return changed, nil
}

// Package opt holds the rewrite passes run over a pipeline before it executes:
// the default pre-passes, IR validation, and the getter passes that prune a
// tree down to what a metadata query needs.
package opt

import (
	"github.com/akhildatla/dstree/pkg/exec"
	"github.com/akhildatla/dstree/pkg/ir"
)

// IRPass rewrites the IR before it is built. It returns the (possibly new)
// root and whether anything changed.
type IRPass interface {
	Name() string
	Run(root *ir.Node) (*ir.Node, bool, error)
}

// Optimizer assembles the pre-pass pipeline.
type Optimizer struct {
	enableNoOpRemoval    bool
	enableRepeatFolding  bool
	enableProjectMerge   bool
	enableCacheInsertion bool
	numEpochs            int
}

// Option is a functional option for the Optimizer.
type Option func(*Optimizer)

// WithNoOpRemoval enables removal of pass-through operators.
func WithNoOpRemoval() Option {
	return func(o *Optimizer) {
		o.enableNoOpRemoval = true
	}
}

// WithRepeatFolding enables folding of stacked repeat/skip/take operators.
func WithRepeatFolding() Option {
	return func(o *Optimizer) {
		o.enableRepeatFolding = true
	}
}

// WithProjectMerge enables merging of stacked projections.
func WithProjectMerge() Option {
	return func(o *Optimizer) {
		o.enableProjectMerge = true
	}
}

// WithCacheInsertion enables cache operator insertion.
func WithCacheInsertion() Option {
	return func(o *Optimizer) {
		o.enableCacheInsertion = true
	}
}

// WithEpochControl prepares the tree for numEpochs epochs.
func WithEpochControl(numEpochs int) Option {
	return func(o *Optimizer) {
		o.numEpochs = numEpochs
	}
}

// WithAllOptimizations enables all optimizations.
func WithAllOptimizations() Option {
	return func(o *Optimizer) {
		o.enableNoOpRemoval = true
		o.enableRepeatFolding = true
		o.enableProjectMerge = true
		o.enableCacheInsertion = true
	}
}

// New creates a new Optimizer with the given options.
func New(opts ...Option) *Optimizer {
	o := &Optimizer{numEpochs: 1}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// PrePasses returns the enabled tree passes in the order they must run.
func (o *Optimizer) PrePasses() exec.PassList {
	var passes exec.PassList

	if o.enableNoOpRemoval {
		passes = append(passes, NoOpRemovalPass{})
	}

	if o.enableRepeatFolding {
		passes = append(passes, RepeatFoldPass{})
	}

	if o.enableProjectMerge {
		passes = append(passes, ProjectMergePass{})
	}

	if o.enableCacheInsertion {
		passes = append(passes, CacheInsertionPass{})
	}

	if o.numEpochs != 1 {
		passes = append(passes, EpochCtrlPass{NumEpochs: o.numEpochs})
	}

	return passes
}

// IRPasses returns the passes run over the IR before it is built.
func (o *Optimizer) IRPasses() []IRPass {
	return []IRPass{ValidationPass{}}
}

// ValidationPass fails on the first node with invalid parameters.
type ValidationPass struct{}

// Name implements IRPass.
func (ValidationPass) Name() string { return "ValidationPass" }

// Run implements IRPass.
func (ValidationPass) Run(root *ir.Node) (*ir.Node, bool, error) {
	return root, false, ir.ValidateTree(root)
}

// preOrder snapshots the reachable handles so passes can mutate the tree
// while iterating.
func preOrder(t *exec.Tree) []exec.Handle {
	var hs []exec.Handle
	_ = t.Walk(func(h exec.Handle, _ int) error {
		hs = append(hs, h)
		return nil
	})
	return hs
}

// onlyChild returns h's single child, or NoHandle.
func onlyChild(t *exec.Tree, h exec.Handle) exec.Handle {
	children := t.Children(h)
	if len(children) != 1 {
		return exec.NoHandle
	}
	return children[0]
}

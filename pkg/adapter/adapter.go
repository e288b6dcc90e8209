package adapter

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/akhildatla/dstree/pkg/config"
	"github.com/akhildatla/dstree/pkg/exec"
	"github.com/akhildatla/dstree/pkg/ir"
	"github.com/akhildatla/dstree/pkg/opt"
)

// BuildTree lowers the IR rooted at root into a new tree and assigns its
// root. The tree is returned unprepared.
func BuildTree(root *ir.Node, cfg *config.Config, opts ...exec.TreeOption) (*exec.Tree, error) {
	if root == nil {
		return nil, errors.Wrap(exec.ErrInvalidState, "build tree: nil root")
	}
	tree := exec.NewTree(opts...)
	entry, err := DFSBuild(root, tree, config.OrDefault(cfg))
	if err != nil {
		return nil, err
	}
	if err := tree.AssignRoot(entry); err != nil {
		return nil, err
	}
	return tree, nil
}

// TreeAdapter compiles IR pipelines into ready trees.
type TreeAdapter struct {
	cfg       *config.Config
	optimizer *opt.Optimizer
	getter    *opt.GetterMode
	replace   bool
}

// Option is a functional option for the TreeAdapter.
type Option func(*TreeAdapter)

// WithOptimizer replaces the default optimizer.
func WithOptimizer(o *opt.Optimizer) Option {
	return func(a *TreeAdapter) {
		a.optimizer = o
	}
}

// WithGetterMode prunes compiled trees for a metadata query. The getter pass
// runs after the default pre-passes.
func WithGetterMode(mode opt.GetterMode) Option {
	return func(a *TreeAdapter) {
		a.getter = &mode
	}
}

// WithGetterOnly is WithGetterMode without the default pre-passes.
func WithGetterOnly(mode opt.GetterMode) Option {
	return func(a *TreeAdapter) {
		a.getter = &mode
		a.replace = true
	}
}

// NewTreeAdapter creates an adapter. Without WithOptimizer it runs every
// default pre-pass with the epoch count from cfg.
func NewTreeAdapter(cfg *config.Config, opts ...Option) *TreeAdapter {
	a := &TreeAdapter{cfg: config.OrDefault(cfg)}
	for _, o := range opts {
		o(a)
	}
	if a.optimizer == nil {
		a.optimizer = opt.New(opt.WithAllOptimizations(), opt.WithEpochControl(a.cfg.NumEpochs))
	}
	return a
}

// Compile validates and lowers a copy of root, runs the pre-passes and
// returns the finalized tree. root itself is never modified.
func (a *TreeAdapter) Compile(root *ir.Node) (*exec.Tree, error) {
	if root == nil {
		return nil, errors.Wrap(exec.ErrInvalidState, "compile: nil pipeline")
	}
	node := root.DeepCopy()
	for _, p := range a.optimizer.IRPasses() {
		var err error
		if node, _, err = p.Run(node); err != nil {
			return nil, &exec.PassError{Pass: p.Name(), Err: err}
		}
	}

	tree, err := BuildTree(node, a.cfg, exec.WithPrePasses(a.optimizer.PrePasses()...))
	if err != nil {
		return nil, err
	}
	if a.getter != nil {
		if err := tree.SetPrePassOverride(opt.GetterOverride(*a.getter, a.replace)); err != nil {
			return nil, err
		}
	}
	if err := tree.PrepareTreePreAction(); err != nil {
		return nil, err
	}
	if err := tree.Finalize(); err != nil {
		return nil, err
	}
	klog.V(2).Infof("tree %s compiled:\n%s", tree.ID(), tree)
	return tree, nil
}

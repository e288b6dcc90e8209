package opt

import (
	"fmt"

	"github.com/emirpasic/gods/v2/stacks/arraystack"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/akhildatla/dstree/pkg/exec"
)

// GetterMode selects the metadata query a GetterPass prunes for.
type GetterMode uint8

const (
	// OutputShapeAndType keeps only what determines column names, types and shapes.
	OutputShapeAndType GetterMode = iota
	// DatasetSize keeps only what determines the number of rows.
	DatasetSize
)

func (m GetterMode) String() string {
	switch m {
	case OutputShapeAndType:
		return "OutputShapeAndType"
	case DatasetSize:
		return "DatasetSize"
	default:
		return fmt.Sprintf("GetterMode(%d)", m)
	}
}

// Action is what a GetterPass does with an operator.
type Action uint8

const (
	actionUnset Action = iota
	// Keep leaves the operator as is.
	Keep
	// Drop removes the operator and splices its children into its place.
	// Operators with several children are kept: they govern how their inputs merge.
	Drop
	// Identity keeps a map operator but replaces its compute with a passthrough.
	Identity
	// Simplify keeps only the first input, then drops the operator.
	Simplify
)

func (a Action) String() string {
	switch a {
	case Keep:
		return "keep"
	case Drop:
		return "drop"
	case Identity:
		return "identity"
	case Simplify:
		return "simplify"
	default:
		return "unset"
	}
}

// Policy assigns an action to every operator kind.
type Policy [exec.NumOpKinds]Action

var shapePolicy = Policy{
	exec.OpRandomData: Keep,
	exec.OpCSV:        Keep,
	exec.OpJSON:       Keep,
	exec.OpParquet:    Keep,
	exec.OpFrame:      Keep,
	exec.OpRepeat:     Drop,
	exec.OpEpochCtrl:  Drop,
	exec.OpProject:    Keep,
	exec.OpRename:     Keep,
	exec.OpShuffle:    Drop,
	exec.OpBatch:      Keep,
	exec.OpMap:        Identity,
	exec.OpFilter:     Drop,
	exec.OpSkip:       Drop,
	exec.OpTake:       Drop,
	exec.OpConcat:     Simplify,
	exec.OpZip:        Keep,
	exec.OpCache:      Drop,
}

var sizePolicy = Policy{
	exec.OpRandomData: Keep,
	exec.OpCSV:        Keep,
	exec.OpJSON:       Keep,
	exec.OpParquet:    Keep,
	exec.OpFrame:      Keep,
	exec.OpRepeat:     Keep,
	exec.OpEpochCtrl:  Drop,
	exec.OpProject:    Keep,
	exec.OpRename:     Keep,
	exec.OpShuffle:    Drop,
	exec.OpBatch:      Keep,
	exec.OpMap:        Drop,
	exec.OpFilter:     Keep,
	exec.OpSkip:       Keep,
	exec.OpTake:       Keep,
	exec.OpConcat:     Keep,
	exec.OpZip:        Keep,
	exec.OpCache:      Drop,
}

// PolicyFor returns the built-in policy of a mode.
func PolicyFor(mode GetterMode) (Policy, error) {
	switch mode {
	case OutputShapeAndType:
		return shapePolicy, nil
	case DatasetSize:
		return sizePolicy, nil
	}
	return Policy{}, errors.Errorf("unknown getter mode %d", mode)
}

// GetterPass prunes a tree so that a metadata query can be answered without
// pulling data through it.
type GetterPass struct {
	mode   GetterMode
	policy Policy
	err    error
}

// NewGetterPass creates the pass for one of the built-in modes.
func NewGetterPass(mode GetterMode) *GetterPass {
	policy, err := PolicyFor(mode)
	return &GetterPass{mode: mode, policy: policy, err: err}
}

// NewGetterPassWithPolicy creates a pass with a caller-supplied policy.
func NewGetterPassWithPolicy(mode GetterMode, policy Policy) *GetterPass {
	return &GetterPass{mode: mode, policy: policy}
}

// Name implements exec.Pass.
func (p *GetterPass) Name() string { return "GetterPass(" + p.mode.String() + ")" }

// Run implements exec.Pass with a single pre-order traversal.
func (p *GetterPass) Run(t *exec.Tree) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	changed := false
	stack := arraystack.New[exec.Handle]()
	if root := t.Root(); root != exec.NoHandle {
		stack.Push(root)
	}
	for !stack.Empty() {
		h, _ := stack.Pop()
		op := t.Op(h)
		if op.Kind >= exec.NumOpKinds || p.policy[op.Kind] == actionUnset {
			return changed, errors.Errorf("no getter action for %s", op.Name())
		}
		action := p.policy[op.Kind]

		switch action {
		case Identity:
			if passthrough(op) {
				klog.V(3).Infof("%s: %s compute replaced by identity", p.Name(), op.Name())
				changed = true
			}
		case Simplify:
			children := t.Children(h)
			for _, c := range children[min(1, len(children)):] {
				if err := t.DetachChild(h, c); err != nil {
					return changed, err
				}
				changed = true
			}
			action = Drop
		}

		children := t.Children(h)
		if action == Drop && len(children) <= 1 {
			if err := t.RemoveNode(h); err != nil {
				return changed, err
			}
			klog.V(3).Infof("%s: dropped %s (%d)", p.Name(), op.Name(), h)
			changed = true
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack.Push(children[i])
		}
	}

	if t.Root() == exec.NoHandle {
		return changed, errors.WithStack(exec.ErrEmptyPipeline)
	}
	return changed, nil
}

// passthrough turns a map into an identity. It reports whether anything changed.
func passthrough(op *exec.Operator) bool {
	mp, ok := op.Params.(*exec.MapParams)
	if !ok {
		return false
	}
	if mp.Passthrough && len(mp.Callbacks) == 0 {
		return false
	}
	mp.Passthrough = true
	mp.Operations = nil
	mp.Callbacks = nil
	return true
}

// GetterOverride returns a pre-pass override for exec.Tree.SetPrePassOverride
// that runs a GetterPass for mode after the default passes, or instead of
// them when replace is set.
func GetterOverride(mode GetterMode, replace bool) func(exec.PassList) exec.PassList {
	return func(pre exec.PassList) exec.PassList {
		if replace {
			pre = nil
		}
		return append(pre, NewGetterPass(mode))
	}
}

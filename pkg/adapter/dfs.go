// Package adapter lowers an IR pipeline into an exec.Tree and drives the
// pass pipeline over it.
package adapter

import (
	"github.com/emirpasic/gods/v2/stacks/arraystack"
	"github.com/pkg/errors"

	"github.com/akhildatla/dstree/pkg/config"
	"github.com/akhildatla/dstree/pkg/exec"
)

// Buildable is an IR node that lowers itself to an operator chain.
// *ir.Node satisfies Buildable[*ir.Node].
type Buildable[N any] interface {
	comparable
	Build(cfg *config.Config) ([]*exec.Operator, error)
	Children() []N
}

type dfsFrame[N any] struct {
	node N
	// attach is the tail operator of the parent's chain, or NoHandle for the root.
	attach exec.Handle
}

// DFSBuild builds every node of the IR tree rooted at root, pre-order, and
// associates the operators with tree. The operators of one node are chained
// op[0] -> op[1] -> ...; each child's chain head is attached below the LAST
// operator of its parent's chain. It returns the head of root's chain.
//
// A failure aborts the whole build. Operators associated before the failure
// stay in tree, which must then be discarded.
func DFSBuild[N Buildable[N]](root N, tree *exec.Tree, cfg *config.Config) (exec.Handle, error) {
	if tree == nil {
		return exec.NoHandle, errors.Wrap(exec.ErrInvalidState, "dfs build: nil tree")
	}
	entry := exec.NoHandle
	stack := arraystack.New[dfsFrame[N]]()
	stack.Push(dfsFrame[N]{node: root, attach: exec.NoHandle})

	for !stack.Empty() {
		f, _ := stack.Pop()
		ops, err := f.node.Build(cfg)
		if err != nil {
			return exec.NoHandle, errors.Wrap(err, "dfs build")
		}
		if len(ops) == 0 {
			return exec.NoHandle, errors.WithStack(exec.ErrEmptyBuildResult)
		}

		head := exec.NoHandle
		prev := exec.NoHandle
		for _, op := range ops {
			h, err := tree.AssociateNode(op)
			if err != nil {
				return exec.NoHandle, err
			}
			if prev == exec.NoHandle {
				head = h
			} else if err := tree.AddChild(prev, h); err != nil {
				return exec.NoHandle, err
			}
			prev = h
		}
		tail := prev

		if f.attach == exec.NoHandle {
			entry = head
		} else if err := tree.AddChild(f.attach, head); err != nil {
			return exec.NoHandle, err
		}

		// Reverse push keeps children in order and handles in pre-order.
		children := f.node.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack.Push(dfsFrame[N]{node: children[i], attach: tail})
		}
	}
	return entry, nil
}

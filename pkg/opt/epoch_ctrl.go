package opt

import (
	"github.com/akhildatla/dstree/pkg/exec"
)

// EpochCtrlPass puts an EpochCtrlOp at the root so the pipeline replays for
// NumEpochs epochs. -1 runs forever.
type EpochCtrlPass struct {
	NumEpochs int
}

// Name implements exec.Pass.
func (EpochCtrlPass) Name() string { return "EpochCtrlPass" }

// Run implements exec.Pass.
func (p EpochCtrlPass) Run(t *exec.Tree) (bool, error) {
	root := t.Root()
	if p.NumEpochs == 1 || root == exec.NoHandle || t.Op(root).Kind == exec.OpEpochCtrl {
		return false, nil
	}
	_, err := t.InsertAbove(root, &exec.Operator{
		Kind:   exec.OpEpochCtrl,
		Params: &exec.RepeatParams{Count: p.NumEpochs},
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

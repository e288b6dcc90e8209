package exec

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOp(kind OpKind) *Operator {
	return &Operator{Kind: kind, NumWorkers: 4, ConnectorSize: 16}
}

// chain associates ops and links them root-first; it returns their handles.
func chain(t *testing.T, tree *Tree, kinds ...OpKind) []Handle {
	t.Helper()
	hs := make([]Handle, len(kinds))
	for i, k := range kinds {
		h, err := tree.AssociateNode(newOp(k))
		require.NoError(t, err)
		hs[i] = h
		if i > 0 {
			require.NoError(t, tree.AddChild(hs[i-1], h))
		}
	}
	require.NoError(t, tree.AssignRoot(hs[0]))
	return hs
}

func preOrder(t *testing.T, tree *Tree) []string {
	t.Helper()
	var names []string
	require.NoError(t, tree.Walk(func(h Handle, _ int) error {
		names = append(names, tree.Op(h).Name())
		return nil
	}))
	return names
}

func TestAssignRoot_Invariants(t *testing.T) {
	tree := NewTree()

	err := tree.AssignRoot(0)
	assert.True(t, errors.Is(err, ErrInvalidState), "unassociated root must fail")

	h, err := tree.AssociateNode(newOp(OpBatch))
	require.NoError(t, err)
	require.NoError(t, tree.AssignRoot(h))

	err = tree.AssignRoot(h)
	assert.True(t, errors.Is(err, ErrInvalidState), "second root must fail")
	assert.Equal(t, h, tree.Root())
}

func TestAssociateNode_AfterFinalize(t *testing.T) {
	tree := NewTree()
	chain(t, tree, OpBatch, OpRandomData)
	require.NoError(t, tree.Finalize())
	assert.Equal(t, StateReady, tree.State())

	_, err := tree.AssociateNode(newOp(OpShuffle))
	assert.True(t, errors.Is(err, ErrInvalidState))

	_, err = tree.AssociateNode(nil)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestAddChild_Rejects(t *testing.T) {
	tree := NewTree()
	hs := chain(t, tree, OpBatch, OpProject)

	assert.Error(t, tree.AddChild(hs[0], hs[0]), "self link")
	assert.Error(t, tree.AddChild(hs[0], hs[1]), "second parent")
	assert.Error(t, tree.AddChild(hs[1], hs[0]), "root as child")
	assert.Error(t, tree.AddChild(hs[1], 42), "unassociated child")
}

func TestRemoveNode_Splice(t *testing.T) {
	tree := NewTree()
	hs := chain(t, tree, OpBatch, OpShuffle, OpProject, OpRandomData)

	require.NoError(t, tree.RemoveNode(hs[1]))
	assert.Equal(t, []string{"BatchOp", "ProjectOp", "RandomDataOp"}, preOrder(t, tree))
	assert.Equal(t, hs[0], tree.Parent(hs[2]))
	assert.Nil(t, tree.Op(hs[1]))
	assert.Equal(t, 3, tree.NumOps())
}

func TestRemoveNode_KeepsSiblingOrder(t *testing.T) {
	tree := NewTree()
	concat, _ := tree.AssociateNode(newOp(OpConcat))
	a, _ := tree.AssociateNode(newOp(OpRandomData))
	mid, _ := tree.AssociateNode(newOp(OpRepeat))
	b, _ := tree.AssociateNode(newOp(OpCSV))
	c, _ := tree.AssociateNode(newOp(OpJSON))
	require.NoError(t, tree.AddChild(concat, a))
	require.NoError(t, tree.AddChild(concat, mid))
	require.NoError(t, tree.AddChild(mid, b))
	require.NoError(t, tree.AddChild(concat, c))
	require.NoError(t, tree.AssignRoot(concat))

	require.NoError(t, tree.RemoveNode(mid))
	assert.Equal(t, []Handle{a, b, c}, tree.Children(concat))
}

func TestRemoveNode_Root(t *testing.T) {
	tree := NewTree()
	hs := chain(t, tree, OpEpochCtrl, OpBatch)

	require.NoError(t, tree.RemoveNode(hs[0]))
	assert.Equal(t, hs[1], tree.Root())
	assert.Equal(t, NoHandle, tree.Parent(hs[1]))

	require.NoError(t, tree.RemoveNode(hs[1]))
	assert.Equal(t, NoHandle, tree.Root())
	assert.True(t, errors.Is(tree.Finalize(), ErrEmptyPipeline))
}

func TestRemoveNode_RootWithManyChildren(t *testing.T) {
	tree := NewTree()
	zip, _ := tree.AssociateNode(newOp(OpZip))
	a, _ := tree.AssociateNode(newOp(OpRandomData))
	b, _ := tree.AssociateNode(newOp(OpRandomData))
	require.NoError(t, tree.AddChild(zip, a))
	require.NoError(t, tree.AddChild(zip, b))
	require.NoError(t, tree.AssignRoot(zip))

	assert.True(t, errors.Is(tree.RemoveNode(zip), ErrInvalidState))
}

func TestInsertAbove(t *testing.T) {
	tree := NewTree()
	hs := chain(t, tree, OpBatch, OpRandomData)

	cache, err := tree.InsertAbove(hs[1], &Operator{Kind: OpCache, Params: &CacheParams{SessionID: 7}})
	require.NoError(t, err)
	assert.Equal(t, []string{"BatchOp", "CacheOp", "RandomDataOp"}, preOrder(t, tree))
	assert.Equal(t, cache, tree.Parent(hs[1]))

	epoch, err := tree.InsertAbove(hs[0], newOp(OpEpochCtrl))
	require.NoError(t, err)
	assert.Equal(t, epoch, tree.Root())
	assert.Equal(t, []string{"EpochCtrlOp", "BatchOp", "CacheOp", "RandomDataOp"}, preOrder(t, tree))
}

func TestDetachChild(t *testing.T) {
	tree := NewTree()
	concat, _ := tree.AssociateNode(newOp(OpConcat))
	a, _ := tree.AssociateNode(newOp(OpRandomData))
	rep, _ := tree.AssociateNode(newOp(OpRepeat))
	b, _ := tree.AssociateNode(newOp(OpCSV))
	require.NoError(t, tree.AddChild(concat, a))
	require.NoError(t, tree.AddChild(concat, rep))
	require.NoError(t, tree.AddChild(rep, b))
	require.NoError(t, tree.AssignRoot(concat))

	require.NoError(t, tree.DetachChild(concat, rep))
	assert.Equal(t, []Handle{a}, tree.Children(concat))
	assert.Nil(t, tree.Op(rep))
	assert.Nil(t, tree.Op(b))
	assert.Equal(t, 2, tree.NumOps())

	assert.Error(t, tree.DetachChild(concat, b))
}

func TestPrint_Format(t *testing.T) {
	tree := NewTree()
	batch, _ := tree.AssociateNode(&Operator{Kind: OpBatch, NumWorkers: 4, Params: &BatchParams{BatchSize: 2}})
	project, _ := tree.AssociateNode(&Operator{Kind: OpProject, Params: &ProjectParams{Columns: []string{"label"}}})
	source, _ := tree.AssociateNode(&Operator{Kind: OpRandomData, NumWorkers: 4, Params: &RandomDataParams{TotalRows: 44}})
	require.NoError(t, tree.AddChild(batch, project))
	require.NoError(t, tree.AddChild(project, source))
	require.NoError(t, tree.AssignRoot(batch))

	want := strings.Join([]string{
		"+- ( 0) <BatchOp>: [workers: 4] [batch size: 2]",
		"   +- ( 1) <ProjectOp>: [workers: 0 (inlined)] [columns: label]",
		"      +- ( 2) <RandomDataOp>: [workers: 4] [total rows: 44]",
		"",
	}, "\n")
	if diff := cmp.Diff(want, tree.String()); diff != "" {
		t.Errorf("Print mismatch (-want +got):\n%s", diff)
	}
}

func TestPrepareTreePreAction_Override(t *testing.T) {
	var ran []string
	record := func(name string) Pass {
		return PassFunc{PassName: name, Fn: func(*Tree) (bool, error) {
			ran = append(ran, name)
			return false, nil
		}}
	}

	tree := NewTree(WithPrePasses(record("a"), record("b")))
	chain(t, tree, OpBatch, OpRandomData)
	require.NoError(t, tree.SetPrePassOverride(func(pre PassList) PassList {
		assert.Equal(t, []string{"a", "b"}, pre.Names())
		return PassList{record("c"), pre[0]}
	}))
	require.NoError(t, tree.PrepareTreePreAction())
	assert.Equal(t, []string{"c", "a"}, ran)

	assert.Error(t, tree.SetPrePassOverride(nil), "override after preparation must fail")
}

func TestPrepareTreePreAction_StopsOnFailure(t *testing.T) {
	cause := errors.New("malformed configuration")
	var ranAfter bool
	tree := NewTree(WithPrePasses(
		PassFunc{PassName: "bad", Fn: func(*Tree) (bool, error) { return false, cause }},
		PassFunc{PassName: "after", Fn: func(*Tree) (bool, error) { ranAfter = true; return false, nil }},
	))
	chain(t, tree, OpBatch, OpRandomData)

	err := tree.PrepareTreePreAction()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPassFailure))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, ranAfter)

	var pe *PassError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "bad", pe.Pass)
}

func TestPrepareTreePreAction_NeedsRoot(t *testing.T) {
	tree := NewTree()
	_, _ = tree.AssociateNode(newOp(OpBatch))
	assert.True(t, errors.Is(tree.PrepareTreePreAction(), ErrInvalidState))
}

func TestOpKind_Names(t *testing.T) {
	seen := map[string]bool{}
	for k := OpKind(0); k < NumOpKinds; k++ {
		name := k.String()
		require.NotEmpty(t, name, "kind %d has no name", k)
		require.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true
	}
	assert.True(t, OpCSV.IsSource())
	assert.False(t, OpBatch.IsSource())
}

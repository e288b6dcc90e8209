package adapter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhildatla/dstree/pkg/config"
	"github.com/akhildatla/dstree/pkg/exec"
	"github.com/akhildatla/dstree/pkg/ir"
	"github.com/akhildatla/dstree/pkg/opt"
	"github.com/akhildatla/dstree/pkg/schema"
)

type fakeNode struct {
	ops      int
	children []*fakeNode
}

func (f *fakeNode) Build(*config.Config) ([]*exec.Operator, error) {
	ops := make([]*exec.Operator, f.ops)
	for i := range ops {
		ops[i] = &exec.Operator{Kind: exec.OpRepeat, Params: &exec.RepeatParams{Count: i + 2}}
	}
	return ops, nil
}

func (f *fakeNode) Children() []*fakeNode { return f.children }

func pipeline(t *testing.T) *ir.Node {
	t.Helper()
	s := schema.New()
	require.NoError(t, s.AddColumn("label", "uint32", nil))
	require.NoError(t, s.AddColumn("image", "uint8", []int{28, 28}))
	return ir.RandomData(44, s).Repeat(2).Project("label").Shuffle(10).Batch(2, false)
}

func kinds(tree *exec.Tree) []exec.OpKind {
	var out []exec.OpKind
	_ = tree.Walk(func(h exec.Handle, _ int) error {
		out = append(out, tree.Op(h).Kind)
		return nil
	})
	return out
}

func TestDFSBuild_AttachesToChainTail(t *testing.T) {
	grandchild := &fakeNode{ops: 1}
	root := &fakeNode{ops: 2, children: []*fakeNode{
		{ops: 2, children: []*fakeNode{grandchild}},
		{ops: 1},
	}}

	tree := exec.NewTree()
	entry, err := DFSBuild(root, tree, nil)
	require.NoError(t, err)
	assert.Equal(t, exec.Handle(0), entry)
	assert.Equal(t, 6, tree.NumOps())

	assert.Equal(t, []exec.Handle{1}, tree.Children(0))
	assert.Equal(t, []exec.Handle{2, 5}, tree.Children(1))
	assert.Equal(t, []exec.Handle{3}, tree.Children(2))
	assert.Equal(t, []exec.Handle{4}, tree.Children(3))
	assert.Empty(t, tree.Children(5))
}

func TestDFSBuild_EmptyBuildResult(t *testing.T) {
	root := &fakeNode{ops: 1, children: []*fakeNode{{ops: 0}}}
	_, err := DFSBuild(root, exec.NewTree(), nil)
	assert.True(t, errors.Is(err, exec.ErrEmptyBuildResult))

	_, err = DFSBuild(root, nil, nil)
	assert.True(t, errors.Is(err, exec.ErrInvalidState))
}

func TestBuildTree_AssociatesEveryOperator(t *testing.T) {
	s := schema.New()
	require.NoError(t, s.AddColumn("label", "uint32", nil))
	node := ir.CSV("train.csv", ir.GlobalShuffle()).
		Map([]exec.TensorOp{exec.NamedOp("decode")}, ir.InputColumns("label"), ir.ProjectColumns("label")).
		Concat(ir.RandomData(4, s))

	tree, err := BuildTree(node, nil)
	require.NoError(t, err)
	assert.Equal(t, exec.StateInit, tree.State())
	// Concat(1) + Project,Map(2) + Shuffle,CSV(2) + RandomData(1)
	assert.Equal(t, 6, tree.NumOps())
	assert.Equal(t, []exec.OpKind{
		exec.OpConcat, exec.OpProject, exec.OpMap, exec.OpShuffle, exec.OpCSV, exec.OpRandomData,
	}, kinds(tree))
	// the map's input hangs below the MapOp, not the ProjectOp
	assert.Equal(t, []exec.Handle{3}, tree.Children(2))
}

func TestCompile_ShapeGetter(t *testing.T) {
	tree, err := NewTreeAdapter(nil, WithGetterMode(opt.OutputShapeAndType)).Compile(pipeline(t))
	require.NoError(t, err)
	assert.Equal(t, exec.StateReady, tree.State())

	want := "+- ( 0) <BatchOp>: [workers: 4] [batch size: 2]\n" +
		"   +- ( 2) <ProjectOp>: [workers: 0 (inlined)] [columns: label]\n" +
		"      +- ( 4) <RandomDataOp>: [workers: 4] [total rows: 44]\n"
	if diff := cmp.Diff(want, tree.String()); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_SizeGetterKeepsRepeat(t *testing.T) {
	tree, err := NewTreeAdapter(nil, WithGetterMode(opt.DatasetSize)).Compile(pipeline(t))
	require.NoError(t, err)
	assert.Equal(t, []exec.OpKind{exec.OpBatch, exec.OpProject, exec.OpRepeat, exec.OpRandomData}, kinds(tree))
}

func TestCompile_DefaultPasses(t *testing.T) {
	cfg := config.Default()
	cfg.NumEpochs = 3
	s := schema.New()
	require.NoError(t, s.AddColumn("x", "float32", nil))
	node := ir.RandomData(10, s).Cache(7).Repeat(1).Repeat(2).Repeat(3).Batch(5, true)

	tree, err := NewTreeAdapter(cfg).Compile(node)
	require.NoError(t, err)
	assert.Equal(t, []exec.OpKind{
		exec.OpEpochCtrl, exec.OpBatch, exec.OpRepeat, exec.OpCache, exec.OpRandomData,
	}, kinds(tree))

	rep := tree.Op(tree.Children(tree.Children(tree.Root())[0])[0])
	assert.Equal(t, 6, rep.Params.(*exec.RepeatParams).Count)
}

func TestCompile_GetterOnlySkipsDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.NumEpochs = 3
	node := pipeline(t).Repeat(1)

	tree, err := NewTreeAdapter(cfg, WithGetterOnly(opt.DatasetSize)).Compile(node)
	require.NoError(t, err)
	assert.Equal(t, []exec.OpKind{
		exec.OpRepeat, exec.OpBatch, exec.OpProject, exec.OpRepeat, exec.OpRandomData,
	}, kinds(tree))
}

func TestCompile_ValidationFailure(t *testing.T) {
	node := pipeline(t).Repeat(0)
	_, err := NewTreeAdapter(nil).Compile(node)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exec.ErrPassFailure))
	assert.True(t, errors.Is(err, ir.ErrInvalidParams))

	var perr *exec.PassError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "ValidationPass", perr.Pass)
}

func TestCompile_LeavesInputUntouched(t *testing.T) {
	node := pipeline(t)
	before := node.String()
	_, err := NewTreeAdapter(nil, WithGetterMode(opt.OutputShapeAndType)).Compile(node)
	require.NoError(t, err)
	assert.Equal(t, before, node.String())

	_, err = NewTreeAdapter(nil).Compile(nil)
	assert.True(t, errors.Is(err, exec.ErrInvalidState))
}

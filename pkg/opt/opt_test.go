package opt_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhildatla/dstree/pkg/adapter"
	"github.com/akhildatla/dstree/pkg/exec"
	"github.com/akhildatla/dstree/pkg/ir"
	"github.com/akhildatla/dstree/pkg/opt"
	"github.com/akhildatla/dstree/pkg/schema"
)

func source(t *testing.T) *ir.Node {
	t.Helper()
	s := schema.New()
	require.NoError(t, s.AddColumn("label", "uint32", nil))
	require.NoError(t, s.AddColumn("image", "uint8", []int{28, 28}))
	return ir.RandomData(44, s)
}

func build(t *testing.T, node *ir.Node) *exec.Tree {
	t.Helper()
	tree, err := adapter.BuildTree(node, nil)
	require.NoError(t, err)
	return tree
}

func kinds(tree *exec.Tree) []exec.OpKind {
	var out []exec.OpKind
	_ = tree.Walk(func(h exec.Handle, _ int) error {
		out = append(out, tree.Op(h).Kind)
		return nil
	})
	return out
}

func run(t *testing.T, p exec.Pass, tree *exec.Tree) bool {
	t.Helper()
	changed, err := p.Run(tree)
	require.NoError(t, err)
	return changed
}

func TestPolicyCoversEveryKind(t *testing.T) {
	for _, mode := range []opt.GetterMode{opt.OutputShapeAndType, opt.DatasetSize} {
		policy, err := opt.PolicyFor(mode)
		require.NoError(t, err)
		for k := exec.OpKind(0); k < exec.NumOpKinds; k++ {
			assert.NotEqual(t, "unset", policy[k].String(), "%s has no action for %s", mode, k)
		}
	}
	_, err := opt.PolicyFor(opt.GetterMode(9))
	assert.Error(t, err)
	_, err = opt.NewGetterPass(opt.GetterMode(9)).Run(build(t, source(t)))
	assert.Error(t, err)
}

func TestGetterPass_Modes(t *testing.T) {
	tests := []struct {
		name string
		mode opt.GetterMode
		want []exec.OpKind
	}{
		{
			name: "shape",
			mode: opt.OutputShapeAndType,
			want: []exec.OpKind{exec.OpBatch, exec.OpProject, exec.OpMap, exec.OpRandomData},
		},
		{
			name: "size",
			mode: opt.DatasetSize,
			want: []exec.OpKind{exec.OpBatch, exec.OpTake, exec.OpProject, exec.OpFilter, exec.OpRepeat, exec.OpRandomData},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := source(t).Repeat(2).
				Filter("label > 3", "label").
				Map([]exec.TensorOp{exec.NamedOp("decode")}, ir.InputColumns("image"), ir.OutputColumns("image")).
				Project("label").Cache(1).Take(20).Shuffle(8).Batch(2, false)
			tree := build(t, node)
			require.NoError(t, tree.SetPrePassOverride(opt.GetterOverride(tt.mode, true)))
			require.NoError(t, tree.PrepareTreePreAction())
			assert.Equal(t, tt.want, kinds(tree))
		})
	}
}

func TestGetterPass_Idempotent(t *testing.T) {
	for _, mode := range []opt.GetterMode{opt.OutputShapeAndType, opt.DatasetSize} {
		node := source(t).Map([]exec.TensorOp{exec.NamedOp("crop")}, ir.Callbacks("log")).
			Concat(source(t)).Repeat(3).Shuffle(4).Batch(8, true)
		tree := build(t, node)
		p := opt.NewGetterPass(mode)
		assert.True(t, run(t, p, tree), mode.String())
		before := tree.String()
		assert.False(t, run(t, p, tree), mode.String())
		assert.Equal(t, before, tree.String())
	}
}

func TestGetterPass_ConcatSimplified(t *testing.T) {
	node := source(t).Project("label").Concat(source(t).Skip(2), source(t)).Batch(4, false)
	tree := build(t, node)
	run(t, opt.NewGetterPass(opt.OutputShapeAndType), tree)
	assert.Equal(t, []exec.OpKind{exec.OpBatch, exec.OpProject, exec.OpRandomData}, kinds(tree))
	// detached branches are gone from the arena too
	assert.Equal(t, 3, tree.NumOps())

	tree = build(t, node)
	run(t, opt.NewGetterPass(opt.DatasetSize), tree)
	assert.Equal(t, []exec.OpKind{
		exec.OpBatch, exec.OpConcat, exec.OpProject, exec.OpRandomData, exec.OpSkip, exec.OpRandomData, exec.OpRandomData,
	}, kinds(tree))
}

func TestGetterPass_MapIdentity(t *testing.T) {
	out := schema.New()
	require.NoError(t, out.AddColumn("image", "float32", []int{3, 28, 28}))
	node := source(t).Map([]exec.TensorOp{exec.NamedOp("normalize")},
		ir.InputColumns("image"), ir.OutputColumns("image"), ir.OutputSchema(out), ir.Callbacks("timer"))
	tree := build(t, node)

	run(t, opt.NewGetterPass(opt.OutputShapeAndType), tree)
	mp := tree.Op(tree.Root()).Params.(*exec.MapParams)
	assert.True(t, mp.Passthrough)
	assert.Empty(t, mp.Operations)
	assert.Empty(t, mp.Callbacks)
	assert.Equal(t, []string{"image"}, mp.OutputColumns)
	assert.Equal(t, out.String(), mp.OutputSchema.String())
	assert.Contains(t, tree.String(), "[ops: identity]")
}

func TestGetterPass_DropKeepsMultiInput(t *testing.T) {
	var policy opt.Policy
	for k := range policy {
		policy[k] = opt.Drop
	}
	policy[exec.OpRandomData] = opt.Keep

	tree := build(t, ir.Zip(source(t).Repeat(2), source(t)).Shuffle(3))
	run(t, opt.NewGetterPassWithPolicy(opt.DatasetSize, policy), tree)
	assert.Equal(t, []exec.OpKind{exec.OpZip, exec.OpRandomData, exec.OpRandomData}, kinds(tree))
}

func TestGetterPass_EmptyPipeline(t *testing.T) {
	var policy opt.Policy
	for k := range policy {
		policy[k] = opt.Drop
	}
	tree := build(t, source(t).Repeat(2))
	_, err := opt.NewGetterPassWithPolicy(opt.DatasetSize, policy).Run(tree)
	assert.True(t, errors.Is(err, exec.ErrEmptyPipeline))
	assert.Equal(t, exec.NoHandle, tree.Root())

	require.Error(t, tree.Finalize())
}

func TestGetterPass_UnsetAction(t *testing.T) {
	var policy opt.Policy
	policy[exec.OpRandomData] = opt.Keep
	_, err := opt.NewGetterPassWithPolicy(opt.DatasetSize, policy).Run(build(t, source(t).Batch(2, false)))
	assert.Error(t, err)
}

func TestGetterOverride(t *testing.T) {
	defaults := exec.PassList{opt.NoOpRemovalPass{}, opt.RepeatFoldPass{}}

	appended := opt.GetterOverride(opt.DatasetSize, false)(defaults)
	assert.Equal(t, []string{"NoOpRemovalPass", "RepeatFoldPass", "GetterPass(DatasetSize)"}, appended.Names())

	replaced := opt.GetterOverride(opt.OutputShapeAndType, true)(defaults)
	assert.Equal(t, []string{"GetterPass(OutputShapeAndType)"}, replaced.Names())
}

func TestNoOpRemovalPass(t *testing.T) {
	tree := build(t, source(t).Skip(0).Repeat(1).Take(-1).Take(5).Batch(2, false))
	assert.True(t, run(t, opt.NoOpRemovalPass{}, tree))
	assert.Equal(t, []exec.OpKind{exec.OpBatch, exec.OpTake, exec.OpRandomData}, kinds(tree))
	assert.False(t, run(t, opt.NoOpRemovalPass{}, tree))

	tree = build(t, source(t).Repeat(1))
	run(t, opt.NoOpRemovalPass{}, tree)
	assert.Equal(t, []exec.OpKind{exec.OpRandomData}, kinds(tree), "root no-op promotes its child")

	tree = build(t, source(t).Repeat(1).Cache(2))
	assert.False(t, run(t, opt.NoOpRemovalPass{}, tree), "cached no-ops stay")
}

func TestRepeatFoldPass(t *testing.T) {
	count := func(tree *exec.Tree) int {
		return tree.Op(tree.Root()).Params.(*exec.RepeatParams).Count
	}

	tree := build(t, source(t).Repeat(2).Repeat(3).Repeat(4))
	assert.True(t, run(t, opt.RepeatFoldPass{}, tree))
	assert.Equal(t, []exec.OpKind{exec.OpRepeat, exec.OpRandomData}, kinds(tree))
	assert.Equal(t, 24, count(tree))

	tree = build(t, source(t).Repeat(-1).Repeat(3))
	run(t, opt.RepeatFoldPass{}, tree)
	assert.Equal(t, -1, count(tree))

	tree = build(t, source(t).Skip(2).Skip(3).Take(-1).Take(7).Take(4))
	run(t, opt.RepeatFoldPass{}, tree)
	assert.Equal(t, []exec.OpKind{exec.OpTake, exec.OpSkip, exec.OpRandomData}, kinds(tree))
	assert.Equal(t, int64(4), tree.Op(tree.Root()).Params.(*exec.CountParams).Count)
	skip := tree.Op(tree.Children(tree.Root())[0])
	assert.Equal(t, int64(5), skip.Params.(*exec.CountParams).Count)

	tree = build(t, source(t).Repeat(2).Shuffle(2).Repeat(2))
	assert.False(t, run(t, opt.RepeatFoldPass{}, tree))
}

func TestProjectMergePass(t *testing.T) {
	tree := build(t, source(t).Project("label", "image").Project("label"))
	assert.True(t, run(t, opt.ProjectMergePass{}, tree))
	assert.Equal(t, []exec.OpKind{exec.OpProject, exec.OpRandomData}, kinds(tree))

	tree = build(t, source(t).Project("label").Project("image"))
	_, err := opt.ProjectMergePass{}.Run(tree)
	assert.True(t, errors.Is(err, schema.ErrUnknownColumn))
}

func TestCacheInsertionPass(t *testing.T) {
	tree := build(t, source(t).Cache(9).Batch(2, false))
	assert.True(t, run(t, opt.CacheInsertionPass{}, tree))
	assert.Equal(t, []exec.OpKind{exec.OpBatch, exec.OpCache, exec.OpRandomData}, kinds(tree))
	cache := tree.Op(tree.Children(tree.Root())[0])
	assert.Equal(t, uint32(9), cache.Params.(*exec.CacheParams).SessionID)

	assert.False(t, run(t, opt.CacheInsertionPass{}, tree))
}

func TestEpochCtrlPass(t *testing.T) {
	tree := build(t, source(t).Batch(2, false))
	assert.False(t, run(t, opt.EpochCtrlPass{NumEpochs: 1}, tree))
	assert.True(t, run(t, opt.EpochCtrlPass{NumEpochs: 5}, tree))
	assert.False(t, run(t, opt.EpochCtrlPass{NumEpochs: 5}, tree))
	assert.Equal(t, []exec.OpKind{exec.OpEpochCtrl, exec.OpBatch, exec.OpRandomData}, kinds(tree))
	assert.True(t, tree.Op(tree.Root()).Inlined())
}

func TestOptimizer_PrePasses(t *testing.T) {
	assert.Empty(t, opt.New().PrePasses())
	assert.Equal(t, []string{
		"NoOpRemovalPass", "RepeatFoldPass", "ProjectMergePass", "CacheInsertionPass", "EpochCtrlPass",
	}, opt.New(opt.WithAllOptimizations(), opt.WithEpochControl(2)).PrePasses().Names())
	assert.Equal(t, []string{"RepeatFoldPass"}, opt.New(opt.WithRepeatFolding()).PrePasses().Names())

	passes := opt.New().IRPasses()
	require.Len(t, passes, 1)
	_, _, err := passes[0].Run(source(t).Batch(0, false))
	assert.True(t, errors.Is(err, ir.ErrInvalidParams))
}

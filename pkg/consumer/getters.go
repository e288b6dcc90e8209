// Package consumer answers metadata queries about a pipeline (row count,
// output columns, batch size) from a getter-pruned execution tree, without
// running the pipeline.
package consumer

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/emirpasic/gods/v2/stacks/arraystack"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/akhildatla/dstree/pkg/adapter"
	"github.com/akhildatla/dstree/pkg/config"
	"github.com/akhildatla/dstree/pkg/exec"
	"github.com/akhildatla/dstree/pkg/ir"
	"github.com/akhildatla/dstree/pkg/loader"
	"github.com/akhildatla/dstree/pkg/opt"
	"github.com/akhildatla/dstree/pkg/schema"
)

// Getter errors
var (
	ErrInfiniteSize = errors.New("dataset repeats forever")
	ErrUnknownSize  = errors.New("dataset size depends on row contents")
)

// InspectFunc returns the row count and schema of a file source.
type InspectFunc func(ctx context.Context, format loader.Format, path string) (int64, *schema.Schema, error)

// TreeGetters compiles pipelines with a getter pass and evaluates the pruned
// tree. Results are memoized per pipeline dump and query. It is safe for
// concurrent use.
type TreeGetters struct {
	cfg     *config.Config
	cache   *cache.Cache
	inspect InspectFunc
}

// Option is a functional option for TreeGetters.
type Option func(*TreeGetters)

// WithInspector replaces the file inspector, loader.Inspect by default.
func WithInspector(fn InspectFunc) Option {
	return func(g *TreeGetters) {
		g.inspect = fn
	}
}

// New creates getters whose memoized results expire after
// cfg.GetterCacheTTL. A zero TTL disables memoization.
func New(cfg *config.Config, opts ...Option) *TreeGetters {
	cfg = config.OrDefault(cfg)
	g := &TreeGetters{
		cfg:     cfg,
		cache:   cache.New(cfg.GetterCacheTTL, 2*cfg.GetterCacheTTL),
		inspect: loader.Inspect,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Tree compiles root pruned for mode.
func (g *TreeGetters) Tree(root *ir.Node, mode opt.GetterMode) (*exec.Tree, error) {
	return adapter.NewTreeAdapter(g.cfg, adapter.WithGetterMode(mode)).Compile(root)
}

// GetDatasetSize returns the number of rows (or batches) one epoch yields.
func (g *TreeGetters) GetDatasetSize(ctx context.Context, root *ir.Node) (int64, error) {
	v, err := g.memo(root, "size", func() (any, error) {
		tree, err := g.Tree(root, opt.DatasetSize)
		if err != nil {
			return nil, err
		}
		return g.size(ctx, tree, tree.Root())
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// GetOutputSchema returns the columns of the rows the pipeline yields.
func (g *TreeGetters) GetOutputSchema(ctx context.Context, root *ir.Node) (*schema.Schema, error) {
	v, err := g.memo(root, "schema", func() (any, error) {
		tree, err := g.Tree(root, opt.OutputShapeAndType)
		if err != nil {
			return nil, err
		}
		return g.schema(ctx, tree, tree.Root())
	})
	if err != nil {
		return nil, err
	}
	return v.(*schema.Schema).Clone(), nil
}

// GetOutputTypes returns the output column types in order.
func (g *TreeGetters) GetOutputTypes(ctx context.Context, root *ir.Node) ([]schema.DataType, error) {
	s, err := g.GetOutputSchema(ctx, root)
	if err != nil {
		return nil, err
	}
	out := make([]schema.DataType, 0, s.Len())
	for _, c := range s.Columns() {
		out = append(out, c.Type)
	}
	return out, nil
}

// GetOutputShapes returns the output column shapes in order. Scalars have
// an empty shape.
func (g *TreeGetters) GetOutputShapes(ctx context.Context, root *ir.Node) ([][]int, error) {
	s, err := g.GetOutputSchema(ctx, root)
	if err != nil {
		return nil, err
	}
	out := make([][]int, 0, s.Len())
	for _, c := range s.Columns() {
		out = append(out, append([]int{}, c.Shape...))
	}
	return out, nil
}

// GetColumnNames returns the output column names in order.
func (g *TreeGetters) GetColumnNames(ctx context.Context, root *ir.Node) ([]string, error) {
	s, err := g.GetOutputSchema(ctx, root)
	if err != nil {
		return nil, err
	}
	return s.Names(), nil
}

// GetBatchSize returns the size of the outermost batch, or 1 when the
// pipeline is not batched.
func (g *TreeGetters) GetBatchSize(root *ir.Node) (int, error) {
	v, err := g.memo(root, "batch", func() (any, error) {
		tree, err := g.Tree(root, opt.OutputShapeAndType)
		if err != nil {
			return nil, err
		}
		if op := first(tree, exec.OpBatch); op != nil {
			return op.Params.(*exec.BatchParams).BatchSize, nil
		}
		return 1, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// GetRepeatCount returns the count of the outermost repeat, or 1. -1 means
// forever.
func (g *TreeGetters) GetRepeatCount(root *ir.Node) (int, error) {
	v, err := g.memo(root, "repeat", func() (any, error) {
		tree, err := g.Tree(root, opt.DatasetSize)
		if err != nil {
			return nil, err
		}
		if op := first(tree, exec.OpRepeat); op != nil {
			return op.Params.(*exec.RepeatParams).Count, nil
		}
		return 1, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Flush drops every memoized result.
func (g *TreeGetters) Flush() { g.cache.Flush() }

func (g *TreeGetters) memo(root *ir.Node, query string, compute func() (any, error)) (any, error) {
	if root == nil {
		return nil, errors.Wrap(exec.ErrInvalidState, "getter: nil pipeline")
	}
	if g.cfg.GetterCacheTTL == 0 {
		return compute()
	}
	key := query + ":" + strconv.FormatUint(fingerprint(root), 16)
	if v, ok := g.cache.Get(key); ok {
		klog.V(3).Infof("getter %s: cache hit", key)
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	g.cache.SetDefault(key, v)
	return v, nil
}

// fingerprint hashes the IR dump together with the size and modification
// time of every file the pipeline reads, so rewriting a file invalidates
// cached answers.
func fingerprint(root *ir.Node) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(root.String())
	stack := arraystack.New[*ir.Node]()
	stack.Push(root)
	for !stack.Empty() {
		n, _ := stack.Pop()
		if p, ok := n.Params().(*ir.FileSourceParams); ok {
			if fi, err := os.Stat(p.Path); err == nil {
				_, _ = fmt.Fprintf(d, "\x00%s:%d:%d", p.Path, fi.Size(), fi.ModTime().UnixNano())
			}
		}
		for _, c := range n.Children() {
			stack.Push(c)
		}
	}
	return d.Sum64()
}

// first returns the first operator of kind in pre-order, or nil.
func first(tree *exec.Tree, kind exec.OpKind) *exec.Operator {
	var found *exec.Operator
	errFound := errors.New("found")
	_ = tree.Walk(func(h exec.Handle, _ int) error {
		if op := tree.Op(h); op.Kind == kind {
			found = op
			return errFound
		}
		return nil
	})
	return found
}

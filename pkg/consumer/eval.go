package consumer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/akhildatla/dstree/pkg/exec"
	"github.com/akhildatla/dstree/pkg/loader"
	"github.com/akhildatla/dstree/pkg/schema"
)

var fileFormats = map[exec.OpKind]loader.Format{
	exec.OpCSV:     loader.CSV,
	exec.OpJSON:    loader.JSON,
	exec.OpParquet: loader.Parquet,
}

func capRows(rows, samples int64) int64 {
	if samples > 0 && samples < rows {
		return samples
	}
	return rows
}

func (g *TreeGetters) size(ctx context.Context, tree *exec.Tree, h exec.Handle) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	op := tree.Op(h)
	children := tree.Children(h)
	sizes := make([]int64, len(children))
	for i, c := range children {
		n, err := g.size(ctx, tree, c)
		if err != nil {
			return 0, err
		}
		sizes[i] = n
	}

	if op.Kind.IsSource() {
		return g.sourceRows(ctx, op)
	}

	switch p := op.Params.(type) {
	case *exec.RepeatParams:
		if p.Count == -1 {
			return 0, errors.WithStack(ErrInfiniteSize)
		}
		return sizes[0] * int64(p.Count), nil
	case *exec.BatchParams:
		b := int64(p.BatchSize)
		if p.DropRemainder {
			return sizes[0] / b, nil
		}
		return (sizes[0] + b - 1) / b, nil
	case *exec.CountParams:
		n := sizes[0]
		if op.Kind == exec.OpSkip {
			return max(0, n-p.Count), nil
		}
		if p.Count == -1 {
			return n, nil
		}
		return min(n, p.Count), nil
	case *exec.FilterParams:
		return 0, errors.Wrapf(ErrUnknownSize, "filter %q", p.Predicate)
	}

	switch op.Kind {
	case exec.OpConcat:
		var total int64
		for _, n := range sizes {
			total += n
		}
		return total, nil
	case exec.OpZip:
		smallest := sizes[0]
		for _, n := range sizes[1:] {
			smallest = min(smallest, n)
		}
		return smallest, nil
	}
	if len(sizes) != 1 {
		return 0, errors.Wrapf(exec.ErrInvalidState, "size of %s with %d inputs", op.Name(), len(sizes))
	}
	return sizes[0], nil
}

func (g *TreeGetters) sourceRows(ctx context.Context, op *exec.Operator) (int64, error) {
	switch p := op.Params.(type) {
	case *exec.RandomDataParams:
		return p.TotalRows, nil
	case *exec.FileParams:
		rows, _, err := g.inspect(ctx, fileFormats[op.Kind], p.Path)
		if err != nil {
			return 0, err
		}
		return capRows(rows, p.NumSamples), nil
	case *exec.FrameParams:
		return capRows(int64(p.Frame.NRows()), p.NumSamples), nil
	}
	return 0, errors.Wrapf(exec.ErrInvalidState, "%s has no row count", op.Name())
}

func (g *TreeGetters) schema(ctx context.Context, tree *exec.Tree, h exec.Handle) (*schema.Schema, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	op := tree.Op(h)
	children := tree.Children(h)
	inputs := make([]*schema.Schema, len(children))
	for i, c := range children {
		s, err := g.schema(ctx, tree, c)
		if err != nil {
			return nil, err
		}
		inputs[i] = s
	}

	switch p := op.Params.(type) {
	case *exec.RandomDataParams:
		return p.Schema.Clone(), nil
	case *exec.FileParams:
		_, s, err := g.inspect(ctx, fileFormats[op.Kind], p.Path)
		return s, err
	case *exec.FrameParams:
		return schema.FromFrame(p.Frame), nil
	case *exec.ProjectParams:
		return inputs[0].Project(p.Columns)
	case *exec.RenameParams:
		return inputs[0].Rename(p.From, p.To)
	case *exec.BatchParams:
		return inputs[0].Batched(p.BatchSize), nil
	case *exec.MapParams:
		return mapSchema(inputs[0], p)
	}

	if op.Kind == exec.OpZip {
		out := schema.New()
		for _, s := range inputs {
			merged, err := out.Merge(s)
			if err != nil {
				return nil, err
			}
			out = merged
		}
		return out, nil
	}
	if len(inputs) == 0 {
		return nil, errors.Wrapf(exec.ErrInvalidState, "schema of %s without inputs", op.Name())
	}
	// Concat inputs share a schema; the rest pass rows through unchanged.
	return inputs[0], nil
}

// mapSchema replaces the map's input columns by its declared outputs. Output
// columns without a declared schema keep the type and shape of the input at
// the same position, or become unknown.
func mapSchema(in *schema.Schema, p *exec.MapParams) (*schema.Schema, error) {
	if len(p.InputColumns) == 0 || len(p.OutputColumns) == 0 {
		return in, nil
	}
	outputs := make([]schema.Column, len(p.OutputColumns))
	for i, name := range p.OutputColumns {
		col := schema.Column{Name: name, Type: schema.Unknown}
		if p.OutputSchema != nil {
			if c, ok := p.OutputSchema.Column(name); ok {
				col = c
			}
		} else if i < len(p.InputColumns) {
			if c, ok := in.Column(p.InputColumns[i]); ok {
				col.Type, col.Shape = c.Type, c.Shape
			}
		}
		outputs[i] = col
	}
	return in.Replace(p.InputColumns, outputs)
}

package dsl

import (
	"math"

	"github.com/pkg/errors"

	"github.com/akhildatla/dstree/pkg/exec"
	"github.com/akhildatla/dstree/pkg/ir"
	"github.com/akhildatla/dstree/pkg/loader"
	"github.com/akhildatla/dstree/pkg/schema"
)

type (
	sourceFunc func(a args) (any, error)
	opFunc     func(a args, input *ir.Node) (any, error)
)

// Filled in init: the builtins evaluate their arguments, which may call
// builtins again.
var (
	sources    map[string]sourceFunc
	operations map[string]opFunc
)

func init() {
	sources = map[string]sourceFunc{
		"random_data":  randomData,
		"load":         loadFile(nil),
		"load_csv":     loadFile(ptr(loader.CSV)),
		"load_json":    loadFile(ptr(loader.JSON)),
		"load_parquet": loadFile(ptr(loader.Parquet)),
		"frame":        frame,
		"zip":          zipSource,
	}
	operations = map[string]opFunc{
		"repeat":  repeat,
		"project": project,
		"rename":  rename,
		"shuffle": shuffle,
		"batch":   batch,
		"map":     mapOp,
		"filter":  filter,
		"skip":    skip,
		"take":    take,
		"concat":  concat,
		"zip":     zipOp,
		"cache":   cache,
		"workers": workers,
	}
}

func ptr[T any](v T) *T { return &v }

// Builtins returns the names of the sources and operations the DSL knows.
func Builtins() (srcs, ops []string) {
	for name := range sources {
		srcs = append(srcs, name)
	}
	for name := range operations {
		ops = append(ops, name)
	}
	return srcs, ops
}

// ===== Sources =====

// random_data(rows, schema, seed: n)
func randomData(a args) (any, error) {
	if err := a.check(2, "seed"); err != nil {
		return nil, err
	}
	rows, err := a.int(0, "", true, 0)
	if err != nil {
		return nil, err
	}
	v, err := a.value(1, "")
	if err != nil {
		return nil, err
	}
	s, ok := v.(*schema.Schema)
	if !ok {
		return nil, a.errorf("argument 2 must be a schema, got %s", typeName(v))
	}
	seed, err := a.int(-1, "seed", false, 0)
	if err != nil {
		return nil, err
	}
	if seed < 0 || seed > math.MaxUint32 {
		return nil, a.errorf("seed must be in [0, %d], got %d", uint32(math.MaxUint32), seed)
	}
	node := ir.RandomData(rows, s)
	node.Params().(*exec.RandomDataParams).Seed = uint32(seed)
	return node, nil
}

// load(path), load_csv(path), ... with shuffle: bool, samples: n
func loadFile(format *loader.Format) sourceFunc {
	return func(a args) (any, error) {
		if err := a.check(1, "shuffle", "samples"); err != nil {
			return nil, err
		}
		path, err := a.str(0, "")
		if err != nil {
			return nil, err
		}
		f := loader.CSV
		if format != nil {
			f = *format
		} else if f, err = loader.FormatOf(path); err != nil {
			return nil, a.errorf("%v", err)
		}

		var opts []ir.SourceOption
		if shuffle, err := a.bool("shuffle", false); err != nil {
			return nil, err
		} else if shuffle {
			opts = append(opts, ir.GlobalShuffle())
		}
		samples, err := a.int(-1, "samples", false, 0)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ir.NumSamples(samples))

		switch f {
		case loader.JSON:
			return ir.JSON(path, opts...), nil
		case loader.Parquet:
			return ir.Parquet(path, opts...), nil
		}
		return ir.CSV(path, opts...), nil
	}
}

// frame(name, samples: n)
func frame(a args) (any, error) {
	if err := a.check(1, "samples"); err != nil {
		return nil, err
	}
	name, err := a.str(0, "")
	if err != nil {
		return nil, err
	}
	df, ok := a.c.frames[name]
	if !ok {
		return nil, errors.Wrapf(ErrUndefined, "%s: frame %q", a.call.Pos, name)
	}
	samples, err := a.int(-1, "samples", false, 0)
	if err != nil {
		return nil, err
	}
	node := ir.Frame(name, df)
	node.Params().(*exec.FrameParams).NumSamples = samples
	return node, nil
}

// zip(a, b, ...)
func zipSource(a args) (any, error) {
	nodes, err := a.pipelines()
	if err != nil {
		return nil, err
	}
	return ir.Zip(nodes...), nil
}

// ===== Operations =====

// repeat(count); -1 repeats forever
func repeat(a args, input *ir.Node) (any, error) {
	if err := a.check(1, "count"); err != nil {
		return nil, err
	}
	n, err := a.int(0, "count", true, 0)
	if err != nil {
		return nil, err
	}
	return input.Repeat(int(n)), nil
}

// project(col, ...)
func project(a args, input *ir.Node) (any, error) {
	if err := a.check(-1); err != nil {
		return nil, err
	}
	cols, err := a.names(a.call.Args...)
	if err != nil {
		return nil, err
	}
	return input.Project(cols...), nil
}

// rename(from, to) with single names or lists
func rename(a args, input *ir.Node) (any, error) {
	if err := a.check(2, "from", "to"); err != nil {
		return nil, err
	}
	from, err := a.names(a.arg(0, "from"))
	if err != nil {
		return nil, err
	}
	to, err := a.names(a.arg(1, "to"))
	if err != nil {
		return nil, err
	}
	return input.Rename(from, to), nil
}

// shuffle(buffer)
func shuffle(a args, input *ir.Node) (any, error) {
	if err := a.check(1, "buffer"); err != nil {
		return nil, err
	}
	n, err := a.int(0, "buffer", true, 0)
	if err != nil {
		return nil, err
	}
	return input.Shuffle(int(n)), nil
}

// batch(size, drop: bool)
func batch(a args, input *ir.Node) (any, error) {
	if err := a.check(1, "size", "drop"); err != nil {
		return nil, err
	}
	n, err := a.int(0, "size", true, 0)
	if err != nil {
		return nil, err
	}
	drop, err := a.bool("drop", false)
	if err != nil {
		return nil, err
	}
	return input.Batch(int(n), drop), nil
}

// map(op, ..., in: cols, out: cols, project: cols, schema: {...}, callbacks: names)
func mapOp(a args, input *ir.Node) (any, error) {
	if err := a.check(-1, "in", "out", "project", "schema", "callbacks"); err != nil {
		return nil, err
	}
	names, err := a.names(a.call.Args...)
	if err != nil {
		return nil, err
	}
	ops := make([]exec.TensorOp, len(names))
	for i, name := range names {
		ops[i] = exec.NamedOp(name)
	}

	var opts []ir.MapOption
	for kw, opt := range map[string]func(...string) ir.MapOption{
		"in":        ir.InputColumns,
		"out":       ir.OutputColumns,
		"project":   ir.ProjectColumns,
		"callbacks": ir.Callbacks,
	} {
		if e := a.call.Kwarg(kw); e != nil {
			cols, err := a.names(e)
			if err != nil {
				return nil, err
			}
			opts = append(opts, opt(cols...))
		}
	}
	if a.call.Kwarg("schema") != nil {
		v, err := a.value(-1, "schema")
		if err != nil {
			return nil, err
		}
		s, ok := v.(*schema.Schema)
		if !ok {
			return nil, a.errorf("schema: must be a schema, got %s", typeName(v))
		}
		opts = append(opts, ir.OutputSchema(s))
	}
	return input.Map(ops, opts...), nil
}

// filter(predicate, in: cols)
func filter(a args, input *ir.Node) (any, error) {
	if err := a.check(1, "in"); err != nil {
		return nil, err
	}
	pred, err := a.str(0, "")
	if err != nil {
		return nil, err
	}
	var cols []string
	if e := a.call.Kwarg("in"); e != nil {
		if cols, err = a.names(e); err != nil {
			return nil, err
		}
	}
	return input.Filter(pred, cols...), nil
}

// skip(n)
func skip(a args, input *ir.Node) (any, error) {
	if err := a.check(1, "count"); err != nil {
		return nil, err
	}
	n, err := a.int(0, "count", true, 0)
	if err != nil {
		return nil, err
	}
	return input.Skip(n), nil
}

// take(n); -1 takes everything
func take(a args, input *ir.Node) (any, error) {
	if err := a.check(1, "count"); err != nil {
		return nil, err
	}
	n, err := a.int(0, "count", true, 0)
	if err != nil {
		return nil, err
	}
	return input.Take(n), nil
}

// concat(other, ...)
func concat(a args, input *ir.Node) (any, error) {
	others, err := a.pipelines()
	if err != nil {
		return nil, err
	}
	return input.Concat(others...), nil
}

// zip(other, ...)
func zipOp(a args, input *ir.Node) (any, error) {
	others, err := a.pipelines()
	if err != nil {
		return nil, err
	}
	return ir.Zip(append([]*ir.Node{input}, others...)...), nil
}

// cache(session)
func cache(a args, input *ir.Node) (any, error) {
	if err := a.check(1, "session"); err != nil {
		return nil, err
	}
	id, err := a.int(0, "session", false, 0)
	if err != nil {
		return nil, err
	}
	if id < 0 || id > math.MaxUint32 {
		return nil, a.errorf("session must be in [0, %d], got %d", uint32(math.MaxUint32), id)
	}
	return input.Cache(uint32(id)), nil
}

// workers(n)
func workers(a args, input *ir.Node) (any, error) {
	if err := a.check(1, "count"); err != nil {
		return nil, err
	}
	n, err := a.int(0, "count", true, 0)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, a.errorf("worker count must be positive, got %d", n)
	}
	return input.SetNumWorkers(int(n)), nil
}

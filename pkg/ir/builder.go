package ir

import (
	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/dstree/pkg/exec"
	"github.com/akhildatla/dstree/pkg/schema"
)

// RandomData is a source yielding rows random rows of the given schema.
func RandomData(rows int64, s *schema.Schema) *Node {
	return newNode(KindRandomData, &exec.RandomDataParams{TotalRows: rows, Schema: s})
}

// SourceOption configures a file source.
type SourceOption func(*FileSourceParams)

// GlobalShuffle shuffles rows across the whole file.
func GlobalShuffle() SourceOption {
	return func(p *FileSourceParams) { p.GlobalShuffle = true }
}

// NumSamples caps the number of rows read.
func NumSamples(n int64) SourceOption {
	return func(p *FileSourceParams) { p.NumSamples = n }
}

func fileSource(kind Kind, path string, opts []SourceOption) *Node {
	p := &FileSourceParams{FileParams: exec.FileParams{Path: path}}
	for _, o := range opts {
		o(p)
	}
	return newNode(kind, p)
}

// CSV is a source reading a CSV file with a header row.
func CSV(path string, opts ...SourceOption) *Node { return fileSource(KindCSV, path, opts) }

// JSON is a source reading a JSON file.
func JSON(path string, opts ...SourceOption) *Node { return fileSource(KindJSON, path, opts) }

// Parquet is a source reading a Parquet file.
func Parquet(path string, opts ...SourceOption) *Node { return fileSource(KindParquet, path, opts) }

// Frame is a source reading an in-memory dataframe.
func Frame(name string, df *dataframe.DataFrame) *Node {
	return newNode(KindFrame, &exec.FrameParams{Name: name, Frame: df})
}

// Repeat repeats n count times; -1 repeats forever.
func (n *Node) Repeat(count int) *Node {
	return newNode(KindRepeat, &exec.RepeatParams{Count: count}, n)
}

// Project keeps only the given columns, in that order.
func (n *Node) Project(columns ...string) *Node {
	return newNode(KindProject, &exec.ProjectParams{Columns: cloneStrings(columns)}, n)
}

// Rename renames columns pairwise.
func (n *Node) Rename(from, to []string) *Node {
	return newNode(KindRename, &exec.RenameParams{From: cloneStrings(from), To: cloneStrings(to)}, n)
}

// Shuffle shuffles rows through a buffer of bufferSize rows.
func (n *Node) Shuffle(bufferSize int) *Node {
	return newNode(KindShuffle, &exec.ShuffleParams{BufferSize: bufferSize, ReshuffleEachEpoch: true}, n)
}

// Batch groups batchSize consecutive rows.
func (n *Node) Batch(batchSize int, dropRemainder bool) *Node {
	return newNode(KindBatch, &exec.BatchParams{BatchSize: batchSize, DropRemainder: dropRemainder}, n)
}

// MapOption configures a Map node.
type MapOption func(*MapParams)

// InputColumns names the columns the operations read.
func InputColumns(cols ...string) MapOption {
	return func(p *MapParams) { p.InputColumns = cloneStrings(cols) }
}

// OutputColumns names the columns the operations produce.
func OutputColumns(cols ...string) MapOption {
	return func(p *MapParams) { p.OutputColumns = cloneStrings(cols) }
}

// ProjectColumns projects the map output.
func ProjectColumns(cols ...string) MapOption {
	return func(p *MapParams) { p.ProjectColumns = cloneStrings(cols) }
}

// OutputSchema declares the types and shapes of the output columns.
func OutputSchema(s *schema.Schema) MapOption {
	return func(p *MapParams) { p.OutputSchema = s }
}

// Callbacks attaches named per-step callbacks.
func Callbacks(names ...string) MapOption {
	return func(p *MapParams) { p.Callbacks = cloneStrings(names) }
}

// Map applies ops to every row.
func (n *Node) Map(ops []exec.TensorOp, opts ...MapOption) *Node {
	p := &MapParams{MapParams: exec.MapParams{Operations: append([]exec.TensorOp(nil), ops...)}}
	for _, o := range opts {
		o(p)
	}
	return newNode(KindMap, p, n)
}

// Filter keeps rows for which the named predicate holds.
func (n *Node) Filter(predicate string, inputColumns ...string) *Node {
	return newNode(KindFilter, &exec.FilterParams{Predicate: predicate, InputColumns: cloneStrings(inputColumns)}, n)
}

// Skip drops the first count rows.
func (n *Node) Skip(count int64) *Node {
	return newNode(KindSkip, &exec.CountParams{Count: count}, n)
}

// Take yields at most count rows; -1 yields all of them.
func (n *Node) Take(count int64) *Node {
	return newNode(KindTake, &exec.CountParams{Count: count}, n)
}

// Concat yields the rows of n followed by the rows of others.
func (n *Node) Concat(others ...*Node) *Node {
	return newNode(KindConcat, nil, append([]*Node{n}, others...)...)
}

// Zip pairs rows of all nodes column-wise.
func Zip(nodes ...*Node) *Node {
	return newNode(KindZip, nil, nodes...)
}

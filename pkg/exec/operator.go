package exec

import (
	"fmt"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/dstree/pkg/schema"
)

// OpKind identifies a realized operator.
type OpKind uint8

const (
	OpRandomData OpKind = iota
	OpCSV
	OpJSON
	OpParquet
	OpFrame
	OpRepeat
	OpEpochCtrl
	OpProject
	OpRename
	OpShuffle
	OpBatch
	OpMap
	OpFilter
	OpSkip
	OpTake
	OpConcat
	OpZip
	OpCache

	// NumOpKinds is the size of tables indexed by OpKind.
	NumOpKinds
)

var opNames = [NumOpKinds]string{
	OpRandomData: "RandomDataOp",
	OpCSV:        "CsvOp",
	OpJSON:       "JsonOp",
	OpParquet:    "ParquetOp",
	OpFrame:      "FrameOp",
	OpRepeat:     "RepeatOp",
	OpEpochCtrl:  "EpochCtrlOp",
	OpProject:    "ProjectOp",
	OpRename:     "RenameOp",
	OpShuffle:    "ShuffleOp",
	OpBatch:      "BatchOp",
	OpMap:        "MapOp",
	OpFilter:     "FilterOp",
	OpSkip:       "SkipOp",
	OpTake:       "TakeOp",
	OpConcat:     "ConcatOp",
	OpZip:        "ZipOp",
	OpCache:      "CacheOp",
}

// String returns the operator class name, e.g. "BatchOp".
func (k OpKind) String() string {
	if k < NumOpKinds {
		return opNames[k]
	}
	return fmt.Sprintf("OpKind(%d)", k)
}

// IsSource reports whether operators of this kind are leaves producing rows.
func (k OpKind) IsSource() bool {
	switch k {
	case OpRandomData, OpCSV, OpJSON, OpParquet, OpFrame:
		return true
	}
	return false
}

// Operator is one realized pipeline stage. Operators are owned by the Tree
// they are associated with.
type Operator struct {
	Kind          OpKind
	NumWorkers    int
	ConnectorSize int
	Params        Params

	// Cache requests a cache operator directly above this one.
	Cache *CacheParams
}

// Name returns the operator class name.
func (op *Operator) Name() string { return op.Kind.String() }

// Inlined reports whether the operator runs inside its consumer's workers.
func (op *Operator) Inlined() bool { return op.NumWorkers == 0 }

// Describe returns the bracketed parameter list used by Tree.Print.
func (op *Operator) Describe() string {
	var parts []string
	if op.Inlined() {
		parts = append(parts, "[workers: 0 (inlined)]")
	} else {
		parts = append(parts, fmt.Sprintf("[workers: %d]", op.NumWorkers))
	}
	if op.Params != nil {
		parts = append(parts, op.Params.describe()...)
	}
	return strings.Join(parts, " ")
}

// Params holds the kind-specific configuration of an operator.
type Params interface {
	describe() []string
}

// TensorOp is an opaque per-row compute primitive applied by a MapOp.
type TensorOp interface {
	Name() string
}

// NamedOp is a TensorOp known only by name.
type NamedOp string

// Name implements TensorOp.
func (n NamedOp) Name() string { return string(n) }

// RandomDataParams configures a RandomDataOp.
type RandomDataParams struct {
	TotalRows int64
	Schema    *schema.Schema
	Seed      uint32
}

func (p *RandomDataParams) describe() []string {
	return []string{fmt.Sprintf("[total rows: %d]", p.TotalRows)}
}

// FileParams configures CsvOp, JsonOp and ParquetOp.
type FileParams struct {
	Path string
	// NumSamples caps the rows read; 0 reads everything.
	NumSamples int64
}

func (p *FileParams) describe() []string {
	out := []string{fmt.Sprintf("[path: %s]", p.Path)}
	if p.NumSamples > 0 {
		out = append(out, fmt.Sprintf("[num samples: %d]", p.NumSamples))
	}
	return out
}

// FrameParams configures a FrameOp reading an in-memory dataframe.
type FrameParams struct {
	Name       string
	Frame      *dataframe.DataFrame
	NumSamples int64
}

func (p *FrameParams) describe() []string {
	rows := 0
	if p.Frame != nil {
		rows = p.Frame.NRows()
	}
	return []string{fmt.Sprintf("[frame: %s]", p.Name), fmt.Sprintf("[rows: %d]", rows)}
}

// RepeatParams configures RepeatOp and EpochCtrlOp. Count -1 repeats forever.
type RepeatParams struct {
	Count int
}

func (p *RepeatParams) describe() []string {
	return []string{fmt.Sprintf("[count: %d]", p.Count)}
}

// ProjectParams configures a ProjectOp.
type ProjectParams struct {
	Columns []string
}

func (p *ProjectParams) describe() []string {
	return []string{fmt.Sprintf("[columns: %s]", strings.Join(p.Columns, ","))}
}

// RenameParams configures a RenameOp.
type RenameParams struct {
	From []string
	To   []string
}

func (p *RenameParams) describe() []string {
	pairs := make([]string, len(p.From))
	for i := range p.From {
		pairs[i] = p.From[i] + "->" + p.To[i]
	}
	return []string{fmt.Sprintf("[rename: %s]", strings.Join(pairs, ","))}
}

// ShuffleParams configures a ShuffleOp.
type ShuffleParams struct {
	BufferSize         int
	Seed               uint32
	ReshuffleEachEpoch bool
}

func (p *ShuffleParams) describe() []string {
	return []string{fmt.Sprintf("[buffer size: %d]", p.BufferSize)}
}

// BatchParams configures a BatchOp.
type BatchParams struct {
	BatchSize     int
	DropRemainder bool
}

func (p *BatchParams) describe() []string {
	out := []string{fmt.Sprintf("[batch size: %d]", p.BatchSize)}
	if p.DropRemainder {
		out = append(out, "[drop remainder]")
	}
	return out
}

// MapParams configures a MapOp.
type MapParams struct {
	Operations    []TensorOp
	InputColumns  []string
	OutputColumns []string
	// OutputSchema declares the types of OutputColumns, when known.
	OutputSchema *schema.Schema
	Callbacks    []string
	// Passthrough is set when the compute was replaced by an identity.
	Passthrough bool
}

func (p *MapParams) describe() []string {
	names := make([]string, len(p.Operations))
	for i, o := range p.Operations {
		names[i] = o.Name()
	}
	ops := strings.Join(names, ",")
	if p.Passthrough {
		ops = "identity"
	}
	out := []string{fmt.Sprintf("[ops: %s]", ops)}
	if len(p.InputColumns) > 0 {
		out = append(out, fmt.Sprintf("[in: %s]", strings.Join(p.InputColumns, ",")))
	}
	if len(p.OutputColumns) > 0 {
		out = append(out, fmt.Sprintf("[out: %s]", strings.Join(p.OutputColumns, ",")))
	}
	return out
}

// FilterParams configures a FilterOp.
type FilterParams struct {
	Predicate    string
	InputColumns []string
}

func (p *FilterParams) describe() []string {
	return []string{fmt.Sprintf("[predicate: %s]", p.Predicate)}
}

// CountParams configures SkipOp and TakeOp. TakeOp treats -1 as "all rows".
type CountParams struct {
	Count int64
}

func (p *CountParams) describe() []string {
	return []string{fmt.Sprintf("[count: %d]", p.Count)}
}

// CacheParams configures a CacheOp.
type CacheParams struct {
	SessionID uint32
}

func (p *CacheParams) describe() []string {
	return []string{fmt.Sprintf("[session: %d]", p.SessionID)}
}

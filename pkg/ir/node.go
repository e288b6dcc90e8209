// Package ir is the logical description of a dataset pipeline. Each Node is
// one stage; its children are the upstream stages feeding it. Nodes are
// lowered to exec operators by Build.
package ir

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/akhildatla/dstree/pkg/exec"
)

// IR errors
var (
	ErrInvalidParams = errors.New("invalid node parameters")
	ErrUnknownKind   = errors.New("unknown node kind")
)

// Kind identifies the pipeline stage a Node describes.
type Kind uint8

const (
	KindRandomData Kind = iota
	KindCSV
	KindJSON
	KindParquet
	KindFrame
	KindRepeat
	KindProject
	KindRename
	KindShuffle
	KindBatch
	KindMap
	KindFilter
	KindSkip
	KindTake
	KindConcat
	KindZip

	numKinds
)

var kindNames = [numKinds]string{
	KindRandomData: "RandomData",
	KindCSV:        "CSV",
	KindJSON:       "JSON",
	KindParquet:    "Parquet",
	KindFrame:      "Frame",
	KindRepeat:     "Repeat",
	KindProject:    "Project",
	KindRename:     "Rename",
	KindShuffle:    "Shuffle",
	KindBatch:      "Batch",
	KindMap:        "Map",
	KindFilter:     "Filter",
	KindSkip:       "Skip",
	KindTake:       "Take",
	KindConcat:     "Concat",
	KindZip:        "Zip",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// IsSource reports whether the kind is a leaf.
func (k Kind) IsSource() bool {
	switch k {
	case KindRandomData, KindCSV, KindJSON, KindParquet, KindFrame:
		return true
	}
	return false
}

// FileSourceParams configures CSV, JSON and Parquet nodes.
type FileSourceParams struct {
	exec.FileParams
	// GlobalShuffle shuffles rows across the whole file; it builds an extra
	// ShuffleOp above the reader.
	GlobalShuffle bool
}

// MapParams configures a Map node.
type MapParams struct {
	exec.MapParams
	// ProjectColumns, when set, builds a ProjectOp above the MapOp.
	ProjectColumns []string
}

// Node is one logical pipeline stage.
type Node struct {
	kind       Kind
	params     any
	children   []*Node
	numWorkers int
	cache      *exec.CacheParams
}

func newNode(kind Kind, params any, children ...*Node) *Node {
	return &Node{kind: kind, params: params, children: children}
}

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Params returns the kind-specific parameters, e.g. *exec.BatchParams for
// KindBatch.
func (n *Node) Params() any { return n.params }

// Children returns the upstream nodes in order.
func (n *Node) Children() []*Node { return n.children }

// NumWorkers returns the worker override, 0 when the config default applies.
func (n *Node) NumWorkers() int { return n.numWorkers }

// SetNumWorkers overrides the worker count of the operators this node builds.
func (n *Node) SetNumWorkers(workers int) *Node {
	n.numWorkers = workers
	return n
}

// Cache asks for the output of this node to be cached.
func (n *Node) Cache(sessionID uint32) *Node {
	n.cache = &exec.CacheParams{SessionID: sessionID}
	return n
}

// Cached reports whether Cache was requested.
func (n *Node) Cached() bool { return n.cache != nil }

// DeepCopy returns an independent copy of the subtree rooted at n.
func (n *Node) DeepCopy() *Node {
	out := &Node{
		kind:       n.kind,
		params:     cloneParams(n.params),
		numWorkers: n.numWorkers,
	}
	if n.cache != nil {
		c := *n.cache
		out.cache = &c
	}
	out.children = make([]*Node, len(n.children))
	for i, c := range n.children {
		out.children[i] = c.DeepCopy()
	}
	return out
}

// Count returns the number of nodes in the subtree.
func (n *Node) Count() int {
	total := 1
	for _, c := range n.children {
		total += c.Count()
	}
	return total
}

// String dumps the subtree, one node per line, indented by depth.
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb, 0)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(n.kind.String())
	sb.WriteString("(")
	sb.WriteString(n.detail())
	sb.WriteString(")")
	if n.numWorkers > 0 {
		fmt.Fprintf(sb, " workers=%d", n.numWorkers)
	}
	if n.cache != nil {
		fmt.Fprintf(sb, " cache=%d", n.cache.SessionID)
	}
	sb.WriteString("\n")
	for _, c := range n.children {
		c.write(sb, depth+1)
	}
}

func (n *Node) detail() string {
	switch p := n.params.(type) {
	case *exec.RandomDataParams:
		s := "{}"
		if p.Schema != nil {
			s = p.Schema.String()
		}
		return fmt.Sprintf("%d, %s, seed=%d", p.TotalRows, s, p.Seed)
	case *FileSourceParams:
		return fmt.Sprintf("%q, samples=%d, shuffle=%t", p.Path, p.NumSamples, p.GlobalShuffle)
	case *exec.FrameParams:
		rows := 0
		if p.Frame != nil {
			rows = p.Frame.NRows()
		}
		return fmt.Sprintf("%q, rows=%d, samples=%d", p.Name, rows, p.NumSamples)
	case *exec.RepeatParams:
		return fmt.Sprint(p.Count)
	case *exec.ProjectParams:
		return strings.Join(p.Columns, ", ")
	case *exec.RenameParams:
		return strings.Join(p.From, ",") + " -> " + strings.Join(p.To, ",")
	case *exec.ShuffleParams:
		return fmt.Sprint(p.BufferSize)
	case *exec.BatchParams:
		return fmt.Sprintf("%d, drop=%t", p.BatchSize, p.DropRemainder)
	case *MapParams:
		names := make([]string, len(p.Operations))
		for i, o := range p.Operations {
			names[i] = o.Name()
		}
		return fmt.Sprintf("[%s], in=[%s], out=[%s], project=[%s]",
			strings.Join(names, ", "), strings.Join(p.InputColumns, ", "),
			strings.Join(p.OutputColumns, ", "), strings.Join(p.ProjectColumns, ", "))
	case *exec.FilterParams:
		return fmt.Sprintf("%s, in=[%s]", p.Predicate, strings.Join(p.InputColumns, ", "))
	case *exec.CountParams:
		return fmt.Sprint(p.Count)
	}
	return ""
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneParams(params any) any {
	switch p := params.(type) {
	case *exec.RandomDataParams:
		c := *p
		if p.Schema != nil {
			c.Schema = p.Schema.Clone()
		}
		return &c
	case *FileSourceParams:
		c := *p
		return &c
	case *exec.FrameParams:
		// The dataframe itself is shared; planning never mutates it.
		c := *p
		return &c
	case *exec.RepeatParams:
		c := *p
		return &c
	case *exec.ProjectParams:
		return &exec.ProjectParams{Columns: cloneStrings(p.Columns)}
	case *exec.RenameParams:
		return &exec.RenameParams{From: cloneStrings(p.From), To: cloneStrings(p.To)}
	case *exec.ShuffleParams:
		c := *p
		return &c
	case *exec.BatchParams:
		c := *p
		return &c
	case *MapParams:
		c := *p
		c.Operations = append([]exec.TensorOp(nil), p.Operations...)
		c.InputColumns = cloneStrings(p.InputColumns)
		c.OutputColumns = cloneStrings(p.OutputColumns)
		c.Callbacks = cloneStrings(p.Callbacks)
		c.ProjectColumns = cloneStrings(p.ProjectColumns)
		if p.OutputSchema != nil {
			c.OutputSchema = p.OutputSchema.Clone()
		}
		return &c
	case *exec.FilterParams:
		return &exec.FilterParams{Predicate: p.Predicate, InputColumns: cloneStrings(p.InputColumns)}
	case *exec.CountParams:
		c := *p
		return &c
	}
	return params
}

// Package exec holds the realized form of a dataset pipeline: operators owned
// by an ExecutionTree, and the pass contract used to rewrite that tree before
// it is handed to an executor.
//
// The tree is an arena. Operators are referenced by Handle, which is the
// order in which they were associated; children are ordered handle lists and
// the parent link is a lookup-only back reference.
package exec

import (
	"fmt"
	"io"
	"strings"

	"github.com/emirpasic/gods/v2/stacks/arraystack"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Handle identifies an operator inside a Tree.
type Handle int32

// NoHandle is the absent handle: no parent, no root.
const NoHandle Handle = -1

// State is the lifecycle stage of a Tree.
type State uint8

const (
	// StateInit accepts associations, links and root assignment.
	StateInit State = iota
	// StatePreparing is set while (and after) pre-passes run.
	StatePreparing
	// StateReady is final: the tree is frozen for execution or introspection.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePreparing:
		return "preparing"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

type record struct {
	op       *Operator
	parent   Handle
	children []Handle
	live     bool
}

// Tree is an ExecutionTree. It exclusively owns every associated operator.
// A Tree is not safe for concurrent use.
type Tree struct {
	id        string
	records   []record
	root      Handle
	state     State
	prePasses PassList
	override  func(PassList) PassList
}

// TreeOption configures a Tree.
type TreeOption func(*Tree)

// WithPrePasses sets the default pre-pass list run by PrepareTreePreAction.
func WithPrePasses(passes ...Pass) TreeOption {
	return func(t *Tree) {
		t.prePasses = append(PassList(nil), passes...)
	}
}

// NewTree creates an empty tree.
func NewTree(opts ...TreeOption) *Tree {
	t := &Tree{
		id:   uuid.New().String(),
		root: NoHandle,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// ID returns a unique id used in logs.
func (t *Tree) ID() string { return t.id }

// State returns the lifecycle stage.
func (t *Tree) State() State { return t.state }

// AssociateNode registers op as owned by the tree and returns its handle.
func (t *Tree) AssociateNode(op *Operator) (Handle, error) {
	if op == nil {
		return NoHandle, errors.Wrap(ErrInvalidState, "associate: nil operator")
	}
	if t.state == StateReady {
		return NoHandle, errors.Wrapf(ErrInvalidState, "associate %s: tree is %s", op.Name(), t.state)
	}
	h := Handle(len(t.records))
	t.records = append(t.records, record{op: op, parent: NoHandle, live: true})
	return h, nil
}

// AssignRoot designates h as the root. It fails if h was not associated or
// a root already exists.
func (t *Tree) AssignRoot(h Handle) error {
	switch {
	case t.state == StateReady:
		return errors.Wrapf(ErrInvalidState, "assign root: tree is %s", t.state)
	case !t.valid(h):
		return errors.Wrapf(ErrInvalidState, "assign root: handle %d is not associated", h)
	case t.root != NoHandle:
		return errors.Wrapf(ErrInvalidState, "assign root: root already assigned to %d", t.root)
	case t.records[h].parent != NoHandle:
		return errors.Wrapf(ErrInvalidState, "assign root: %d already has a parent", h)
	}
	t.root = h
	return nil
}

// AddChild appends child to parent's children.
func (t *Tree) AddChild(parent, child Handle) error {
	switch {
	case t.state == StateReady:
		return errors.Wrapf(ErrInvalidState, "add child: tree is %s", t.state)
	case !t.valid(parent) || !t.valid(child):
		return errors.Wrapf(ErrInvalidState, "add child %d to %d: not associated", child, parent)
	case parent == child:
		return errors.Wrapf(ErrInvalidState, "add child: %d to itself", child)
	case t.records[child].parent != NoHandle:
		return errors.Wrapf(ErrInvalidState, "add child: %d already has parent %d", child, t.records[child].parent)
	case child == t.root:
		return errors.Wrapf(ErrInvalidState, "add child: %d is the root", child)
	}
	t.records[parent].children = append(t.records[parent].children, child)
	t.records[child].parent = parent
	return nil
}

// Root returns the root handle, or NoHandle.
func (t *Tree) Root() Handle { return t.root }

// Op returns the operator at h, or nil if h is not a live operator.
func (t *Tree) Op(h Handle) *Operator {
	if !t.valid(h) {
		return nil
	}
	return t.records[h].op
}

// Children returns a copy of h's children in order.
func (t *Tree) Children(h Handle) []Handle {
	if !t.valid(h) {
		return nil
	}
	return append([]Handle(nil), t.records[h].children...)
}

// Parent returns h's parent, or NoHandle.
func (t *Tree) Parent(h Handle) Handle {
	if !t.valid(h) {
		return NoHandle
	}
	return t.records[h].parent
}

// NumOps returns the number of live operators, linked or not.
func (t *Tree) NumOps() int {
	n := 0
	for _, r := range t.records {
		if r.live {
			n++
		}
	}
	return n
}

// RemoveNode drops h and splices its children into its place under h's
// parent. Removing a root with one child promotes that child; removing a
// childless root leaves the tree without a root.
func (t *Tree) RemoveNode(h Handle) error {
	if err := t.mutable("remove", h); err != nil {
		return err
	}
	r := &t.records[h]
	children := r.children

	if h == t.root {
		switch len(children) {
		case 0:
			t.root = NoHandle
		case 1:
			t.root = children[0]
			t.records[children[0]].parent = NoHandle
		default:
			return errors.Wrapf(ErrInvalidState, "remove root %s: it has %d children", r.op.Name(), len(children))
		}
	} else {
		if r.parent == NoHandle {
			return errors.Wrapf(ErrInvalidState, "remove %s: operator is not linked", r.op.Name())
		}
		p := &t.records[r.parent]
		idx := indexOf(p.children, h)
		spliced := make([]Handle, 0, len(p.children)-1+len(children))
		spliced = append(spliced, p.children[:idx]...)
		spliced = append(spliced, children...)
		spliced = append(spliced, p.children[idx+1:]...)
		p.children = spliced
		for _, c := range children {
			t.records[c].parent = r.parent
		}
	}

	r.children = nil
	r.parent = NoHandle
	r.live = false
	return nil
}

// InsertAbove associates op and links it between h and h's parent. If h is
// the root, op becomes the root.
func (t *Tree) InsertAbove(h Handle, op *Operator) (Handle, error) {
	if err := t.mutable("insert above", h); err != nil {
		return NoHandle, err
	}
	n, err := t.AssociateNode(op)
	if err != nil {
		return NoHandle, err
	}
	parent := t.records[h].parent
	if h == t.root {
		t.root = n
	} else if parent != NoHandle {
		p := &t.records[parent]
		p.children[indexOf(p.children, h)] = n
	}
	t.records[n].parent = parent
	t.records[n].children = []Handle{h}
	t.records[h].parent = n
	return n, nil
}

// DetachChild unlinks child from parent and drops child's whole subtree.
func (t *Tree) DetachChild(parent, child Handle) error {
	if err := t.mutable("detach", child); err != nil {
		return err
	}
	if t.records[child].parent != parent {
		return errors.Wrapf(ErrInvalidState, "detach: %d is not a child of %d", child, parent)
	}
	p := &t.records[parent]
	idx := indexOf(p.children, child)
	p.children = append(p.children[:idx:idx], p.children[idx+1:]...)

	stack := arraystack.New[Handle]()
	stack.Push(child)
	for !stack.Empty() {
		h, _ := stack.Pop()
		for _, c := range t.records[h].children {
			stack.Push(c)
		}
		t.records[h] = record{op: t.records[h].op, parent: NoHandle}
	}
	return nil
}

type walkFrame struct {
	h     Handle
	depth int
}

// Walk visits every operator reachable from the root in pre-order.
// Returning an error from fn stops the walk.
func (t *Tree) Walk(fn func(h Handle, depth int) error) error {
	if t.root == NoHandle {
		return nil
	}
	stack := arraystack.New[walkFrame]()
	stack.Push(walkFrame{h: t.root})
	for !stack.Empty() {
		f, _ := stack.Pop()
		if err := fn(f.h, f.depth); err != nil {
			return err
		}
		children := t.records[f.h].children
		for i := len(children) - 1; i >= 0; i-- {
			stack.Push(walkFrame{h: children[i], depth: f.depth + 1})
		}
	}
	return nil
}

// Print writes one line per reachable operator, indented by depth:
//
//	+- ( 0) <BatchOp>: [workers: 4] [batch size: 2]
//	   +- ( 2) <ProjectOp>: [workers: 0 (inlined)] [columns: label]
func (t *Tree) Print(w io.Writer) error {
	return t.Walk(func(h Handle, depth int) error {
		op := t.records[h].op
		_, err := fmt.Fprintf(w, "%s+- (%2d) <%s>: %s\n", strings.Repeat("   ", depth), h, op.Name(), op.Describe())
		return err
	})
}

// String returns the Print output.
func (t *Tree) String() string {
	var sb strings.Builder
	_ = t.Print(&sb)
	return sb.String()
}

// SetPrePassOverride installs fn, which receives the default pre-pass list
// and returns the list PrepareTreePreAction will actually run.
func (t *Tree) SetPrePassOverride(fn func(PassList) PassList) error {
	if t.state != StateInit {
		return errors.Wrapf(ErrInvalidState, "set pre-pass override: tree is %s", t.state)
	}
	t.override = fn
	return nil
}

// PrepareTreePreAction runs the pre-pass pipeline in order. The first failing
// pass aborts the pipeline; the tree is then in an undefined state.
func (t *Tree) PrepareTreePreAction() error {
	if t.state == StateReady {
		return errors.Wrapf(ErrInvalidState, "prepare: tree is %s", t.state)
	}
	if t.root == NoHandle {
		return errors.Wrap(ErrInvalidState, "prepare: no root assigned")
	}
	t.state = StatePreparing

	passes := append(PassList(nil), t.prePasses...)
	if t.override != nil {
		passes = t.override(passes)
	}
	klog.V(1).Infof("tree %s: running %d pre-passes over %d operators", t.id, len(passes), t.NumOps())
	for _, p := range passes {
		changed, err := p.Run(t)
		if err != nil {
			return &PassError{Pass: p.Name(), Err: err}
		}
		klog.V(2).Infof("tree %s: pass %s changed=%t", t.id, p.Name(), changed)
	}
	return nil
}

// Finalize freezes the tree. It fails if no root remains.
func (t *Tree) Finalize() error {
	if t.root == NoHandle {
		return errors.Wrap(ErrEmptyPipeline, "finalize")
	}
	t.state = StateReady
	klog.V(1).Infof("tree %s: ready with %d operators", t.id, t.NumOps())
	return nil
}

func (t *Tree) valid(h Handle) bool {
	return h >= 0 && int(h) < len(t.records) && t.records[h].live
}

func (t *Tree) mutable(what string, h Handle) error {
	if t.state == StateReady {
		return errors.Wrapf(ErrInvalidState, "%s: tree is %s", what, t.state)
	}
	if !t.valid(h) {
		return errors.Wrapf(ErrInvalidState, "%s: handle %d is not associated", what, h)
	}
	return nil
}

func indexOf(hs []Handle, h Handle) int {
	for i, x := range hs {
		if x == h {
			return i
		}
	}
	return -1
}

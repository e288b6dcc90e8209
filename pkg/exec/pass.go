package exec

// Pass rewrites a tree in place and reports whether anything changed.
// Passes must not introduce cycles or orphan an operator still referenced as
// a child elsewhere.
type Pass interface {
	Name() string
	Run(t *Tree) (changed bool, err error)
}

// PassList is an ordered pass pipeline. Later passes observe the effects of
// earlier ones.
type PassList []Pass

// Names returns the pass names in order.
func (l PassList) Names() []string {
	out := make([]string, len(l))
	for i, p := range l {
		out[i] = p.Name()
	}
	return out
}

// PassFunc adapts a function to the Pass interface.
type PassFunc struct {
	PassName string
	Fn       func(t *Tree) (bool, error)
}

// Name implements Pass.
func (p PassFunc) Name() string { return p.PassName }

// Run implements Pass.
func (p PassFunc) Run(t *Tree) (bool, error) { return p.Fn(t) }

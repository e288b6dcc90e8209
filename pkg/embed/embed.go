// Package embed provides the Go embedding API for dstree.
//
// Pass pipeline DSL text, get a planned execution tree or a metadata answer.
//
// Basic usage:
//
//	tree, err := embed.Plan(`
//	    base = random_data(44, {label: uint32, image: uint8[28, 28]})
//	    return base |> repeat(2) |> batch(2)
//	`)
//
// With pre-loaded DataFrames:
//
//	rows, err := embed.DatasetSize(`return frame("sales") |> batch(2)`,
//	    embed.WithFrames(map[string]*dataframe.DataFrame{"sales": frame}))
package embed

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/dstree/pkg/adapter"
	"github.com/akhildatla/dstree/pkg/config"
	"github.com/akhildatla/dstree/pkg/consumer"
	"github.com/akhildatla/dstree/pkg/dsl"
	"github.com/akhildatla/dstree/pkg/exec"
	"github.com/akhildatla/dstree/pkg/ir"
	"github.com/akhildatla/dstree/pkg/opt"
	"github.com/akhildatla/dstree/pkg/schema"
)

// ErrTimeout is returned when a metadata query outlives its timeout.
var ErrTimeout = errors.New("planning timeout exceeded")

// Options configures planning.
type Options struct {
	// Frames provides pre-loaded DataFrames accessible via frame("name").
	Frames map[string]*dataframe.DataFrame

	// Config holds planner defaults. Nil means config.Default().
	Config *config.Config

	// Mode prunes the planned tree for a metadata query when set.
	Mode *opt.GetterMode

	// GetterOnly runs Mode without the default pre-passes.
	GetterOnly bool

	// Timeout bounds metadata queries. Zero means no timeout.
	Timeout time.Duration

	// Context for cancellation. If nil, context.Background() is used.
	Context context.Context
}

// Option is a functional option for configuring planning.
type Option func(*Options)

// WithFrames sets pre-loaded DataFrames.
func WithFrames(frames map[string]*dataframe.DataFrame) Option {
	return func(o *Options) {
		o.Frames = frames
	}
}

// WithConfig sets the planner configuration.
func WithConfig(cfg *config.Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithGetterMode prunes Plan's tree for mode after the default pre-passes.
func WithGetterMode(mode opt.GetterMode) Option {
	return func(o *Options) {
		o.Mode = &mode
		o.GetterOnly = false
	}
}

// WithGetterOnly prunes Plan's tree for mode and skips the default pre-passes.
func WithGetterOnly(mode opt.GetterMode) Option {
	return func(o *Options) {
		o.Mode = &mode
		o.GetterOnly = true
	}
}

// WithTimeout sets the metadata query timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithContext sets the context for cancellation.
func WithContext(ctx context.Context) Option {
	return func(o *Options) {
		o.Context = ctx
	}
}

func newOptions(opts []Option) *Options {
	options := &Options{Context: context.Background()}
	for _, apply := range opts {
		apply(options)
	}
	options.Config = config.OrDefault(options.Config)
	if options.Context == nil {
		options.Context = context.Background()
	}
	return options
}

// Compile compiles DSL code to its IR pipeline.
func Compile(code string, opts ...Option) (*ir.Node, error) {
	return newOptions(opts).compile(code)
}

func (o *Options) compile(code string) (*ir.Node, error) {
	return dsl.CompilePipeline(code, dsl.WithFrames(o.Frames))
}

// Plan compiles DSL code and returns the prepared execution tree.
//
// Example:
//
//	tree, err := embed.Plan(code,
//	    embed.WithConfig(cfg),
//	    embed.WithGetterMode(opt.OutputShapeAndType),
//	)
//	fmt.Print(tree)
func Plan(code string, opts ...Option) (*exec.Tree, error) {
	o := newOptions(opts)
	root, err := o.compile(code)
	if err != nil {
		return nil, err
	}

	var adapterOpts []adapter.Option
	if o.Mode != nil {
		if o.GetterOnly {
			adapterOpts = append(adapterOpts, adapter.WithGetterOnly(*o.Mode))
		} else {
			adapterOpts = append(adapterOpts, adapter.WithGetterMode(*o.Mode))
		}
	}
	return adapter.NewTreeAdapter(o.Config, adapterOpts...).Compile(root)
}

// PlanFile reads a .dst file and plans it.
func PlanFile(path string, opts ...Option) (*exec.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return Plan(string(data), opts...)
}

// DatasetSize returns the number of rows, or batches, one epoch of the
// pipeline yields.
func DatasetSize(code string, opts ...Option) (int64, error) {
	o := newOptions(opts)
	root, err := o.compile(code)
	if err != nil {
		return 0, err
	}
	ctx, cancel := o.queryContext()
	defer cancel()

	n, err := consumer.New(o.Config).GetDatasetSize(ctx, root)
	return n, mapError(err)
}

// OutputSchema returns the columns of the rows the pipeline yields.
func OutputSchema(code string, opts ...Option) (*schema.Schema, error) {
	o := newOptions(opts)
	root, err := o.compile(code)
	if err != nil {
		return nil, err
	}
	ctx, cancel := o.queryContext()
	defer cancel()

	s, err := consumer.New(o.Config).GetOutputSchema(ctx, root)
	return s, mapError(err)
}

func (o *Options) queryContext() (context.Context, context.CancelFunc) {
	if o.Timeout > 0 {
		return context.WithTimeout(o.Context, o.Timeout)
	}
	return context.WithCancel(o.Context)
}

func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// Package main provides the CLI entry point for dstree.
//
// Usage:
//
//	dstree plan pipeline.dst               # Print the optimized execution tree
//	dstree plan pipeline.dst --mode shape  # Print the tree pruned for a getter
//	dstree size pipeline.dst               # Rows one epoch yields
//	dstree shape pipeline.dst              # Output columns, types and shapes
//	dstree repl                            # Interactive planner shell
package main

import (
	goflag "flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/akhildatla/dstree/pkg/config"
	"github.com/akhildatla/dstree/pkg/embed"
	"github.com/akhildatla/dstree/pkg/opt"
	"github.com/akhildatla/dstree/pkg/repl"
)

// Version info set by GoReleaser via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer klog.Flush()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cliOptions holds the persistent flags shared by every command.
type cliOptions struct {
	configPath    string
	exampleFrames bool
	cfg           *config.Config
}

func (o *cliOptions) embedOptions() []embed.Option {
	opts := []embed.Option{embed.WithConfig(o.cfg)}
	if o.exampleFrames {
		opts = append(opts, embed.WithFrames(loadExampleFrames()))
	}
	return opts
}

func newRootCmd() *cobra.Command {
	o := &cliOptions{}
	root := &cobra.Command{
		Use:           "dstree",
		Short:         "dstree plans dataset pipelines into optimized execution trees",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(o.configPath)
			if err != nil {
				return err
			}
			o.cfg = cfg
			klog.V(1).Infof("config: %+v", *cfg)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "config file (yaml, json or toml); DSTREE_* env vars override it")
	flags.BoolVar(&o.exampleFrames, "example-frames", false, "load built-in example frames (sales, people)")
	addKlogFlags(flags)

	root.AddCommand(
		newPlanCmd(o),
		newSizeCmd(o),
		newShapeCmd(o),
		newReplCmd(o),
		newVersionCmd(),
	)
	return root
}

func addKlogFlags(flags *pflag.FlagSet) {
	fs := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(fs)
	flags.AddGoFlagSet(fs)
}

func newPlanCmd(o *cliOptions) *cobra.Command {
	var mode string
	var getterOnly bool
	cmd := &cobra.Command{
		Use:   "plan <file.dst>",
		Short: "Print the optimized execution tree of a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := o.embedOptions()
			if mode != "" {
				m, err := parseMode(mode)
				if err != nil {
					return err
				}
				if getterOnly {
					opts = append(opts, embed.WithGetterOnly(m))
				} else {
					opts = append(opts, embed.WithGetterMode(m))
				}
			} else if getterOnly {
				return errors.New("--getter-only needs --mode")
			}

			tree, err := embed.PlanFile(args[0], opts...)
			if err != nil {
				return err
			}
			return tree.Print(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "prune the tree for a getter: shape or size")
	cmd.Flags().BoolVar(&getterOnly, "getter-only", false, "run only the getter pass, skipping the default passes")
	return cmd
}

func newSizeCmd(o *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "size <file.dst>",
		Short: "Print the number of rows one epoch of a pipeline yields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "reading %s", args[0])
			}
			n, err := embed.DatasetSize(string(code), append(o.embedOptions(), embed.WithContext(cmd.Context()))...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), humanize.Comma(n))
			return nil
		},
	}
}

func newShapeCmd(o *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shape <file.dst>",
		Short: "Print the output columns, types and shapes of a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "reading %s", args[0])
			}
			s, err := embed.OutputSchema(string(code), append(o.embedOptions(), embed.WithContext(cmd.Context()))...)
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Column", "Type", "Shape"})
			table.SetBorder(false)
			for _, c := range s.Columns() {
				table.Append([]string{c.Name, c.Type.String(), fmt.Sprint(c.Shape)})
			}
			table.Render()
			return nil
		},
	}
}

func newReplCmd(o *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive planner shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := repl.New(o.cfg)
			if o.exampleFrames {
				r.SetFrames(loadExampleFrames())
			}
			r.Start(cmd.InOrStdin(), cmd.OutOrStdout())
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Skip config loading.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "dstree version %s\n", version)
	if commit != "none" {
		fmt.Fprintf(w, "  commit: %s\n", commit)
	}
	if date != "unknown" {
		fmt.Fprintf(w, "  built:  %s\n", date)
	}
}

func parseMode(s string) (opt.GetterMode, error) {
	switch strings.ToLower(s) {
	case "shape", "outputshapeandtype":
		return opt.OutputShapeAndType, nil
	case "size", "datasetsize":
		return opt.DatasetSize, nil
	}
	return 0, errors.Errorf("unknown mode %q: want shape or size", s)
}

// loadExampleFrames constructs the built-in frames referenced by example pipelines.
func loadExampleFrames() map[string]*dataframe.DataFrame {
	frames := make(map[string]*dataframe.DataFrame)

	frames["sales"] = dataframe.NewDataFrame(
		dataframe.NewSeriesString("category", nil, "A", "B", "A", "C"),
		dataframe.NewSeriesFloat64("amount", nil, 10.0, 25.0, 7.5, 40.0),
	)

	frames["people"] = dataframe.NewDataFrame(
		dataframe.NewSeriesString("name", nil, "Johnson", "Anderson", "Lee", "Jackson", "Kim"),
		dataframe.NewSeriesInt64("age", nil, 34, 29, 41, 22, 37),
	)

	return frames
}

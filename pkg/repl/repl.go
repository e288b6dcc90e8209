// Package repl implements the interactive planner shell. Statements
// accumulate variables; commands inspect the pipelines bound to them.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/dstree/pkg/adapter"
	"github.com/akhildatla/dstree/pkg/config"
	"github.com/akhildatla/dstree/pkg/consumer"
	"github.com/akhildatla/dstree/pkg/dsl"
	"github.com/akhildatla/dstree/pkg/ir"
	"github.com/akhildatla/dstree/pkg/loader"
	"github.com/akhildatla/dstree/pkg/schema"
)

const (
	prompt     = "dstree> "
	promptCont = "...> "
)

// REPL provides an interactive Read-Eval-Print Loop.
type REPL struct {
	cfg         *config.Config
	compiler    *dsl.Compiler
	getters     *consumer.TreeGetters
	frames      map[string]*dataframe.DataFrame
	history     []string
	multiline   strings.Builder
	inMultiline bool
}

// New creates a new REPL instance. A nil cfg means config.Default().
func New(cfg *config.Config) *REPL {
	cfg = config.OrDefault(cfg)
	return &REPL{
		cfg:      cfg,
		compiler: dsl.NewCompiler(),
		getters:  consumer.New(cfg),
		frames:   make(map[string]*dataframe.DataFrame),
		history:  []string{},
	}
}

// SetFrames makes frames available to frame("name").
func (r *REPL) SetFrames(frames map[string]*dataframe.DataFrame) {
	for name, df := range frames {
		r.addFrame(name, df)
	}
}

func (r *REPL) addFrame(name string, df *dataframe.DataFrame) {
	r.frames[name] = df
	r.compiler.AddFrame(name, df)
}

// Start runs the loop until quit or end of input.
func (r *REPL) Start(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "dstree REPL - dataset pipeline planner")
	fmt.Fprintln(out, "Type 'help' for available commands, 'quit' to exit")
	fmt.Fprintln(out)

	for {
		if r.inMultiline {
			fmt.Fprint(out, promptCont)
		} else {
			fmt.Fprint(out, prompt)
		}

		if !scanner.Scan() {
			break
		}

		line := scanner.Text()

		if r.inMultiline {
			if line == "" {
				r.inMultiline = false
				input := r.multiline.String()
				r.multiline.Reset()
				r.eval(input, out)
			} else {
				r.multiline.WriteString(strings.TrimSuffix(line, "\\"))
				r.multiline.WriteString("\n")
			}
			continue
		}

		if quit, handled := r.handleCommand(line, out); quit {
			return
		} else if handled {
			continue
		}

		// A trailing backslash starts multiline input; an empty line ends it.
		if strings.HasSuffix(line, "\\") {
			r.inMultiline = true
			r.multiline.WriteString(strings.TrimSuffix(line, "\\"))
			r.multiline.WriteString("\n")
			continue
		}

		r.eval(line, out)
	}
}

// handleCommand runs shell commands. Lines that are not commands are left
// for the DSL.
func (r *REPL) handleCommand(line string, out io.Writer) (quit, handled bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false, true
	}

	// "ir = ..." is an assignment, not the ir command.
	if len(parts) > 1 && parts[1] == "=" {
		return false, false
	}

	switch parts[0] {
	case "quit", "exit", "q":
		fmt.Fprintln(out, "Goodbye!")
		return true, true

	case "help", "h", "?":
		r.printHelp(out)

	case "vars":
		r.listVariables(out)

	case "frames":
		r.listFrames(out)

	case "history":
		for i, cmd := range r.history {
			fmt.Fprintf(out, "%3d: %s\n", i+1, cmd)
		}

	case "clear":
		r.compiler = dsl.NewCompiler(dsl.WithFrames(r.frames))
		r.getters.Flush()
		fmt.Fprintln(out, "Variables cleared")

	case "load":
		if len(parts) != 3 {
			fmt.Fprintln(out, "Usage: load <name> <path>")
			break
		}
		r.loadFrame(parts[1], parts[2], out)

	case "plan", "ir", "shape", "size":
		if len(parts) != 2 {
			fmt.Fprintf(out, "Usage: %s <var>\n", parts[0])
			break
		}
		if err := r.inspect(parts[0], parts[1], out); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}

	default:
		return false, false
	}
	return false, true
}

func (r *REPL) eval(input string, out io.Writer) {
	if strings.TrimSpace(input) == "" {
		return
	}

	r.history = append(r.history, input)

	program, err := dsl.Parse(input)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	for _, stmt := range program.Statements {
		v, err := r.compiler.Exec(stmt)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		if _, ok := stmt.(*dsl.AssignStmt); ok {
			continue
		}
		fmt.Fprintf(out, "=> %s\n", strings.TrimRight(format(v), "\n"))
	}
}

func (r *REPL) inspect(cmd, name string, out io.Writer) error {
	node, err := r.compiler.Pipeline(name)
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch cmd {
	case "ir":
		fmt.Fprint(out, node)
	case "plan":
		tree, err := adapter.NewTreeAdapter(r.cfg).Compile(node)
		if err != nil {
			return err
		}
		fmt.Fprint(out, tree)
	case "size":
		n, err := r.getters.GetDatasetSize(ctx, node)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %s rows per epoch\n", name, humanize.Comma(n))
	case "shape":
		s, err := r.getters.GetOutputSchema(ctx, node)
		if err != nil {
			return err
		}
		renderSchema(s, out)
	}
	return nil
}

func (r *REPL) loadFrame(name, path string, out io.Writer) {
	format, err := loader.FormatOf(path)
	if err != nil {
		fmt.Fprintf(out, "Error loading %s: %v\n", path, err)
		return
	}
	frame, err := loader.Load(context.Background(), format, path)
	if err != nil {
		fmt.Fprintf(out, "Error loading %s: %v\n", path, err)
		return
	}

	r.addFrame(name, frame)
	fmt.Fprintf(out, "Loaded frame '%s' from %s (%s rows, %d columns)\n",
		name, path, humanize.Comma(int64(frame.NRows())), len(frame.Series))
}

func (r *REPL) listFrames(out io.Writer) {
	if len(r.frames) == 0 {
		fmt.Fprintln(out, "No frames loaded")
		return
	}

	table := newTable(out, "Frame", "Rows", "Columns")
	for name, frame := range r.frames {
		table.Append([]string{name, humanize.Comma(int64(frame.NRows())), schema.FromFrame(frame).String()})
	}
	table.Render()
}

func (r *REPL) listVariables(out io.Writer) {
	names := r.compiler.Vars()
	if len(names) == 0 {
		fmt.Fprintln(out, "No variables defined")
		return
	}

	table := newTable(out, "Name", "Kind", "Value")
	for _, name := range names {
		v, _ := r.compiler.Lookup(name)
		kind, summary := "value", format(v)
		switch x := v.(type) {
		case *ir.Node:
			kind, summary = "pipeline", firstLine(x.String())
		case *schema.Schema:
			kind = "schema"
		}
		table.Append([]string{name, kind, summary})
	}
	table.Render()
}

func renderSchema(s *schema.Schema, out io.Writer) {
	table := newTable(out, "Column", "Type", "Shape")
	for _, c := range s.Columns() {
		table.Append([]string{c.Name, c.Type.String(), fmt.Sprint(c.Shape)})
	}
	table.Render()
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	return table
}

func format(v any) string {
	switch x := v.(type) {
	case *ir.Node:
		return "\n" + x.String()
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func (r *REPL) printHelp(out io.Writer) {
	help := `
dstree REPL Commands:
  help, h, ?      Show this help message
  quit, exit, q   Exit the REPL
  vars            List defined variables
  frames          List loaded data frames
  load <n> <path> Load a CSV, JSON or Parquet file as frame n
  ir <var>        Show the pipeline IR of a variable
  plan <var>      Show the optimized execution tree
  shape <var>     Show the output columns, types and shapes
  size <var>      Show the number of rows one epoch yields
  clear           Clear all variables
  history         Show input history

Examples:
  base = random_data(44, {label: uint32, image: uint8[28, 28]})
  ds = base |> repeat(2) |> project(label) |> batch(2)
  size ds

Tips:
  - End a line with \ for multiline input
  - Press Enter on an empty line to evaluate multiline input
`
	fmt.Fprint(out, help)
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhildatla/dstree/internal/testutil"
	"github.com/akhildatla/dstree/pkg/opt"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	err := root.Execute()
	return out.String(), err
}

func pipelineFile(t *testing.T, code string) string {
	t.Helper()
	return testutil.TempFile(t, code, ".dst")
}

func TestCLI_Version(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dstree version dev")
}

func TestCLI_Help(t *testing.T) {
	out, err := runCLI(t, "", "--help")
	require.NoError(t, err)
	for _, cmd := range []string{"plan", "size", "shape", "repl", "version", "--config", "--example-frames", "--vmodule"} {
		assert.Contains(t, out, cmd)
	}
}

func TestCLI_Plan(t *testing.T) {
	path := pipelineFile(t, testutil.ImagePipelineDSL)

	out, err := runCLI(t, "", "plan", path)
	require.NoError(t, err)
	assert.Contains(t, out, "<ShuffleOp>")
	assert.Contains(t, out, "<RepeatOp>")

	out, err = runCLI(t, "", "plan", path, "--mode", "shape")
	require.NoError(t, err)
	assert.Equal(t, testutil.ImageTreeShape, out)

	out, err = runCLI(t, "", "plan", path, "--mode", "size", "--getter-only")
	require.NoError(t, err)
	assert.Contains(t, out, "<RepeatOp>")
	assert.NotContains(t, out, "<ShuffleOp>")
}

func TestCLI_PlanErrors(t *testing.T) {
	path := pipelineFile(t, testutil.ImagePipelineDSL)

	_, err := runCLI(t, "", "plan", path, "--mode", "rows")
	assert.ErrorContains(t, err, "unknown mode")

	_, err = runCLI(t, "", "plan", path, "--getter-only")
	assert.ErrorContains(t, err, "--getter-only needs --mode")

	_, err = runCLI(t, "", "plan", filepath.Join(t.TempDir(), "missing.dst"))
	assert.Error(t, err)

	_, err = runCLI(t, "", "plan")
	assert.Error(t, err)
}

func TestCLI_Size(t *testing.T) {
	out, err := runCLI(t, "", "size", pipelineFile(t, "return random_data(1000000, {x: int64}) |> batch(10)"))
	require.NoError(t, err)
	assert.Equal(t, "100,000\n", out)
}

func TestCLI_Shape(t *testing.T) {
	out, err := runCLI(t, "", "shape", pipelineFile(t, testutil.ImagePipelineDSL))
	require.NoError(t, err)
	assert.Contains(t, out, "label")
	assert.Contains(t, out, "uint32")
	assert.Contains(t, out, "[2]")
}

func TestCLI_ExampleFrames(t *testing.T) {
	path := pipelineFile(t, `return frame("people") |> batch(2)`)

	_, err := runCLI(t, "", "size", path)
	assert.ErrorContains(t, err, "undefined name")

	out, err := runCLI(t, "", "size", "--example-frames", path)
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

func TestCLI_Config(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "dstree.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("num_epochs: 3\nnum_parallel_workers: 2\n"), 0o644))
	path := pipelineFile(t, testutil.ImagePipelineDSL)

	out, err := runCLI(t, "", "plan", "--config", cfgPath, path)
	require.NoError(t, err)
	assert.Contains(t, out, "<EpochCtrlOp>")
	assert.Contains(t, out, "[workers: 2]")

	require.NoError(t, os.WriteFile(cfgPath, []byte("num_epochs: 0\n"), 0o644))
	_, err = runCLI(t, "", "plan", "--config", cfgPath, path)
	assert.ErrorContains(t, err, "num_epochs")
}

func TestCLI_Repl(t *testing.T) {
	out, err := runCLI(t, "ds = frame(\"sales\") |> batch(3)\nsize ds\nquit\n", "repl", "--example-frames")
	require.NoError(t, err)
	assert.Contains(t, out, "ds: 2 rows per epoch")
	assert.Contains(t, out, "Goodbye")
}

func TestParseMode(t *testing.T) {
	m, err := parseMode("Shape")
	require.NoError(t, err)
	assert.Equal(t, opt.OutputShapeAndType, m)

	m, err = parseMode("DatasetSize")
	require.NoError(t, err)
	assert.Equal(t, opt.DatasetSize, m)

	_, err = parseMode("")
	assert.Error(t, err)
}

// Package testutil provides shared fixtures for dstree tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/stretchr/testify/require"

	"github.com/akhildatla/dstree/pkg/ir"
	"github.com/akhildatla/dstree/pkg/schema"
)

// TempFile writes content to a file with the given extension inside a
// per-test directory and returns its path.
func TempFile(t *testing.T, content, ext string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+ext)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TempCSV is TempFile for CSV content.
func TempCSV(t *testing.T, content string) string {
	t.Helper()
	return TempFile(t, content, ".csv")
}

// SalesCSV returns a five-row CSV with float, int and string columns.
func SalesCSV() string {
	return `price,quantity,category
10.5,5,A
20.0,15,B
5.0,3,A
30.0,20,C
15.0,8,B`
}

// SalesJSON is SalesCSV as a JSON array of objects.
func SalesJSON() string {
	return `[
{"price": 10.5, "quantity": 5, "category": "A"},
{"price": 20.0, "quantity": 15, "category": "B"},
{"price": 5.0, "quantity": 3, "category": "A"},
{"price": 30.0, "quantity": 20, "category": "C"},
{"price": 15.0, "quantity": 8, "category": "B"}
]`
}

// MakeSalesFrame returns SalesCSV as an in-memory frame.
func MakeSalesFrame() *dataframe.DataFrame {
	return dataframe.NewDataFrame(
		dataframe.NewSeriesFloat64("price", nil, 10.5, 20.0, 5.0, 30.0, 15.0),
		dataframe.NewSeriesInt64("quantity", nil, 5, 15, 3, 20, 8),
		dataframe.NewSeriesString("category", nil, "A", "B", "A", "C", "B"),
	)
}

// ImageSchema returns {label: uint32, image: uint8[28, 28]}.
func ImageSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s := schema.New()
	require.NoError(t, s.AddColumn("label", "uint32", nil))
	require.NoError(t, s.AddColumn("image", "uint8", []int{28, 28}))
	return s
}

// ImagePipeline is the reference pipeline:
// RandomData(44) |> repeat(2) |> project(label) |> shuffle(10) |> batch(2).
func ImagePipeline(t *testing.T) *ir.Node {
	t.Helper()
	return ir.RandomData(44, ImageSchema(t)).Repeat(2).Project("label").Shuffle(10).Batch(2, false)
}

// ImagePipelineDSL is ImagePipeline in pipeline DSL form.
const ImagePipelineDSL = `base = random_data(44, {label: uint32, image: uint8[28, 28]})
ds = base |> repeat(2) |> project(label) |> shuffle(10) |> batch(2)
return ds
`

// ImageTreeShape is the shape-getter print of ImagePipeline under the
// default config.
const ImageTreeShape = "+- ( 0) <BatchOp>: [workers: 4] [batch size: 2]\n" +
	"   +- ( 2) <ProjectOp>: [workers: 0 (inlined)] [columns: label]\n" +
	"      +- ( 4) <RandomDataOp>: [workers: 4] [total rows: 44]\n"

package loader

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhildatla/dstree/internal/testutil"
	"github.com/akhildatla/dstree/pkg/schema"
)

func names(df *dataframe.DataFrame) []string {
	out := make([]string, len(df.Series))
	for i, s := range df.Series {
		out[i] = s.Name()
	}
	return out
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"csv": CSV, ".json": JSON, "PARQUET": Parquet, "pq": Parquet} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xlsx")
	assert.True(t, errors.Is(err, ErrUnknownFormat))

	f, err := FormatOf("/data/train.parquet")
	require.NoError(t, err)
	assert.Equal(t, "parquet", f.String())
}

func TestLoadCSV_Types(t *testing.T) {
	path := testutil.TempCSV(t, testutil.SalesCSV())
	df, err := LoadCSV(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 5, df.NRows())
	assert.Equal(t, []string{"price", "quantity", "category"}, names(df))
	assert.IsType(t, &dataframe.SeriesFloat64{}, df.Series[0])
	assert.IsType(t, &dataframe.SeriesInt64{}, df.Series[1])
	assert.IsType(t, &dataframe.SeriesString{}, df.Series[2])
}

func TestLoadCSV_HeaderOnly(t *testing.T) {
	df, err := LoadCSV(context.Background(), testutil.TempCSV(t, "id,name,value"))
	require.NoError(t, err)
	assert.Len(t, df.Series, 3)
	assert.Equal(t, 0, df.NRows())
}

func TestLoadCSV_Errors(t *testing.T) {
	_, err := LoadCSV(context.Background(), testutil.TempCSV(t, ""))
	assert.Error(t, err)

	_, err = LoadCSV(context.Background(), "/nonexistent/file.csv")
	assert.Error(t, err)
}

func TestLoadJSON(t *testing.T) {
	path := testutil.TempFile(t, testutil.SalesJSON(), ".json")
	df, err := LoadJSON(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 5, df.NRows())
	assert.ElementsMatch(t, []string{"price", "quantity", "category"}, names(df))

	_, err = LoadJSON(context.Background(), testutil.TempFile(t, "", ".json"))
	assert.True(t, errors.Is(err, ErrEmptyFile))

	for _, bad := range []string{"[]", "{invalid json}"} {
		_, err = LoadJSON(context.Background(), testutil.TempFile(t, bad, ".json"))
		assert.Error(t, err, bad)
	}
}

func TestLoadParquet_Errors(t *testing.T) {
	_, err := LoadParquet(context.Background(), "/nonexistent/path/file.parquet")
	assert.Error(t, err)

	for _, bad := range []string{"", "not a parquet file"} {
		_, err = LoadParquet(context.Background(), testutil.TempFile(t, bad, ".parquet"))
		assert.Error(t, err)
	}
}

func TestInspect(t *testing.T) {
	rows, s, err := Inspect(context.Background(), CSV, testutil.TempCSV(t, testutil.SalesCSV()))
	require.NoError(t, err)
	assert.Equal(t, int64(5), rows)
	assert.Equal(t, []string{"price", "quantity", "category"}, s.Names())
	col, ok := s.Column("quantity")
	require.True(t, ok)
	assert.Equal(t, schema.Int64, col.Type)

	_, err = Load(context.Background(), Format(7), "x")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

// Package loader reads file-backed pipeline sources into dataframes.
package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/imports"
	"github.com/xitongsys/parquet-go-source/local"

	"github.com/akhildatla/dstree/pkg/schema"
)

// Loader errors
var (
	ErrEmptyFile     = errors.New("empty file")
	ErrInvalidFormat = errors.New("invalid file format")
	ErrUnknownFormat = errors.New("unknown file format")
)

// Format is a supported on-disk source format.
type Format uint8

const (
	CSV Format = iota
	JSON
	Parquet
)

func (f Format) String() string {
	switch f {
	case CSV:
		return "csv"
	case JSON:
		return "json"
	case Parquet:
		return "parquet"
	}
	return "unknown"
}

// ParseFormat accepts a format name or a file extension, with or without the dot.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	case "parquet", "pq":
		return Parquet, nil
	}
	return 0, errors.Wrapf(ErrUnknownFormat, "%q", name)
}

// FormatOf guesses the format from the file extension.
func FormatOf(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Load reads path as the given format.
func Load(ctx context.Context, format Format, path string) (*dataframe.DataFrame, error) {
	switch format {
	case CSV:
		return LoadCSV(ctx, path)
	case JSON:
		return LoadJSON(ctx, path)
	case Parquet:
		return LoadParquet(ctx, path)
	}
	return nil, errors.Wrapf(ErrUnknownFormat, "format %d", format)
}

// Inspect loads path and returns its row count and inferred schema.
func Inspect(ctx context.Context, format Format, path string) (int64, *schema.Schema, error) {
	df, err := Load(ctx, format, path)
	if err != nil {
		return 0, nil, err
	}
	return int64(df.NRows()), schema.FromFrame(df), nil
}

// LoadCSV reads a CSV file whose first row is the header. Column types are
// inferred (int64, float64, string); empty values become nil.
func LoadCSV(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "load csv")
	}
	defer file.Close()

	df, err := imports.LoadFromCSV(ctx, file, imports.CSVLoadOptions{
		InferDataTypes: true,
	})
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidFormat, "load csv %s: %v", path, err)
	}
	if df == nil || len(df.Series) == 0 {
		return nil, errors.Wrapf(ErrEmptyFile, "load csv %s", path)
	}
	return df, nil
}

// LoadJSON reads a file holding an array of objects: [{"col": val}, ...].
func LoadJSON(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "load json")
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "load json")
	}
	if info.Size() == 0 {
		return nil, errors.Wrapf(ErrEmptyFile, "load json %s", path)
	}

	df, err := imports.LoadFromJSON(ctx, file)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidFormat, "load json %s: %v", path, err)
	}
	if df == nil || len(df.Series) == 0 {
		return nil, errors.Wrapf(ErrEmptyFile, "load json %s", path)
	}
	return df, nil
}

// LoadParquet reads a parquet file through a local parquet-go source.
func LoadParquet(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, errors.Wrap(err, "load parquet")
	}
	defer fr.Close()

	df, err := imports.LoadFromParquet(ctx, fr)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidFormat, "load parquet %s: %v", path, err)
	}
	if df == nil || len(df.Series) == 0 {
		return nil, errors.Wrapf(ErrEmptyFile, "load parquet %s", path)
	}
	return df, nil
}

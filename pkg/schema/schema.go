// Package schema describes the columns a dataset pipeline yields: their names,
// element types and per-row shapes.
package schema

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	dataframe "github.com/rocketlaunchr/dataframe-go"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Schema errors
var (
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrUnknownType     = errors.New("unknown data type")
)

// Column is one named column of a dataset row.
// A nil Shape means the column holds a scalar.
type Column struct {
	Name  string
	Type  DataType
	Shape []int
}

// String returns "name: type[d0, d1]".
func (c Column) String() string {
	if len(c.Shape) == 0 {
		return fmt.Sprintf("%s: %s", c.Name, c.Type)
	}
	dims := make([]string, len(c.Shape))
	for i, d := range c.Shape {
		dims[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("%s: %s[%s]", c.Name, c.Type, strings.Join(dims, ", "))
}

// Schema is an insertion-ordered set of columns.
type Schema struct {
	cols *orderedmap.OrderedMap[string, Column]
}

// New creates an empty schema.
func New() *Schema {
	return &Schema{cols: orderedmap.New[string, Column]()}
}

// AddColumn adds a column given its type name, e.g. AddColumn("label", "uint32", nil).
func (s *Schema) AddColumn(name, typeName string, shape []int) error {
	dt, err := ParseDataType(typeName)
	if err != nil {
		return err
	}
	return s.Add(Column{Name: name, Type: dt, Shape: shape})
}

// Add appends a column. Column names are unique.
func (s *Schema) Add(c Column) error {
	if c.Name == "" {
		return errors.Wrap(ErrUnknownColumn, "empty column name")
	}
	if _, ok := s.cols.Get(c.Name); ok {
		return errors.Wrapf(ErrDuplicateColumn, "%q", c.Name)
	}
	c.Shape = append([]int(nil), c.Shape...)
	s.cols.Set(c.Name, c)
	return nil
}

// Column looks up a column by name.
func (s *Schema) Column(name string) (Column, bool) {
	return s.cols.Get(name)
}

// Columns returns the columns in order.
func (s *Schema) Columns() []Column {
	out := make([]Column, 0, s.cols.Len())
	for pair := s.cols.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Names returns the column names in order.
func (s *Schema) Names() []string {
	out := make([]string, 0, s.cols.Len())
	for pair := s.cols.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Len returns the number of columns.
func (s *Schema) Len() int {
	return s.cols.Len()
}

// Clone returns a deep copy.
func (s *Schema) Clone() *Schema {
	out := New()
	for _, c := range s.Columns() {
		_ = out.Add(c)
	}
	return out
}

// Project keeps only the named columns, in the order given.
func (s *Schema) Project(names []string) (*Schema, error) {
	out := New()
	for _, name := range names {
		c, ok := s.cols.Get(name)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownColumn, "project %q", name)
		}
		if err := out.Add(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Rename renames columns pairwise, keeping their positions.
func (s *Schema) Rename(from, to []string) (*Schema, error) {
	if len(from) != len(to) {
		return nil, errors.Errorf("rename: %d input columns but %d output columns", len(from), len(to))
	}
	mapping := make(map[string]string, len(from))
	for i, name := range from {
		if _, ok := s.cols.Get(name); !ok {
			return nil, errors.Wrapf(ErrUnknownColumn, "rename %q", name)
		}
		mapping[name] = to[i]
	}
	out := New()
	for _, c := range s.Columns() {
		if renamed, ok := mapping[c.Name]; ok {
			c.Name = renamed
		}
		if err := out.Add(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Merge appends the columns of other, as a zip of two datasets does.
func (s *Schema) Merge(other *Schema) (*Schema, error) {
	out := s.Clone()
	for _, c := range other.Columns() {
		if err := out.Add(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Batched prefixes every column shape with the batch dimension.
func (s *Schema) Batched(batchSize int) *Schema {
	out := New()
	for _, c := range s.Columns() {
		c.Shape = append([]int{batchSize}, c.Shape...)
		_ = out.Add(c)
	}
	return out
}

// Replace substitutes the columns named in inputs by outputs, inserting
// outputs where the first input column used to be.
func (s *Schema) Replace(inputs []string, outputs []Column) (*Schema, error) {
	drop := make(map[string]bool, len(inputs))
	for _, name := range inputs {
		if _, ok := s.cols.Get(name); !ok {
			return nil, errors.Wrapf(ErrUnknownColumn, "map input %q", name)
		}
		drop[name] = true
	}
	out := New()
	inserted := false
	for _, c := range s.Columns() {
		if !drop[c.Name] {
			if err := out.Add(c); err != nil {
				return nil, err
			}
			continue
		}
		if inserted {
			continue
		}
		inserted = true
		for _, o := range outputs {
			if err := out.Add(o); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// String returns "{a: int64, b: float32[3]}".
func (s *Schema) String() string {
	parts := make([]string, 0, s.cols.Len())
	for _, c := range s.Columns() {
		parts = append(parts, c.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// FromFrame infers a scalar-per-row schema from a dataframe.
func FromFrame(df *dataframe.DataFrame) *Schema {
	out := New()
	if df == nil {
		return out
	}
	for _, series := range df.Series {
		var dt DataType
		switch series.(type) {
		case *dataframe.SeriesInt64:
			dt = Int64
		case *dataframe.SeriesFloat64:
			dt = Float64
		case *dataframe.SeriesString:
			dt = String
		default:
			dt = Unknown
		}
		_ = out.Add(Column{Name: series.Name(), Type: dt})
	}
	return out
}

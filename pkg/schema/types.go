package schema

import (
	"strings"

	"github.com/pkg/errors"
)

// DataType is the element type of a column.
type DataType uint8

const (
	Unknown DataType = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float16
	Float32
	Float64
	String
)

var typeNames = [...]string{
	Unknown: "unknown",
	Bool:    "bool",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
	Float16: "float16",
	Float32: "float32",
	Float64: "float64",
	String:  "string",
}

// String returns the lowercase type name.
func (t DataType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// ParseDataType parses a type name such as "uint32" or "float".
func ParseDataType(name string) (DataType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "float":
		return Float32, nil
	case "double":
		return Float64, nil
	case "int":
		return Int64, nil
	case "str":
		return String, nil
	}
	for i, n := range typeNames {
		if n == name && DataType(i) != Unknown {
			return DataType(i), nil
		}
	}
	return Unknown, errors.Wrapf(ErrUnknownType, "%q", name)
}

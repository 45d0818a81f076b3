package models

import (
	"fmt"
	"strings"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
)

// FieldType is the type tag of a struct field.
type FieldType string

// Supported field types
const (
	Int8      FieldType = "int8"
	Int16     FieldType = "int16"
	Int32     FieldType = "int32"
	Int64     FieldType = "int64"
	Float32   FieldType = "float32"
	Float64   FieldType = "float64"
	Boolean   FieldType = "boolean"
	String    FieldType = "string"
	Bytes     FieldType = "bytes"
	Decimal   FieldType = "decimal"
	Date      FieldType = "date"
	Time      FieldType = "time"
	Timestamp FieldType = "timestamp"
)

var fieldTypeAliases = map[string]FieldType{
	"int8":      Int8,
	"int16":     Int16,
	"int32":     Int32,
	"int64":     Int64,
	"float32":   Float32,
	"float":     Float32,
	"float64":   Float64,
	"double":    Float64,
	"boolean":   Boolean,
	"bool":      Boolean,
	"string":    String,
	"bytes":     Bytes,
	"decimal":   Decimal,
	"date":      Date,
	"time":      Time,
	"timestamp": Timestamp,
}

// ParseFieldType resolves a type name, case-insensitively. The Kafka Connect
// names "float" and "double" are accepted for float32 and float64.
func ParseFieldType(s string) (FieldType, error) {
	ft, ok := fieldTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", errors.New(errors.ErrorTypeValidation, fmt.Sprintf("unknown field type %q", s))
	}
	return ft, nil
}

// Valid reports whether ft is one of the supported field types.
func (ft FieldType) Valid() bool {
	switch ft {
	case Int8, Int16, Int32, Int64, Float32, Float64, Boolean, String, Bytes, Decimal, Date, Time, Timestamp:
		return true
	}
	return false
}

// Field describes one field of a struct schema.
type Field struct {
	Name     string    `json:"name" yaml:"name"`
	Type     FieldType `json:"type" yaml:"type"`
	Optional bool      `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// Schema is the ordered field list of a struct. Field order is significant:
// it is the order in which columns are extracted.
type Schema struct {
	Name   string  `json:"name,omitempty" yaml:"name,omitempty"`
	Fields []Field `json:"fields" yaml:"fields"`

	index map[string]int
}

// NewSchema builds a schema and validates that field names are unique and
// field types are known.
func NewSchema(name string, fields ...Field) (*Schema, error) {
	s := &Schema{Name: name, Fields: fields}
	if err := s.build(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error. Intended for tests and
// static schemas.
func MustSchema(name string, fields ...Field) *Schema {
	s, err := NewSchema(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) build() error {
	s.index = make(map[string]int, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("field %d has no name", i))
		}
		if !f.Type.Valid() {
			return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("field %q has unknown type %q", f.Name, f.Type))
		}
		if _, dup := s.index[f.Name]; dup {
			return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("duplicate field %q", f.Name))
		}
		s.index[f.Name] = i
	}
	return nil
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.indexOf(name)
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// indexOf falls back to a linear scan for schemas built as literals.
func (s *Schema) indexOf(name string) (int, bool) {
	if s.index != nil {
		i, ok := s.index[name]
		return i, ok
	}
	for i, f := range s.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}

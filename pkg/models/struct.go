package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
)

// Struct is a structured record value: a schema plus one value per field.
// Values are stored in schema order; an unset or nil value means absent.
type Struct struct {
	schema *Schema
	values []any
}

// NewStruct creates an empty struct for schema.
func NewStruct(schema *Schema) *Struct {
	return &Struct{schema: schema, values: make([]any, len(schema.Fields))}
}

// Schema returns the struct's schema.
func (s *Struct) Schema() *Schema {
	return s.schema
}

// Put sets a field value. The Go type of v must match the field type:
// int8..int64 and float32/float64 map to the same Go types, boolean to bool,
// string to string, bytes to []byte, decimal to decimal.Decimal, and
// date/time/timestamp to time.Time. nil is accepted only for optional fields.
func (s *Struct) Put(name string, v any) (*Struct, error) {
	i, ok := s.schema.indexOf(name)
	if !ok {
		return s, errors.New(errors.ErrorTypeValidation, fmt.Sprintf("%q is not a valid field name", name))
	}
	f := s.schema.Fields[i]
	if v == nil {
		if !f.Optional {
			return s, errors.New(errors.ErrorTypeValidation, fmt.Sprintf("field %q is not optional", name))
		}
		s.values[i] = nil
		return s, nil
	}
	if err := checkType(f, v); err != nil {
		return s, err
	}
	s.values[i] = v
	return s, nil
}

// MustPut is like Put but panics on error.
func (s *Struct) MustPut(name string, v any) *Struct {
	if _, err := s.Put(name, v); err != nil {
		panic(err)
	}
	return s
}

// Get returns the value of a field, or nil when it is unset or unknown.
func (s *Struct) Get(name string) any {
	i, ok := s.schema.indexOf(name)
	if !ok {
		return nil
	}
	return s.values[i]
}

// ValueAt returns the value of the i-th schema field.
func (s *Struct) ValueAt(i int) any {
	return s.values[i]
}

// Validate checks that every required field has a value.
func (s *Struct) Validate() error {
	for i, f := range s.schema.Fields {
		if !f.Optional && s.values[i] == nil {
			return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("invalid value: null used for required field %q", f.Name))
		}
	}
	return nil
}

func checkType(f Field, v any) error {
	ok := false
	switch f.Type {
	case Int8:
		_, ok = v.(int8)
	case Int16:
		_, ok = v.(int16)
	case Int32:
		_, ok = v.(int32)
	case Int64:
		_, ok = v.(int64)
	case Float32:
		_, ok = v.(float32)
	case Float64:
		_, ok = v.(float64)
	case Boolean:
		_, ok = v.(bool)
	case String:
		_, ok = v.(string)
	case Bytes:
		_, ok = v.([]byte)
	case Decimal:
		_, ok = v.(decimal.Decimal)
	case Date, Time, Timestamp:
		_, ok = v.(time.Time)
	}
	if !ok {
		return errors.New(errors.ErrorTypeValidation,
			fmt.Sprintf("invalid Go type %T for field %q of type %s", v, f.Name, f.Type))
	}
	return nil
}

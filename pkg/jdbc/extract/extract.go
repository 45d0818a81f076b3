// Package extract turns a struct value into the ordered column/binder pairs
// of one insert row.
package extract

import (
	"fmt"

	"github.com/hasnat/kafka-connect-jdbc/pkg/config"
	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/jdbc/binders"
	"github.com/hasnat/kafka-connect-jdbc/pkg/models"
)

// Pair is one output column and the binder for its value.
type Pair struct {
	Column string
	Binder binders.Binder
}

// FieldsExtractor produces the pairs for a struct value.
type FieldsExtractor interface {
	Get(s *models.Struct) ([]Pair, error)
}

// StructFieldsExtractor selects and renames fields according to a
// FieldsConfig.
type StructFieldsExtractor struct {
	fields config.FieldsConfig
}

// New creates an extractor for the given field selection.
func New(fields config.FieldsConfig) *StructFieldsExtractor {
	return &StructFieldsExtractor{fields: fields}
}

// Get walks the schema in field order. A field contributes a pair when it is
// selected and its value is non-nil; the column is its alias when mapped.
// Mapped fields the schema does not have are ignored.
func (e *StructFieldsExtractor) Get(s *models.Struct) ([]Pair, error) {
	schema := s.Schema()
	pairs := make([]Pair, 0, len(schema.Fields))
	seen := make(map[string]string, len(schema.Fields))

	for i, f := range schema.Fields {
		column, ok := e.fields.Column(f.Name)
		if !ok {
			continue
		}
		value := s.ValueAt(i)
		if value == nil {
			continue
		}
		if other, dup := seen[column]; dup {
			return nil, errors.New(errors.ErrorTypeValidation,
				fmt.Sprintf("fields %q and %q both map to column %q", other, f.Name, column))
		}
		b, err := binders.For(f.Type, value)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, fmt.Sprintf("field %q", f.Name))
		}
		seen[column] = f.Name
		pairs = append(pairs, Pair{Column: column, Binder: b})
	}
	return pairs, nil
}

// Columns returns the column names of pairs in order.
func Columns(pairs []Pair) []string {
	cols := make([]string, len(pairs))
	for i, p := range pairs {
		cols[i] = p.Column
	}
	return cols
}

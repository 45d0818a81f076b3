// Package binders binds typed struct field values into statement parameter
// slots.
package binders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/models"
)

// TimeLayout is the text form bound for time-of-day fields.
const TimeLayout = "15:04:05.999999999"

// Params is a parameterized statement accepting one value per slot.
// Slots are 0-based.
type Params interface {
	SetParam(index int, value any) error
}

// Binder binds one value into one parameter slot.
type Binder interface {
	Bind(p Params, index int) error
	// Value is the driver value the binder sets
	Value() any
}

// valueBinder binds a value that has already been converted to its
// database/sql form.
type valueBinder struct {
	value any
}

func (b valueBinder) Bind(p Params, index int) error {
	return p.SetParam(index, b.value)
}

func (b valueBinder) Value() any {
	return b.value
}

type convertFunc func(v any) (any, bool)

// converters maps each field type to its conversion into a driver value.
var converters = map[models.FieldType]convertFunc{
	models.Int8: func(v any) (any, bool) {
		n, ok := v.(int8)
		return int64(n), ok
	},
	models.Int16: func(v any) (any, bool) {
		n, ok := v.(int16)
		return int64(n), ok
	},
	models.Int32: func(v any) (any, bool) {
		n, ok := v.(int32)
		return int64(n), ok
	},
	models.Int64: func(v any) (any, bool) {
		n, ok := v.(int64)
		return n, ok
	},
	models.Float32: func(v any) (any, bool) {
		f, ok := v.(float32)
		return float64(f), ok
	},
	models.Float64: func(v any) (any, bool) {
		f, ok := v.(float64)
		return f, ok
	},
	models.Boolean: func(v any) (any, bool) {
		b, ok := v.(bool)
		return b, ok
	},
	models.String: func(v any) (any, bool) {
		s, ok := v.(string)
		return s, ok
	},
	models.Bytes: func(v any) (any, bool) {
		b, ok := v.([]byte)
		return b, ok
	},
	models.Decimal: func(v any) (any, bool) {
		d, ok := v.(decimal.Decimal)
		return d.String(), ok
	},
	models.Date: func(v any) (any, bool) {
		t, ok := v.(time.Time)
		if !ok {
			return nil, false
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	},
	models.Time: func(v any) (any, bool) {
		t, ok := v.(time.Time)
		return t.Format(TimeLayout), ok
	},
	models.Timestamp: func(v any) (any, bool) {
		t, ok := v.(time.Time)
		return t.UTC(), ok
	},
}

// For returns the binder for a value of the given field type.
func For(ft models.FieldType, value any) (Binder, error) {
	convert, ok := converters[ft]
	if !ok {
		return nil, errors.New(errors.ErrorTypeValidation, fmt.Sprintf("no binder for field type %q", ft))
	}
	v, ok := convert(value)
	if !ok {
		return nil, errors.New(errors.ErrorTypeValidation,
			fmt.Sprintf("value of Go type %T cannot be bound as %s", value, ft))
	}
	return valueBinder{value: v}, nil
}

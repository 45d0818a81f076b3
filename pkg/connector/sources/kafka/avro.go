package kafka

import (
	"fmt"
	"math/big"
	"time"

	"github.com/linkedin/goavro/v2"
	"github.com/shopspring/decimal"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/json"
	"github.com/hasnat/kafka-connect-jdbc/pkg/models"
)

// wireHeaderSize is the magic byte plus the 4-byte schema id that schema
// registry serializers put in front of the Avro body.
const wireHeaderSize = 5

// AvroConverter decodes Avro binary values written with one fixed record
// schema.
type AvroConverter struct {
	codec   *goavro.Codec
	schema  *models.Schema
	scales  map[string]int32
	framing bool
}

// NewAvroConverter compiles writerSchema, which must be an Avro record of
// primitive and logical fields. With framing set every value must carry
// the schema registry header, which is stripped before decoding.
func NewAvroConverter(writerSchema string, framing bool) (*AvroConverter, error) {
	codec, err := goavro.NewCodec(writerSchema)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid avro schema")
	}

	var def struct {
		Type   string `json:"type"`
		Name   string `json:"name"`
		Fields []struct {
			Name string `json:"name"`
			Type any    `json:"type"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(writerSchema), &def); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid avro schema")
	}
	if def.Type != "record" {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("avro schema must be a record, got %q", def.Type))
	}

	fields := make([]models.Field, 0, len(def.Fields))
	scales := make(map[string]int32)
	for _, f := range def.Fields {
		ft, optional, scale, err := avroType(f.Type)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("unsupported avro type for field %q", f.Name))
		}
		fields = append(fields, models.Field{Name: f.Name, Type: ft, Optional: optional})
		if ft == models.Decimal {
			scales[f.Name] = scale
		}
	}
	schema, err := models.NewSchema(def.Name, fields...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid avro schema")
	}

	return &AvroConverter{codec: codec, schema: schema, scales: scales, framing: framing}, nil
}

// Schema returns the struct schema values are decoded into.
func (c *AvroConverter) Schema() *models.Schema {
	return c.schema
}

// Convert implements Converter.
func (c *AvroConverter) Convert(topic string, data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if c.framing {
		if len(data) < wireHeaderSize || data[0] != 0 {
			return nil, errors.New(errors.ErrorTypeData, "value is missing the schema registry header").
				WithDetail("topic", topic)
		}
		data = data[wireHeaderSize:]
	}

	native, _, err := c.codec.NativeFromBinary(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid avro value").
			WithDetail("topic", topic)
	}
	record, ok := native.(map[string]any)
	if !ok {
		return nil, errors.New(errors.ErrorTypeData, fmt.Sprintf("avro value of type %T is not a record", native))
	}

	s := models.NewStruct(c.schema)
	for _, f := range c.schema.Fields {
		v, err := avroValue(f, c.scales[f.Name], record[f.Name])
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, fmt.Sprintf("invalid value for field %q", f.Name))
		}
		if v == nil {
			continue
		}
		if _, err := s.Put(f.Name, v); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "avro value does not match schema")
		}
	}
	return s, nil
}

var avroPrimitives = map[string]models.FieldType{
	"int":     models.Int32,
	"long":    models.Int64,
	"float":   models.Float32,
	"double":  models.Float64,
	"boolean": models.Boolean,
	"string":  models.String,
	"bytes":   models.Bytes,
}

// avroType maps an Avro field type to a field type. A union of null and
// one other type is an optional field.
func avroType(t any) (ft models.FieldType, optional bool, scale int32, err error) {
	switch v := t.(type) {
	case string:
		ft, ok := avroPrimitives[v]
		if !ok {
			return "", false, 0, fmt.Errorf("type %q", v)
		}
		return ft, false, 0, nil

	case []any:
		var branch any
		branches := 0
		for _, b := range v {
			if b == "null" {
				optional = true
				continue
			}
			branch = b
			branches++
		}
		if branches != 1 {
			return "", false, 0, fmt.Errorf("union of %d non-null types", branches)
		}
		ft, _, scale, err = avroType(branch)
		return ft, optional, scale, err

	case map[string]any:
		switch logical, _ := v["logicalType"].(string); logical {
		case "date":
			return models.Date, false, 0, nil
		case "time-millis", "time-micros":
			return models.Time, false, 0, nil
		case "timestamp-millis", "timestamp-micros":
			return models.Timestamp, false, 0, nil
		case "decimal":
			s, _ := v["scale"].(float64)
			return models.Decimal, false, int32(s), nil
		}
		if v["type"] == "enum" {
			return models.String, false, 0, nil
		}
		return avroType(v["type"])
	}
	return "", false, 0, fmt.Errorf("type %v", t)
}

func avroValue(f models.Field, scale int32, v any) (any, error) {
	// union values decode as a single-entry map keyed by the branch name
	if m, ok := v.(map[string]any); ok && len(m) == 1 {
		for _, inner := range m {
			v = inner
		}
	}
	if v == nil {
		return nil, nil
	}

	switch f.Type {
	case models.Time:
		d, ok := v.(time.Duration)
		if !ok {
			return nil, fmt.Errorf("expected time of day, got %T", v)
		}
		return epoch.Add(d), nil
	case models.Date, models.Timestamp:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("expected time, got %T", v)
		}
		return t.UTC(), nil
	case models.Decimal:
		r, ok := v.(*big.Rat)
		if !ok {
			return nil, fmt.Errorf("expected decimal, got %T", v)
		}
		return decimal.NewFromString(r.FloatString(int(scale)))
	}
	return v, nil
}

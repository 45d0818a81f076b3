package kafka

import (
	"encoding/base64"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hasnat/kafka-connect-jdbc/pkg/config"
	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/json"
	"github.com/hasnat/kafka-connect-jdbc/pkg/models"
)

// Converter turns a message value into a record value. Implementations
// are called from every claim goroutine and must be safe for concurrent
// use.
type Converter interface {
	Convert(topic string, data []byte) (any, error)
}

// NewConverter returns the converter named by cfg.Converter.
func NewConverter(cfg config.KafkaSourceConfig) (Converter, error) {
	switch cfg.Converter {
	case "", "json":
		return NewJSONConverter(), nil
	case "avro":
		return NewAvroConverter(cfg.AvroSchema, cfg.SchemaRegistryFraming)
	default:
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("unknown converter %q", cfg.Converter))
	}
}

// Logical type names used in Kafka Connect schemas
const (
	logicalDecimal   = "org.apache.kafka.connect.data.Decimal"
	logicalDate      = "org.apache.kafka.connect.data.Date"
	logicalTime      = "org.apache.kafka.connect.data.Time"
	logicalTimestamp = "org.apache.kafka.connect.data.Timestamp"
)

var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// JSONConverter decodes the Kafka Connect JSON envelope
// {"schema": {...}, "payload": {...}}. Messages without an envelope decode
// to their plain JSON value, which carries no schema.
type JSONConverter struct {
	// schemas caches parsed struct schemas by their JSON text
	schemas sync.Map
}

// NewJSONConverter creates a JSONConverter.
func NewJSONConverter() *JSONConverter {
	return &JSONConverter{}
}

// Convert implements Converter.
func (c *JSONConverter) Convert(topic string, data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var doc any
	if err := json.UnmarshalNumbers(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid JSON message").
			WithDetail("topic", topic)
	}

	env, ok := doc.(map[string]any)
	if !ok {
		return doc, nil
	}
	rawSchema, hasSchema := env["schema"]
	payload, hasPayload := env["payload"]
	if !hasSchema || !hasPayload || len(env) != 2 {
		return doc, nil
	}
	if rawSchema == nil || payload == nil {
		return payload, nil
	}

	node, ok := rawSchema.(map[string]any)
	if !ok {
		return nil, errors.New(errors.ErrorTypeData, "envelope schema is not an object")
	}
	if t, _ := node["type"].(string); t != "struct" {
		return payload, nil
	}

	schema, scales, err := c.structSchema(node)
	if err != nil {
		return nil, err
	}
	fields, ok := payload.(map[string]any)
	if !ok {
		return nil, errors.New(errors.ErrorTypeData, fmt.Sprintf("payload of type %T does not match struct schema", payload))
	}

	s := models.NewStruct(schema)
	for _, f := range schema.Fields {
		raw, present := fields[f.Name]
		if !present || raw == nil {
			continue
		}
		v, err := jsonValue(f, scales[f.Name], raw)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, fmt.Sprintf("invalid value for field %q", f.Name))
		}
		if _, err := s.Put(f.Name, v); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "payload does not match schema")
		}
	}
	return s, nil
}

func (c *JSONConverter) structSchema(node map[string]any) (*models.Schema, map[string]int32, error) {
	key, err := json.Marshal(node)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeData, "invalid envelope schema")
	}
	if cached, ok := c.schemas.Load(string(key)); ok {
		e := cached.(*cachedSchema)
		return e.schema, e.scales, nil
	}

	name, _ := node["name"].(string)
	rawFields, _ := node["fields"].([]any)
	fields := make([]models.Field, 0, len(rawFields))
	scales := make(map[string]int32)
	for _, rf := range rawFields {
		fn, ok := rf.(map[string]any)
		if !ok {
			return nil, nil, errors.New(errors.ErrorTypeData, "schema field is not an object")
		}
		f, scale, err := connectField(fn)
		if err != nil {
			return nil, nil, err
		}
		fields = append(fields, f)
		if f.Type == models.Decimal {
			scales[f.Name] = scale
		}
	}

	schema, err := models.NewSchema(name, fields...)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeData, "invalid envelope schema")
	}
	c.schemas.Store(string(key), &cachedSchema{schema: schema, scales: scales})
	return schema, scales, nil
}

type cachedSchema struct {
	schema *models.Schema
	scales map[string]int32
}

func connectField(node map[string]any) (models.Field, int32, error) {
	name, _ := node["field"].(string)
	optional, _ := node["optional"].(bool)
	f := models.Field{Name: name, Optional: optional}

	switch logical, _ := node["name"].(string); logical {
	case logicalDecimal:
		f.Type = models.Decimal
		scale, err := decimalScale(node)
		return f, scale, err
	case logicalDate:
		f.Type = models.Date
		return f, 0, nil
	case logicalTime:
		f.Type = models.Time
		return f, 0, nil
	case logicalTimestamp:
		f.Type = models.Timestamp
		return f, 0, nil
	}

	typeName, _ := node["type"].(string)
	ft, err := models.ParseFieldType(typeName)
	if err != nil {
		return f, 0, errors.Wrap(err, errors.ErrorTypeData, fmt.Sprintf("unsupported type for field %q", name))
	}
	f.Type = ft
	return f, 0, nil
}

func decimalScale(node map[string]any) (int32, error) {
	params, _ := node["parameters"].(map[string]any)
	raw, ok := params["scale"]
	if !ok {
		return 0, nil
	}
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	default:
		return 0, errors.New(errors.ErrorTypeData, fmt.Sprintf("invalid decimal scale %v", raw))
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		return 0, errors.New(errors.ErrorTypeData, fmt.Sprintf("invalid decimal scale %q", s))
	}
	return int32(d.IntPart()), nil
}

func jsonValue(f models.Field, scale int32, raw any) (any, error) {
	switch f.Type {
	case models.Int8:
		n, err := jsonInt(raw, math.MinInt8, math.MaxInt8)
		return int8(n), err
	case models.Int16:
		n, err := jsonInt(raw, math.MinInt16, math.MaxInt16)
		return int16(n), err
	case models.Int32:
		n, err := jsonInt(raw, math.MinInt32, math.MaxInt32)
		return int32(n), err
	case models.Int64:
		return jsonInt(raw, math.MinInt64, math.MaxInt64)
	case models.Float32:
		v, err := jsonFloat(raw)
		return float32(v), err
	case models.Float64:
		return jsonFloat(raw)
	case models.Boolean, models.String:
		return raw, nil
	case models.Bytes:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected base64 string, got %T", raw)
		}
		return base64.StdEncoding.DecodeString(s)
	case models.Decimal:
		return jsonDecimal(raw, scale)
	case models.Date:
		days, err := jsonInt(raw, math.MinInt32, math.MaxInt32)
		return epoch.AddDate(0, 0, int(days)), err
	case models.Time:
		ms, err := jsonInt(raw, 0, 24*60*60*1000)
		return epoch.Add(time.Duration(ms) * time.Millisecond), err
	case models.Timestamp:
		ms, err := jsonInt(raw, math.MinInt64, math.MaxInt64)
		return time.UnixMilli(ms).UTC(), err
	}
	return nil, fmt.Errorf("unsupported field type %s", f.Type)
}

func jsonInt(raw any, lo, hi int64) (int64, error) {
	n, ok := raw.(json.Number)
	if !ok {
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
	v, err := n.Int64()
	if err != nil {
		return 0, err
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%d out of range", v)
	}
	return v, nil
}

func jsonFloat(raw any) (float64, error) {
	n, ok := raw.(json.Number)
	if !ok {
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
	return n.Float64()
}

// jsonDecimal accepts the BASE64 encoding of the unscaled two's-complement
// value, or a plain number.
func jsonDecimal(raw any, scale int32) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromBigInt(unscaled(b), -scale), nil
	}
	return decimal.Decimal{}, fmt.Errorf("expected decimal, got %T", raw)
}

// unscaled decodes a big-endian two's-complement integer.
func unscaled(b []byte) *big.Int {
	n := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8)))
	}
	return n
}

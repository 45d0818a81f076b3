package binders

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/models"
)

type recordingParams map[int]any

func (p recordingParams) SetParam(index int, value any) error {
	p[index] = value
	return nil
}

func TestFor(t *testing.T) {
	at := time.Date(2024, 3, 9, 17, 45, 12, 500, time.FixedZone("CET", 3600))

	tests := []struct {
		name  string
		ft    models.FieldType
		value any
		want  any
	}{
		{name: "int8 widens", ft: models.Int8, value: int8(-3), want: int64(-3)},
		{name: "int16 widens", ft: models.Int16, value: int16(300), want: int64(300)},
		{name: "int32 widens", ft: models.Int32, value: int32(70000), want: int64(70000)},
		{name: "int64", ft: models.Int64, value: int64(1 << 40), want: int64(1 << 40)},
		{name: "float32 widens", ft: models.Float32, value: float32(1.5), want: float64(1.5)},
		{name: "float64", ft: models.Float64, value: 2.25, want: 2.25},
		{name: "boolean", ft: models.Boolean, value: true, want: true},
		{name: "string", ft: models.String, value: "x", want: "x"},
		{name: "bytes", ft: models.Bytes, value: []byte{1, 2}, want: []byte{1, 2}},
		{name: "decimal", ft: models.Decimal, value: decimal.RequireFromString("12.340"), want: "12.34"},
		{name: "date drops clock", ft: models.Date, value: at, want: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
		{name: "time as text", ft: models.Time, value: at, want: "17:45:12.0000005"},
		{name: "timestamp in UTC", ft: models.Timestamp, value: at, want: at.UTC()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := For(tt.ft, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.Value())

			p := recordingParams{}
			require.NoError(t, b.Bind(p, 4))
			assert.Equal(t, tt.want, p[4])
		})
	}
}

func TestForMismatch(t *testing.T) {
	_, err := For(models.Int64, int32(1))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = For("uuid", "x")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

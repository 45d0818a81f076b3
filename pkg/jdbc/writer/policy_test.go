package writer

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasnat/kafka-connect-jdbc/pkg/config"
	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/models"
)

func TestPolicies(t *testing.T) {
	records := []*models.Record{abc(0, "a", 1)}
	cause := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeExecution, "exec failed")

	assert.NoError(t, NoopPolicy{}.Handle(context.Background(), records, cause, nil))

	err := ThrowPolicy{}.Handle(context.Background(), records, cause, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, cause)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExecution))
}

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		in      config.ErrorPolicy
		want    ErrorHandlingPolicy
		wantErr bool
	}{
		{in: config.ErrorPolicyNoop, want: NoopPolicy{}},
		{in: config.ErrorPolicyThrow, want: ThrowPolicy{}},
		{in: "RETRY", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			got, err := PolicyFor(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

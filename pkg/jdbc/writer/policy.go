package writer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hasnat/kafka-connect-jdbc/pkg/config"
	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/logger"
	"github.com/hasnat/kafka-connect-jdbc/pkg/models"
)

// ErrorHandlingPolicy decides what happens when writing a batch fails.
// Returning nil swallows the failure; returning an error halts the task.
type ErrorHandlingPolicy interface {
	Handle(ctx context.Context, records []*models.Record, err error, conn Preparer) error
}

// NoopPolicy swallows failures. The records of the failed batch are lost.
type NoopPolicy struct{}

// Handle logs the failure and returns nil.
func (NoopPolicy) Handle(ctx context.Context, records []*models.Record, err error, _ Preparer) error {
	logger.WithContext(ctx).Warn("dropping batch after write failure",
		zap.String("component", "error_policy"),
		zap.Int("records", len(records)),
		zap.Error(err))
	return nil
}

// ThrowPolicy propagates failures.
type ThrowPolicy struct{}

// Handle returns err wrapped as an execution error.
func (ThrowPolicy) Handle(_ context.Context, records []*models.Record, err error, _ Preparer) error {
	return errors.Wrap(err, errors.ErrorTypeExecution, fmt.Sprintf("failed to write %d records", len(records)))
}

var policies = map[config.ErrorPolicy]ErrorHandlingPolicy{
	config.ErrorPolicyNoop:  NoopPolicy{},
	config.ErrorPolicyThrow: ThrowPolicy{},
}

// PolicyFor returns the policy for p. An unknown value is a configuration
// error.
func PolicyFor(p config.ErrorPolicy) (ErrorHandlingPolicy, error) {
	policy, ok := policies[p]
	if !ok {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("%s error handling policy is not recognized", p))
	}
	return policy, nil
}

package config

import (
	"fmt"
	"strings"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
)

// ErrorPolicy selects what happens when writing a batch fails.
type ErrorPolicy string

const (
	// ErrorPolicyNoop swallows the failure and drops the batch
	ErrorPolicyNoop ErrorPolicy = "NOOP"
	// ErrorPolicyThrow propagates the failure and halts the task
	ErrorPolicyThrow ErrorPolicy = "THROW"
)

var errorPolicyNames = map[string]ErrorPolicy{
	"NOOP":      ErrorPolicyNoop,
	"SWALLOW":   ErrorPolicyNoop,
	"THROW":     ErrorPolicyThrow,
	"PROPAGATE": ErrorPolicyThrow,
}

// ParseErrorPolicy resolves a policy name case-insensitively. An empty name
// selects THROW.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ErrorPolicyThrow, nil
	}
	p, ok := errorPolicyNames[s]
	if !ok {
		return "", errors.New(errors.ErrorTypeConfig, fmt.Sprintf("unknown error policy %q", s)).
			WithDetail("allowed", "NOOP, THROW")
	}
	return p, nil
}

package errors_test

import (
	"fmt"
	"io"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
)

// Example demonstrates basic error creation.
func Example() {
	err := errors.New(errors.ErrorTypeConfig, "unknown error policy").
		WithDetail("value", "RETRY")

	fmt.Println(err.Error())

	// Output:
	// config: unknown error policy
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeExecution, "failed to execute batch").
		WithDetail("table", "orders")

	if errors.IsType(err, errors.ErrorTypeExecution) {
		fmt.Println("This is an execution error")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Cause was unexpected EOF")
	}

	// Output:
	// This is an execution error
	// Cause was unexpected EOF
}

// Example_errorChain shows how wrapped messages compose.
func Example_errorChain() {
	err := errors.New(errors.ErrorTypeConnection, "connection refused")
	err = errors.Wrap(err, errors.ErrorTypeExecution, "failed to prepare insert")

	fmt.Println(err)
	fmt.Println(errors.TypeOf(err))

	// Output:
	// execution: failed to prepare insert: connection: connection refused
	// execution
}

// ExampleTypeOf demonstrates classifying foreign errors.
func ExampleTypeOf() {
	fmt.Println(errors.TypeOf(io.EOF))
	fmt.Println(errors.TypeOf(errors.New(errors.ErrorTypeDriver, "symbol not found")))

	// Output:
	// internal
	// driver
}

// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for Telos.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies Telos errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeConfig indicates a wiring bug: duplicate function names, a step
	// before init, an unknown worker id, or a planner-named function that
	// was never registered. Never retried.
	CodeConfig ErrorCode = "CONFIG_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeFunctionFailure indicates a function execution failed.
	CodeFunctionFailure ErrorCode = "FUNCTION_FAILURE"

	// CodePlanner indicates a planner transport failure (network error,
	// non-2xx status, malformed response body).
	CodePlanner ErrorCode = "PLANNER_ERROR"

	// CodeProtocol indicates the planner violated the conversation
	// contract, e.g. a function call against a session with no bound
	// action space, or a function report response without a message.
	CodeProtocol ErrorCode = "PROTOCOL_VIOLATION"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"
)

// TelosError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type TelosError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
	StatusCode  int
}

// Error implements the error interface.
func (e *TelosError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *TelosError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *TelosError) MarshalJSON() ([]byte, error) {
	type Alias TelosError
	return json.Marshal(&struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		Err         string `json:"error,omitempty"`
		Recoverable bool   `json:"recoverable"`
		*Alias
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         fmt.Sprintf("%v", e.Err),
		Recoverable: e.Recoverable,
		Alias:       (*Alias)(e),
	})
}

// New creates a new TelosError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *TelosError {
	return &TelosError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
		StatusCode: codeToStatusCode(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *TelosError) WithContext(key string, value interface{}) *TelosError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *TelosError) WithAttribute(key, value string) *TelosError {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *TelosError) WithRecoverable(recoverable bool) *TelosError {
	e.Recoverable = recoverable
	return e
}

// AsTelosError attempts to convert an error to a TelosError.
// Returns the error as TelosError if it is one, or wraps it otherwise.
func AsTelosError(err error) *TelosError {
	if err == nil {
		return nil
	}
	if te, ok := err.(*TelosError); ok {
		return te
	}
	return New(CodeInternal, "wrapped error", err)
}

// IsCode reports whether err is a TelosError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	te, ok := err.(*TelosError)
	return ok && te.Code == code
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *TelosError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// codeToStatusCode maps error codes to HTTP status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return 404
	case CodeInvalidInput:
		return 400
	case CodeTimeout:
		return 408
	case CodePlanner:
		return 502
	default:
		return 500
	}
}

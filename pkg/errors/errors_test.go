// SPDX-License-Identifier: Apache-2.0
package errors

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("connection refused")
	te := New(CodePlanner, "planner call failed", cause)

	if te.Code != CodePlanner {
		t.Errorf("expected CodePlanner, got %v", te.Code)
	}
	if te.Message != "planner call failed" {
		t.Errorf("expected message 'planner call failed', got %q", te.Message)
	}
	if te.Err != cause {
		t.Errorf("expected cause to be preserved")
	}
	if !errors.Is(te, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
}

func TestWithContext(t *testing.T) {
	te := New(CodeFunctionFailure, "function failed", nil)
	te.WithContext("function", "search").
		WithContext("args", map[string]interface{}{"query": "weather"})

	if te.Context["function"] != "search" {
		t.Errorf("expected context function to be 'search'")
	}
	if te.Context["args"] == nil {
		t.Errorf("expected context args to be set")
	}
}

func TestWithRecoverable(t *testing.T) {
	te := New(CodeFunctionFailure, "network error", nil)
	if te.Recoverable {
		t.Errorf("expected recoverable to be false by default")
	}

	te.WithRecoverable(true)
	if !te.Recoverable {
		t.Errorf("expected recoverable to be true after WithRecoverable")
	}
}

func TestErrorString(t *testing.T) {
	te := New(CodeConfig, "unknown worker id", nil)
	if got := te.Error(); got != "[CONFIG_ERROR] unknown worker id" {
		t.Errorf("unexpected error string %q", got)
	}

	wrapped := New(CodeTimeout, "planner call", errors.New("deadline exceeded"))
	if got := wrapped.Error(); got != "[TIMEOUT] planner call: deadline exceeded" {
		t.Errorf("unexpected error string %q", got)
	}
}

func TestIsCode(t *testing.T) {
	te := New(CodeProtocol, "missing message in function report", nil)
	if !IsCode(te, CodeProtocol) {
		t.Errorf("expected IsCode to match CodeProtocol")
	}
	if IsCode(te, CodeConfig) {
		t.Errorf("expected IsCode not to match CodeConfig")
	}
	if IsCode(errors.New("plain"), CodeProtocol) {
		t.Errorf("expected IsCode to reject plain errors")
	}
}

func TestAsTelosError(t *testing.T) {
	if AsTelosError(nil) != nil {
		t.Errorf("expected nil for nil error")
	}

	te := New(CodeNotFound, "chat not found", nil)
	if got := AsTelosError(te); got != te {
		t.Errorf("expected same instance back")
	}

	wrapped := AsTelosError(errors.New("boom"))
	if wrapped.Code != CodeInternal {
		t.Errorf("expected plain errors to wrap as CodeInternal, got %v", wrapped.Code)
	}
}

func TestMarshalJSON(t *testing.T) {
	te := New(CodePlanner, "planner call failed", errors.New("status 502")).
		WithRecoverable(true)

	data, err := json.Marshal(te)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["code"] != string(CodePlanner) {
		t.Errorf("expected code %q, got %v", CodePlanner, decoded["code"])
	}
	if decoded["recoverable"] != true {
		t.Errorf("expected recoverable true")
	}
}

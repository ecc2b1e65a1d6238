// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

// Package function defines the callable capabilities the planner can invoke
// and the terminal result of invoking one.
package function

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahermida/telos/pkg/resilience"
)

// Status is the terminal outcome of a single function invocation.
// There is no partial or streaming status: a call fully succeeds or
// fully fails.
type Status string

const (
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// Result carries the outcome of one invocation plus free-text feedback
// for the planner.
type Result struct {
	Status   Status `json:"status"`
	Feedback string `json:"feedback"`
}

// Done builds a successful result.
func Done(feedback string) Result {
	return Result{Status: StatusDone, Feedback: feedback}
}

// Failed builds a failed result.
func Failed(feedback string) Result {
	return Result{Status: StatusFailed, Feedback: feedback}
}

// String renders the compact wire form reported back to the planner,
// e.g. "done: 3" or "failed: query is required".
func (r Result) String() string {
	if r.Feedback == "" {
		return string(r.Status)
	}
	return fmt.Sprintf("%s: %s", r.Status, r.Feedback)
}

// Arg declares one parameter of a function. Arguments are positional by
// name; Optional defaults to false (required).
type Arg struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
}

// Definition is the wire-serializable description of a function sent to
// the planner on every request. The executable body never crosses the
// wire.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Args        []Arg  `json:"args"`
	Hint        string `json:"hint,omitempty"`
}

// Logger narrates execution progress. It is for observation only and
// must never be used for control flow.
type Logger func(msg string)

// Executable is the local procedure behind a descriptor. Implementations
// signal business failure through the returned Result; the Execute
// boundary converts panics and missing arguments to failures as well.
type Executable func(ctx context.Context, args map[string]any, log Logger) Result

// Descriptor is an immutable, named, typed specification of a callable
// capability. Construct once at startup; it never changes afterwards.
type Descriptor struct {
	name        string
	description string
	hint        string
	args        []Arg
	exec        Executable
	timeout     time.Duration
}

// Option configures a Descriptor during construction.
type Option func(*Descriptor) error

// New creates a Descriptor. An executable body is required.
func New(name, description string, opts ...Option) (*Descriptor, error) {
	if name == "" {
		return nil, errors.New("function name is required")
	}
	d := &Descriptor{name: name, description: description}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.exec == nil {
		return nil, fmt.Errorf("function %q requires an executable", name)
	}
	return d, nil
}

// WithArgs declares the function's parameters.
func WithArgs(args ...Arg) Option {
	return func(d *Descriptor) error {
		seen := make(map[string]bool, len(args))
		for _, arg := range args {
			if arg.Name == "" {
				return fmt.Errorf("function %q has an unnamed argument", d.name)
			}
			if seen[arg.Name] {
				return fmt.Errorf("function %q declares argument %q twice", d.name, arg.Name)
			}
			seen[arg.Name] = true
		}
		d.args = append([]Arg(nil), args...)
		return nil
	}
}

// WithHint attaches an optional usage hint for the planner.
func WithHint(hint string) Option {
	return func(d *Descriptor) error {
		d.hint = hint
		return nil
	}
}

// WithExecutable sets the local procedure.
func WithExecutable(exec Executable) Option {
	return func(d *Descriptor) error {
		d.exec = exec
		return nil
	}
}

// WithTimeout bounds a single invocation. On expiry Execute synthesizes
// a failed result instead of hanging the loop. Zero means unbounded.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Descriptor) error {
		if timeout < 0 {
			return fmt.Errorf("function %q has a negative timeout", d.name)
		}
		d.timeout = timeout
		return nil
	}
}

// Name returns the function name, unique within its worker.
func (d *Descriptor) Name() string { return d.name }

// Description returns the planner-facing description.
func (d *Descriptor) Description() string { return d.description }

// Args returns the declared parameters.
func (d *Descriptor) Args() []Arg {
	return append([]Arg(nil), d.args...)
}

// Definition returns the wire form of this descriptor. Serializing it any
// number of times yields the same structure.
func (d *Descriptor) Definition() Definition {
	return Definition{
		Name:        d.name,
		Description: d.description,
		Args:        append([]Arg(nil), d.args...),
		Hint:        d.hint,
	}
}

// Execute runs the function body. It always returns a Result and never
// lets a failure escape: missing required arguments, panics and timeouts
// all surface as StatusFailed with explanatory feedback. The surrounding
// loop relies on this — there is no supervisor above it.
func (d *Descriptor) Execute(ctx context.Context, args map[string]any, log Logger) Result {
	if log == nil {
		log = func(string) {}
	}
	if args == nil {
		args = map[string]any{}
	}

	for _, arg := range d.args {
		if arg.Optional {
			continue
		}
		if value, ok := args[arg.Name]; !ok || value == nil || value == "" {
			return Failed(fmt.Sprintf("%s is required", arg.Name))
		}
	}

	result, err := resilience.WithTimeoutResult(ctx, resilience.TimeoutConfig{Duration: d.timeout}, func() (Result, error) {
		return d.runGuarded(ctx, args, log), nil
	})
	if err != nil {
		return Failed(fmt.Sprintf("%s timed out after %s", d.name, d.timeout))
	}
	return result
}

// runGuarded invokes the executable with panic containment.
func (d *Descriptor) runGuarded(ctx context.Context, args map[string]any, log Logger) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Failed(fmt.Sprint(r))
		}
	}()
	return d.exec(ctx, args, log)
}

// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

// Package worker groups functions into named capability bundles. Each
// worker doubles as one planner "location" the agent can occupy.
package worker

import (
	"context"

	"github.com/ahermida/telos/pkg/errors"
	"github.com/ahermida/telos/pkg/function"
)

// EnvironmentFunc produces a JSON-serializable snapshot of the worker's
// surroundings. It is invoked once per loop iteration and never cached.
type EnvironmentFunc func(ctx context.Context) (map[string]any, error)

// Worker is a named, described bundle of function descriptors plus an
// optional environment supplier.
type Worker struct {
	id          string
	name        string
	description string
	functions   []*function.Descriptor
	index       map[string]*function.Descriptor
	environment EnvironmentFunc
}

// Option configures a Worker during construction.
type Option func(*Worker) error

// New creates a Worker. Duplicate function names are a configuration
// error and fail here, not at dispatch time.
func New(id string, opts ...Option) (*Worker, error) {
	if id == "" {
		return nil, errors.New(errors.CodeConfig, "worker id is required", nil)
	}
	w := &Worker{
		id:    id,
		index: make(map[string]*function.Descriptor),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// WithName sets the display name.
func WithName(name string) Option {
	return func(w *Worker) error {
		w.name = name
		return nil
	}
}

// WithDescription sets the planner-facing description.
func WithDescription(description string) Option {
	return func(w *Worker) error {
		w.description = description
		return nil
	}
}

// WithFunctions registers the worker's functions, preserving order.
func WithFunctions(functions ...*function.Descriptor) Option {
	return func(w *Worker) error {
		for _, fn := range functions {
			if fn == nil {
				return errors.New(errors.CodeConfig, "nil function descriptor", nil).
					WithContext("worker", w.id)
			}
			if _, exists := w.index[fn.Name()]; exists {
				return errors.New(errors.CodeConfig, "duplicate function name", nil).
					WithContext("worker", w.id).
					WithContext("function", fn.Name())
			}
			w.functions = append(w.functions, fn)
			w.index[fn.Name()] = fn
		}
		return nil
	}
}

// WithEnvironment attaches the environment snapshot supplier.
func WithEnvironment(fn EnvironmentFunc) Option {
	return func(w *Worker) error {
		w.environment = fn
		return nil
	}
}

// ID returns the stable identifier, which doubles as the planner location id.
func (w *Worker) ID() string { return w.id }

// Name returns the display name.
func (w *Worker) Name() string { return w.name }

// Description returns the planner-facing description.
func (w *Worker) Description() string { return w.description }

// Function resolves a descriptor by name.
func (w *Worker) Function(name string) (*function.Descriptor, bool) {
	fn, ok := w.index[name]
	return fn, ok
}

// Functions returns the registered descriptors in registration order.
func (w *Worker) Functions() []*function.Descriptor {
	return append([]*function.Descriptor(nil), w.functions...)
}

// Definitions returns the wire form of every registered function.
func (w *Worker) Definitions() []function.Definition {
	defs := make([]function.Definition, 0, len(w.functions))
	for _, fn := range w.functions {
		defs = append(defs, fn.Definition())
	}
	return defs
}

// Environment computes the current snapshot. A worker without a supplier
// reports an empty mapping.
func (w *Worker) Environment(ctx context.Context) (map[string]any, error) {
	if w.environment == nil {
		return map[string]any{}, nil
	}
	env, err := w.environment(ctx)
	if err != nil {
		return nil, err
	}
	if env == nil {
		env = map[string]any{}
	}
	return env, nil
}

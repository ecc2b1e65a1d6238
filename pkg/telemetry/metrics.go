// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EngineMetrics tracks dispatch activity for production monitoring.
type EngineMetrics struct {
	// actionCounter tracks dispatched planner actions by kind
	actionCounter metric.Int64Counter

	// functionDuration tracks function execution latency by name and status
	functionDuration metric.Float64Histogram

	// chatTurnCounter tracks conversation turns by outcome (message / function_call)
	chatTurnCounter metric.Int64Counter

	// errorCounter tracks engine errors by code and component
	errorCounter metric.Int64Counter
}

// NewEngineMetrics creates a dispatch metrics tracker with OTEL meters.
func NewEngineMetrics() (*EngineMetrics, error) {
	meter := otel.Meter("telos/engine")

	actionCounter, err := meter.Int64Counter(
		"telos.actions.total",
		metric.WithDescription("Dispatched planner actions by kind"),
	)
	if err != nil {
		return nil, err
	}

	functionDuration, err := meter.Float64Histogram(
		"telos.function.duration",
		metric.WithDescription("Function execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chatTurnCounter, err := meter.Int64Counter(
		"telos.chat.turns",
		metric.WithDescription("Conversation turns by outcome"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"telos.errors.total",
		metric.WithDescription("Engine errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		actionCounter:    actionCounter,
		functionDuration: functionDuration,
		chatTurnCounter:  chatTurnCounter,
		errorCounter:     errorCounter,
	}, nil
}

// RecordAction increments the action counter for the given action kind.
func (m *EngineMetrics) RecordAction(ctx context.Context, kind string) {
	if m == nil || m.actionCounter == nil {
		return
	}
	m.actionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action.kind", kind),
	))
}

// RecordFunction records one function execution with its duration and status.
func (m *EngineMetrics) RecordFunction(ctx context.Context, name, status string, elapsed time.Duration) {
	if m == nil || m.functionDuration == nil {
		return
	}
	m.functionDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("function.name", name),
		attribute.String("function.status", status),
	))
}

// RecordChatTurn increments the turn counter for the given outcome.
func (m *EngineMetrics) RecordChatTurn(ctx context.Context, outcome string) {
	if m == nil || m.chatTurnCounter == nil {
		return
	}
	m.chatTurnCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("turn.outcome", outcome),
	))
}

// RecordError increments the error counter for the given code and component.
func (m *EngineMetrics) RecordError(ctx context.Context, code, component string) {
	if m == nil || m.errorCounter == nil {
		return
	}
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", code),
		attribute.String("component", component),
	))
}

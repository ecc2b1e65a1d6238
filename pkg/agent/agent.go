// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the planner-driven dispatch loop: ask the
// planner for the next action, execute it against the current worker,
// and fold the result into the following request.
package agent

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahermida/telos/pkg/errors"
	"github.com/ahermida/telos/pkg/planner"
	"github.com/ahermida/telos/pkg/resilience"
	"github.com/ahermida/telos/pkg/telemetry"
	"github.com/ahermida/telos/pkg/worker"
)

// Outcome tells the caller what one step did, so run loops can decide
// whether to continue.
type Outcome string

const (
	// OutcomeExecuted means a function ran and its result is pending for
	// the next request.
	OutcomeExecuted Outcome = "executed"

	// OutcomeMoved means the current worker changed.
	OutcomeMoved Outcome = "moved"

	// OutcomeWait means the planner has nothing to do right now.
	OutcomeWait Outcome = "wait"

	// OutcomeUnknown means the planner issued an unrecognized action.
	// Terminates run loops like OutcomeWait, but is logged as an anomaly.
	OutcomeUnknown Outcome = "unknown"
)

// StateFunc supplies the agent-level state snapshot sent on each request.
type StateFunc func(ctx context.Context) (map[string]any, error)

// Agent owns the current worker and drives the step loop. Not safe for
// concurrent Step calls: the pending-result accumulator assumes strictly
// sequential iterations.
type Agent struct {
	name        string
	goal        string
	description string

	client  planner.Client
	workers map[string]*worker.Worker
	order   []string
	stateFn StateFunc

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *telemetry.EngineMetrics
	audit   AuditStore

	plannerTimeout time.Duration

	agentID     string
	mapID       string
	location    string
	pending     *planner.ActionResult
	initialized bool
}

// Option configures an Agent instance.
type Option func(*Agent) error

// New creates an Agent. A planner client and at least one worker are
// required; the first registered worker is the starting location unless
// WithStartLocation overrides it.
func New(name string, opts ...Option) (*Agent, error) {
	if name == "" {
		return nil, errors.New(errors.CodeConfig, "agent name is required", nil)
	}
	a := &Agent{
		name:    name,
		workers: make(map[string]*worker.Worker),
		logger:  slog.Default(),
		tracer:  otel.Tracer("telos/agent"),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.client == nil {
		return nil, errors.New(errors.CodeConfig, "planner client is required", nil)
	}
	if len(a.order) == 0 {
		return nil, errors.New(errors.CodeConfig, "at least one worker is required", nil)
	}
	if a.location == "" {
		a.location = a.order[0]
	}
	return a, nil
}

// WithGoal sets the agent goal announced at registration.
func WithGoal(goal string) Option {
	return func(a *Agent) error {
		a.goal = goal
		return nil
	}
}

// WithDescription sets the agent description announced at registration.
func WithDescription(description string) Option {
	return func(a *Agent) error {
		a.description = description
		return nil
	}
}

// WithClient sets the planner client.
func WithClient(client planner.Client) Option {
	return func(a *Agent) error {
		a.client = client
		return nil
	}
}

// WithWorkers registers the agent's workers. Worker ids must be unique.
func WithWorkers(workers ...*worker.Worker) Option {
	return func(a *Agent) error {
		for _, w := range workers {
			if w == nil {
				return errors.New(errors.CodeConfig, "nil worker", nil)
			}
			if _, exists := a.workers[w.ID()]; exists {
				return errors.New(errors.CodeConfig, "duplicate worker id", nil).
					WithContext("worker", w.ID())
			}
			a.workers[w.ID()] = w
			a.order = append(a.order, w.ID())
		}
		return nil
	}
}

// WithStartLocation sets the initial worker id.
func WithStartLocation(id string) Option {
	return func(a *Agent) error {
		a.location = id
		return nil
	}
}

// WithState attaches the agent-level state supplier.
func WithState(fn StateFunc) Option {
	return func(a *Agent) error {
		a.stateFn = fn
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) error {
		if logger != nil {
			a.logger = logger
		}
		return nil
	}
}

// WithPlannerTimeout bounds each planner round trip. Zero leaves the
// call unbounded, matching the original design's behavior.
func WithPlannerTimeout(timeout time.Duration) Option {
	return func(a *Agent) error {
		a.plannerTimeout = timeout
		return nil
	}
}

// WithMetrics attaches engine metrics.
func WithMetrics(metrics *telemetry.EngineMetrics) Option {
	return func(a *Agent) error {
		a.metrics = metrics
		return nil
	}
}

// WithAudit attaches an audit trail for dispatched actions.
func WithAudit(store AuditStore) Option {
	return func(a *Agent) error {
		a.audit = store
		return nil
	}
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// ID returns the planner-assigned agent id, empty before Init.
func (a *Agent) ID() string { return a.agentID }

// Location returns the current worker id.
func (a *Agent) Location() string { return a.location }

// Init registers the map and the agent identity with the planner.
// It must run exactly once before the first Step.
func (a *Agent) Init(ctx context.Context) error {
	if a.initialized {
		return errors.New(errors.CodeConfig, "agent already initialized", nil)
	}

	ctx, span := a.tracer.Start(ctx, "Agent.Init")
	defer span.End()

	locations := make([]planner.MapLocation, 0, len(a.order))
	for _, id := range a.order {
		w := a.workers[id]
		locations = append(locations, planner.MapLocation{
			ID:          w.ID(),
			Name:        w.Name(),
			Description: w.Description(),
		})
	}

	mapID, err := a.client.CreateMap(ctx, locations)
	if err != nil {
		return err
	}
	agentID, err := a.client.CreateAgent(ctx, a.name, a.goal, a.description)
	if err != nil {
		return err
	}

	a.mapID = mapID
	a.agentID = agentID
	a.initialized = true
	a.logger.InfoContext(ctx, "agent registered",
		"agent_id", agentID, "map_id", mapID, "location", a.location)
	return nil
}

// Step performs one loop iteration: resolve the current worker, request
// the next action with the previous result folded in, and dispatch it.
// The pending result is consumed exactly once, even when the planner
// call fails.
func (a *Agent) Step(ctx context.Context) (Outcome, error) {
	if !a.initialized {
		return "", errors.New(errors.CodeConfig, "step called before init", nil)
	}

	ctx, span := a.tracer.Start(ctx, "Agent.Step",
		trace.WithAttributes(attribute.String("agent.location", a.location)),
	)
	defer span.End()

	w, ok := a.workers[a.location]
	if !ok {
		return "", errors.New(errors.CodeConfig, "unknown worker id", nil).
			WithContext("location", a.location)
	}

	environment, err := w.Environment(ctx)
	if err != nil {
		return "", err
	}
	state := map[string]any{}
	if a.stateFn != nil {
		state, err = a.stateFn(ctx)
		if err != nil {
			return "", err
		}
	}

	req := planner.ActionRequest{
		AgentID:       a.agentID,
		MapID:         a.mapID,
		Location:      a.location,
		Environment:   environment,
		Functions:     w.Definitions(),
		AgentState:    state,
		Version:       planner.Version,
		CurrentAction: a.pending,
	}
	a.pending = nil

	action, err := resilience.WithTimeoutResult(ctx,
		resilience.TimeoutConfig{Duration: a.plannerTimeout},
		func() (*planner.Action, error) {
			return a.client.GetAction(ctx, req)
		})
	if err != nil {
		a.metrics.RecordError(ctx, string(errors.AsTelosError(err).Code), "agent")
		return "", err
	}

	a.metrics.RecordAction(ctx, string(action.Kind))
	span.SetAttributes(attribute.String("action.kind", string(action.Kind)))

	switch action.Kind {
	case planner.KindCallFunction, planner.KindContinueFunction:
		return a.dispatchFunction(ctx, w, action)
	case planner.KindGoTo:
		// No existence check here: resolution happens at the next Step.
		a.logger.InfoContext(ctx, "moving", "from", a.location, "to", action.Location)
		a.location = action.Location
		return OutcomeMoved, nil
	case planner.KindWait:
		a.logger.DebugContext(ctx, "planner issued wait")
		return OutcomeWait, nil
	default:
		a.logger.WarnContext(ctx, "unrecognized planner action", "action_type", action.Raw)
		return OutcomeUnknown, nil
	}
}

// dispatchFunction executes a planner-named function in the given worker
// and stores the serialized result for the next request.
func (a *Agent) dispatchFunction(ctx context.Context, w *worker.Worker, action *planner.Action) (Outcome, error) {
	fn, ok := w.Function(action.FunctionName)
	if !ok {
		return "", errors.New(errors.CodeConfig, "planner named an unregistered function", nil).
			WithContext("function", action.FunctionName).
			WithContext("location", w.ID())
	}

	started := time.Now()
	result := fn.Execute(ctx, action.FunctionArgs, func(msg string) {
		a.logger.InfoContext(ctx, msg, "function", fn.Name())
	})
	finished := time.Now()

	a.metrics.RecordFunction(ctx, fn.Name(), string(result.Status), finished.Sub(started))
	a.pending = &planner.ActionResult{
		ActionID: action.ID,
		Result:   result.String(),
	}

	if a.audit != nil {
		event := AuditEvent{
			AgentID:    a.agentID,
			ActionID:   action.ID,
			Kind:       string(action.Kind),
			Function:   fn.Name(),
			Location:   w.ID(),
			Result:     result.String(),
			StartedAt:  started,
			FinishedAt: finished,
		}
		if err := a.audit.Record(ctx, event); err != nil {
			a.logger.WarnContext(ctx, "audit record failed", "error", err)
		}
	}

	a.logger.InfoContext(ctx, "function executed",
		"function", fn.Name(), "status", string(result.Status))
	return OutcomeExecuted, nil
}

// Run polls the planner until it signals Wait or Unknown, sleeping
// heartbeat between iterations. Errors from Step propagate unchanged;
// there is no partial-success reporting mid-loop.
func (a *Agent) Run(ctx context.Context, heartbeat time.Duration) error {
	for {
		outcome, err := a.Step(ctx)
		if err != nil {
			return err
		}
		if outcome == OutcomeWait || outcome == OutcomeUnknown {
			return nil
		}
		if heartbeat > 0 {
			timer := time.NewTimer(heartbeat)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

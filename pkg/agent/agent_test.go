// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/ahermida/telos/pkg/errors"
	"github.com/ahermida/telos/pkg/function"
	"github.com/ahermida/telos/pkg/planner"
	"github.com/ahermida/telos/pkg/worker"
)

func addFunction(t *testing.T) *function.Descriptor {
	t.Helper()
	fn, err := function.New("add", "adds two numbers",
		function.WithArgs(
			function.Arg{Name: "a", Type: "number"},
			function.Arg{Name: "b", Type: "number"},
		),
		function.WithExecutable(func(_ context.Context, args map[string]any, _ function.Logger) function.Result {
			a, _ := args["a"].(float64)
			b, _ := args["b"].(float64)
			return function.Done(fmt.Sprintf("%g", a+b))
		}),
	)
	if err != nil {
		t.Fatalf("function creation failed: %v", err)
	}
	return fn
}

func mustWorker(t *testing.T, id string, fns ...*function.Descriptor) *worker.Worker {
	t.Helper()
	w, err := worker.New(id, worker.WithName(id), worker.WithFunctions(fns...))
	if err != nil {
		t.Fatalf("worker creation failed: %v", err)
	}
	return w
}

func newTestAgent(t *testing.T, client planner.Client, workers ...*worker.Worker) *Agent {
	t.Helper()
	a, err := New("sage",
		WithGoal("be useful"),
		WithDescription("a test agent"),
		WithClient(client),
		WithWorkers(workers...),
	)
	if err != nil {
		t.Fatalf("agent creation failed: %v", err)
	}
	return a
}

func callAction(id, name string, args map[string]any) *planner.Action {
	return &planner.Action{
		Kind:         planner.KindCallFunction,
		ID:           id,
		FunctionName: name,
		FunctionArgs: args,
	}
}

func TestStepBeforeInitFailsFast(t *testing.T) {
	a := newTestAgent(t, planner.NewScripted(), mustWorker(t, "desk", addFunction(t)))

	_, err := a.Step(context.Background())
	if !errors.IsCode(err, errors.CodeConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestDoubleInitFailsFast(t *testing.T) {
	a := newTestAgent(t, planner.NewScripted(), mustWorker(t, "desk", addFunction(t)))
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := a.Init(context.Background()); !errors.IsCode(err, errors.CodeConfig) {
		t.Fatalf("expected config error on second init, got %v", err)
	}
}

func TestResultFoldsIntoNextRequestExactlyOnce(t *testing.T) {
	client := planner.NewScripted().
		QueueAction(callAction("a1", "add", map[string]any{"a": float64(1), "b": float64(2)})).
		QueueAction(&planner.Action{Kind: planner.KindWait}).
		QueueAction(&planner.Action{Kind: planner.KindWait})

	a := newTestAgent(t, client, mustWorker(t, "desk", addFunction(t)))
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	outcome, err := a.Step(context.Background())
	if err != nil {
		t.Fatalf("step 1 failed: %v", err)
	}
	if outcome != OutcomeExecuted {
		t.Fatalf("expected executed, got %v", outcome)
	}

	for i := 0; i < 2; i++ {
		if _, err := a.Step(context.Background()); err != nil {
			t.Fatalf("step %d failed: %v", i+2, err)
		}
	}

	reqs := client.ActionRequests
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(reqs))
	}
	if reqs[0].CurrentAction != nil {
		t.Fatal("first request must not carry a result")
	}
	if reqs[1].CurrentAction == nil {
		t.Fatal("second request must carry the result of action a1")
	}
	if reqs[1].CurrentAction.ActionID != "a1" {
		t.Fatalf("result keyed by wrong action id %q", reqs[1].CurrentAction.ActionID)
	}
	if reqs[1].CurrentAction.Result != "done: 3" {
		t.Fatalf("unexpected serialized result %q", reqs[1].CurrentAction.Result)
	}
	if reqs[2].CurrentAction != nil {
		t.Fatal("result must be consumed exactly once, found it on a later request")
	}
}

func TestResultConsumedEvenWhenPlannerFails(t *testing.T) {
	client := planner.NewScripted().
		QueueAction(callAction("a1", "add", map[string]any{"a": float64(1), "b": float64(2)})).
		QueueActionError(fmt.Errorf("backend down")).
		QueueAction(&planner.Action{Kind: planner.KindWait})

	a := newTestAgent(t, client, mustWorker(t, "desk", addFunction(t)))
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	if _, err := a.Step(context.Background()); err != nil {
		t.Fatalf("step 1 failed: %v", err)
	}
	if _, err := a.Step(context.Background()); err == nil {
		t.Fatal("expected planner error to propagate")
	}
	if _, err := a.Step(context.Background()); err != nil {
		t.Fatalf("step 3 failed: %v", err)
	}

	reqs := client.ActionRequests
	if reqs[1].CurrentAction == nil {
		t.Fatal("failed request should still have carried the pending result")
	}
	if reqs[2].CurrentAction != nil {
		t.Fatal("pending result must not be reissued after a failed call")
	}
}

func TestUnknownWorkerIDFailsFast(t *testing.T) {
	a, err := New("sage",
		WithClient(planner.NewScripted()),
		WithWorkers(mustWorker(t, "desk", addFunction(t))),
		WithStartLocation("nowhere"),
	)
	if err != nil {
		t.Fatalf("agent creation failed: %v", err)
	}
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	_, err = a.Step(context.Background())
	if !errors.IsCode(err, errors.CodeConfig) {
		t.Fatalf("expected config error for unknown worker, got %v", err)
	}
}

func TestUnregisteredFunctionFailsFast(t *testing.T) {
	client := planner.NewScripted().
		QueueAction(callAction("a1", "paint", nil))

	a := newTestAgent(t, client, mustWorker(t, "desk", addFunction(t)))
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	_, err := a.Step(context.Background())
	if !errors.IsCode(err, errors.CodeConfig) {
		t.Fatalf("expected config error for unregistered function, got %v", err)
	}
	if a.pending != nil {
		t.Fatal("no result may be stored for a failed lookup")
	}
}

func TestRunStopsOnWait(t *testing.T) {
	client := planner.NewScripted().
		QueueAction(callAction("a1", "add", map[string]any{"a": float64(1), "b": float64(2)})).
		QueueAction(&planner.Action{Kind: planner.KindWait})

	a := newTestAgent(t, client, mustWorker(t, "desk", addFunction(t)))
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	if err := a.Run(context.Background(), 0); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := len(client.ActionRequests); got != 2 {
		t.Fatalf("expected exactly 2 steps, got %d", got)
	}
}

func TestRunStopsOnUnknown(t *testing.T) {
	client := planner.NewScripted().
		QueueAction(&planner.Action{Kind: planner.KindUnknown, Raw: "dance"})

	a := newTestAgent(t, client, mustWorker(t, "desk", addFunction(t)))
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	if err := a.Run(context.Background(), 0); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := len(client.ActionRequests); got != 1 {
		t.Fatalf("expected exactly 1 step, got %d", got)
	}
}

func TestGoToSwitchesResolutionWorker(t *testing.T) {
	deskOnly, err := function.New("stamp", "stamps documents",
		function.WithExecutable(func(_ context.Context, _ map[string]any, _ function.Logger) function.Result {
			return function.Done("stamped")
		}),
	)
	if err != nil {
		t.Fatalf("function creation failed: %v", err)
	}

	client := planner.NewScripted().
		QueueAction(&planner.Action{Kind: planner.KindGoTo, Location: "archive"}).
		QueueAction(callAction("a2", "stamp", nil))

	a := newTestAgent(t, client,
		mustWorker(t, "desk", addFunction(t)),
		mustWorker(t, "archive", deskOnly),
	)
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	outcome, err := a.Step(context.Background())
	if err != nil {
		t.Fatalf("step 1 failed: %v", err)
	}
	if outcome != OutcomeMoved {
		t.Fatalf("expected moved, got %v", outcome)
	}
	if a.Location() != "archive" {
		t.Fatalf("expected location archive, got %q", a.Location())
	}

	outcome, err = a.Step(context.Background())
	if err != nil {
		t.Fatalf("step 2 failed: %v", err)
	}
	if outcome != OutcomeExecuted {
		t.Fatalf("expected executed against archive worker, got %v", outcome)
	}

	second := client.ActionRequests[1]
	if second.Location != "archive" {
		t.Fatalf("expected second request from archive, got %q", second.Location)
	}
	if len(second.Functions) != 1 || second.Functions[0].Name != "stamp" {
		t.Fatalf("expected archive's functions on the wire, got %+v", second.Functions)
	}
}

func TestFailedFunctionResultStillFoldsBack(t *testing.T) {
	search, err := function.New("query", "runs a query",
		function.WithArgs(function.Arg{Name: "query", Type: "string"}),
		function.WithExecutable(func(_ context.Context, args map[string]any, _ function.Logger) function.Result {
			return function.Done(args["query"].(string))
		}),
	)
	if err != nil {
		t.Fatalf("function creation failed: %v", err)
	}

	client := planner.NewScripted().
		QueueAction(callAction("a1", "query", map[string]any{})).
		QueueAction(&planner.Action{Kind: planner.KindWait})

	a := newTestAgent(t, client, mustWorker(t, "desk", search))
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	if _, err := a.Step(context.Background()); err != nil {
		t.Fatalf("step 1 failed: %v", err)
	}
	if _, err := a.Step(context.Background()); err != nil {
		t.Fatalf("step 2 failed: %v", err)
	}

	got := client.ActionRequests[1].CurrentAction
	if got == nil || got.Result != "failed: query is required" {
		t.Fatalf("expected failed result on the wire, got %+v", got)
	}
}

func TestAgentStateSupplierOnWire(t *testing.T) {
	client := planner.NewScripted().
		QueueAction(&planner.Action{Kind: planner.KindWait})

	a, err := New("sage",
		WithClient(client),
		WithWorkers(mustWorker(t, "desk", addFunction(t))),
		WithState(func(_ context.Context) (map[string]any, error) {
			return map[string]any{"energy": 80}, nil
		}),
	)
	if err != nil {
		t.Fatalf("agent creation failed: %v", err)
	}
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if _, err := a.Step(context.Background()); err != nil {
		t.Fatalf("step failed: %v", err)
	}

	if client.ActionRequests[0].AgentState["energy"] != 80 {
		t.Fatalf("expected agent state on the wire, got %v", client.ActionRequests[0].AgentState)
	}
}

func TestAuditTrailRecordsExecutions(t *testing.T) {
	audit := NewMemoryAuditStore()
	client := planner.NewScripted().
		QueueAction(callAction("a1", "add", map[string]any{"a": float64(1), "b": float64(2)}))

	a, err := New("sage",
		WithClient(client),
		WithWorkers(mustWorker(t, "desk", addFunction(t))),
		WithAudit(audit),
	)
	if err != nil {
		t.Fatalf("agent creation failed: %v", err)
	}
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if _, err := a.Step(context.Background()); err != nil {
		t.Fatalf("step failed: %v", err)
	}

	events, err := audit.List(context.Background(), AuditFilter{Function: "add"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one audit event, got %d", len(events))
	}
	if events[0].Result != "done: 3" || events[0].ActionID != "a1" {
		t.Fatalf("unexpected audit event %+v", events[0])
	}
}

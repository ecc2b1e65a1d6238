// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

// Package planner defines the contract with the remote planning service:
// the wire shapes the engine produces and consumes, the closed action
// taxonomy, and the Client interface the loops dispatch through.
package planner

import (
	"encoding/json"

	"github.com/ahermida/telos/pkg/function"
)

// Version is the protocol version stamped on every action request.
const Version = "v2"

// ActionKind is the closed set of instructions the planner can issue.
// Raw action_type strings are decoded once at this boundary; nothing
// downstream pattern-matches on strings.
type ActionKind string

const (
	// KindCallFunction invokes a named function in the current worker.
	KindCallFunction ActionKind = "call_function"

	// KindContinueFunction resumes a function the planner previously
	// invoked. Dispatch treats it exactly like KindCallFunction: the
	// contract carries no partial-progress checkpoint to resume from.
	KindContinueFunction ActionKind = "continue_function"

	// KindGoTo switches the agent's current worker.
	KindGoTo ActionKind = "go_to"

	// KindWait signals there is nothing to do right now.
	KindWait ActionKind = "wait"

	// KindUnknown marks an unrecognized action_type. Loop-terminating,
	// like KindWait, but logged as an anomaly.
	KindUnknown ActionKind = "unknown"
)

// Action is one decoded planner instruction. Exactly one variant is
// active; the payload fields beyond Kind are variant-specific.
type Action struct {
	Kind ActionKind

	// ID keys the eventual execution result on the next request.
	ID string

	// FunctionName and FunctionArgs accompany call_function and
	// continue_function.
	FunctionName string
	FunctionArgs map[string]any

	// Location accompanies go_to.
	Location string

	// AgentState is an optional planner-side state echo.
	AgentState map[string]any

	// Raw preserves the original action_type for anomaly logs.
	Raw string
}

// actionPayload is the incoming wire form of an action.
type actionPayload struct {
	ActionType string          `json:"action_type"`
	ActionID   string          `json:"action_id"`
	ActionArgs json.RawMessage `json:"action_args"`
	AgentState map[string]any  `json:"agent_state,omitempty"`
}

// callArgs is the action_args payload for function invocations.
type callArgs struct {
	ID   string         `json:"id"`
	Name string         `json:"fn_name"`
	Args map[string]any `json:"args"`
}

// goToArgs is the action_args payload for location switches.
type goToArgs struct {
	Location string `json:"location_id"`
}

// decodeAction maps a wire payload onto the closed action taxonomy.
// Unrecognized action types become KindUnknown rather than an error:
// the loop treats them as terminating, not fatal.
func decodeAction(payload actionPayload) (*Action, error) {
	action := &Action{
		ID:         payload.ActionID,
		AgentState: payload.AgentState,
		Raw:        payload.ActionType,
	}

	switch payload.ActionType {
	case string(KindCallFunction), string(KindContinueFunction):
		action.Kind = ActionKind(payload.ActionType)
		var args callArgs
		if len(payload.ActionArgs) > 0 {
			if err := json.Unmarshal(payload.ActionArgs, &args); err != nil {
				return nil, err
			}
		}
		action.FunctionName = args.Name
		action.FunctionArgs = args.Args
		if action.ID == "" {
			action.ID = args.ID
		}
	case string(KindGoTo):
		action.Kind = KindGoTo
		var args goToArgs
		if len(payload.ActionArgs) > 0 {
			if err := json.Unmarshal(payload.ActionArgs, &args); err != nil {
				return nil, err
			}
		}
		action.Location = args.Location
	case string(KindWait):
		action.Kind = KindWait
	default:
		action.Kind = KindUnknown
	}
	return action, nil
}

// ActionResult is the previous execution result folded into the next
// action request, keyed by the action that produced it.
type ActionResult struct {
	ActionID string `json:"action_id"`
	Result   string `json:"result"`
}

// ActionRequest is the per-step request body. AgentID routes the request
// and does not appear in the body.
type ActionRequest struct {
	AgentID       string                `json:"-"`
	MapID         string                `json:"map_id"`
	Location      string                `json:"location"`
	Environment   map[string]any        `json:"environment"`
	Functions     []function.Definition `json:"functions"`
	AgentState    map[string]any        `json:"agent_state"`
	Version       string                `json:"version"`
	CurrentAction *ActionResult         `json:"current_action,omitempty"`
}

// MapLocation describes one worker as a planner location.
type MapLocation struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ChatCreateRequest registers a new conversation session.
type ChatCreateRequest struct {
	Prompt      string `json:"prompt,omitempty"`
	PartnerID   string `json:"partner_id"`
	PartnerName string `json:"partner_name"`
}

// ChatUpdateRequest carries one user turn plus the session's action space.
type ChatUpdateRequest struct {
	Message   string                `json:"message"`
	State     map[string]any        `json:"state"`
	Functions []function.Definition `json:"functions"`
}

// FunctionCall is the planner electing to call a session function
// instead of replying with text.
type FunctionCall struct {
	ID   string         `json:"id"`
	Name string         `json:"fn_name"`
	Args map[string]any `json:"args"`
}

// Turn is one planner chat response. It carries either a message or a
// function call; whichever is present is authoritative.
type Turn struct {
	Message      string        `json:"message"`
	IsFinished   bool          `json:"is_finished"`
	FunctionCall *FunctionCall `json:"function_call"`
}

// FunctionReport feeds a locally executed function result back into the
// conversation.
type FunctionReport struct {
	FunctionID string `json:"fn_id"`
	Result     string `json:"result"`
}

// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ScriptedClient is a Client that replays a pre-defined sequence of
// actions and turns while capturing every request it receives. It is the
// test harness for the agent loop and conversation sessions.
type ScriptedClient struct {
	mu sync.Mutex

	// MapID and AgentID are handed out by CreateMap / CreateAgent.
	// Generated when left empty.
	MapID   string
	AgentID string

	actions []scriptedAction
	turns   []scriptedTurn
	reports []scriptedReport

	// Err, when set, is returned by every call. Simulates a transport
	// failure.
	Err error

	// Captured traffic, in call order.
	ActionRequests []ActionRequest
	UpdateRequests []ChatUpdateRequest
	ReportRequests []FunctionReport
	CreateChats    []ChatCreateRequest
	EndedChats     []string

	// Calls records method names in invocation order.
	Calls []string
}

type scriptedAction struct {
	action *Action
	err    error
}

type scriptedTurn struct {
	turn *Turn
	err  error
}

type scriptedReport struct {
	message string
	err     error
}

// NewScripted creates an empty scripted client.
func NewScripted() *ScriptedClient {
	return &ScriptedClient{}
}

// QueueAction appends an action to be returned by GetAction.
func (c *ScriptedClient) QueueAction(action *Action) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, scriptedAction{action: action})
	return c
}

// QueueActionError appends a GetAction failure.
func (c *ScriptedClient) QueueActionError(err error) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, scriptedAction{err: err})
	return c
}

// QueueTurn appends a turn to be returned by UpdateChat.
func (c *ScriptedClient) QueueTurn(turn *Turn) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, scriptedTurn{turn: turn})
	return c
}

// QueueTurnError appends an UpdateChat failure.
func (c *ScriptedClient) QueueTurnError(err error) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, scriptedTurn{err: err})
	return c
}

// QueueReportMessage appends a follow-up message returned by ReportFunction.
func (c *ScriptedClient) QueueReportMessage(message string) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, scriptedReport{message: message})
	return c
}

// QueueReportError appends a ReportFunction failure.
func (c *ScriptedClient) QueueReportError(err error) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, scriptedReport{err: err})
	return c
}

// CreateMap implements Client.
func (c *ScriptedClient) CreateMap(_ context.Context, _ []MapLocation) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, "CreateMap")
	if c.Err != nil {
		return "", c.Err
	}
	if c.MapID == "" {
		c.MapID = uuid.NewString()
	}
	return c.MapID, nil
}

// CreateAgent implements Client.
func (c *ScriptedClient) CreateAgent(_ context.Context, _, _, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, "CreateAgent")
	if c.Err != nil {
		return "", c.Err
	}
	if c.AgentID == "" {
		c.AgentID = uuid.NewString()
	}
	return c.AgentID, nil
}

// GetAction implements Client by popping the next scripted action.
func (c *ScriptedClient) GetAction(_ context.Context, req ActionRequest) (*Action, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, "GetAction")
	c.ActionRequests = append(c.ActionRequests, req)
	if c.Err != nil {
		return nil, c.Err
	}
	if len(c.actions) == 0 {
		return nil, errors.New("scripted client: no more actions")
	}
	next := c.actions[0]
	c.actions = c.actions[1:]
	return next.action, next.err
}

// CreateChat implements Client.
func (c *ScriptedClient) CreateChat(_ context.Context, req ChatCreateRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, "CreateChat")
	c.CreateChats = append(c.CreateChats, req)
	if c.Err != nil {
		return "", c.Err
	}
	return uuid.NewString(), nil
}

// UpdateChat implements Client by popping the next scripted turn.
func (c *ScriptedClient) UpdateChat(_ context.Context, _ string, req ChatUpdateRequest) (*Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, "UpdateChat")
	c.UpdateRequests = append(c.UpdateRequests, req)
	if c.Err != nil {
		return nil, c.Err
	}
	if len(c.turns) == 0 {
		return nil, errors.New("scripted client: no more turns")
	}
	next := c.turns[0]
	c.turns = c.turns[1:]
	return next.turn, next.err
}

// ReportFunction implements Client by popping the next scripted follow-up.
func (c *ScriptedClient) ReportFunction(_ context.Context, _ string, report FunctionReport) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, "ReportFunction")
	c.ReportRequests = append(c.ReportRequests, report)
	if c.Err != nil {
		return "", c.Err
	}
	if len(c.reports) == 0 {
		return "", errors.New("scripted client: no more report messages")
	}
	next := c.reports[0]
	c.reports = c.reports[1:]
	return next.message, next.err
}

// EndChat implements Client.
func (c *ScriptedClient) EndChat(_ context.Context, chatID, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, "EndChat")
	c.EndedChats = append(c.EndedChats, chatID)
	return c.Err
}

var _ Client = (*ScriptedClient)(nil)

// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import "context"

// Client is the abstraction over the remote planning service. Transport,
// authentication and token refresh are entirely the implementation's
// concern; callers only distinguish a parsed value from an error.
// Implementations must be safe for concurrent use: independent loops and
// sessions share one client.
type Client interface {
	// CreateMap registers all workers as locations once, before looping.
	CreateMap(ctx context.Context, locations []MapLocation) (string, error)

	// CreateAgent registers the agent identity once.
	CreateAgent(ctx context.Context, name, goal, description string) (string, error)

	// GetAction asks for the next instruction. The engine issues this at
	// most once per loop iteration; the previous result rides along in
	// req.CurrentAction exactly once.
	GetAction(ctx context.Context, req ActionRequest) (*Action, error)

	// CreateChat opens a conversation session and returns its id.
	CreateChat(ctx context.Context, req ChatCreateRequest) (string, error)

	// UpdateChat submits one user turn and returns the planner's reply.
	UpdateChat(ctx context.Context, chatID string, req ChatUpdateRequest) (*Turn, error)

	// ReportFunction feeds a function result back and returns the
	// planner's follow-up message. A reply without a message is a
	// protocol violation and must surface as an error.
	ReportFunction(ctx context.Context, chatID string, report FunctionReport) (string, error)

	// EndChat terminates a session, optionally with a closing message.
	EndChat(ctx context.Context, chatID, message string) error
}

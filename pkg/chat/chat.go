// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat runs the turn-based conversation protocol: alternate
// between relaying the planner's reply and, when it elects to call a
// function instead, executing it locally and reporting the outcome back
// before the conversation continues.
package chat

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahermida/telos/pkg/errors"
	"github.com/ahermida/telos/pkg/function"
	"github.com/ahermida/telos/pkg/planner"
	"github.com/ahermida/telos/pkg/telemetry"
)

// StateFunc supplies the session state snapshot sent on each turn.
type StateFunc func(ctx context.Context) (map[string]any, error)

// FunctionResult describes a function the planner called during a turn
// and the locally produced outcome.
type FunctionResult struct {
	Name   string
	Args   map[string]any
	Result function.Result
}

// Response is the caller-visible outcome of one turn. Exactly one path
// produced it: either the planner replied directly (FunctionCall nil)
// or it called a function and Message is the post-report follow-up.
type Response struct {
	Message      string
	FunctionCall *FunctionResult
	Finished     bool
}

// Session is one conversation with one partner. Not safe for concurrent
// Next calls; distinct sessions are independent of each other.
type Session struct {
	id      string
	client  planner.Client
	index   map[string]*function.Descriptor
	defs    []function.Definition
	stateFn StateFunc
	prompt  string

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *telemetry.EngineMetrics

	finished bool
}

// Option configures a Session.
type Option func(*Session) error

// WithFunctions binds the session's action space. Each session may
// expose a different capability set; duplicate names fail here.
func WithFunctions(functions ...*function.Descriptor) Option {
	return func(s *Session) error {
		for _, fn := range functions {
			if fn == nil {
				return errors.New(errors.CodeConfig, "nil function descriptor", nil)
			}
			if _, exists := s.index[fn.Name()]; exists {
				return errors.New(errors.CodeConfig, "duplicate function name", nil).
					WithContext("function", fn.Name())
			}
			s.index[fn.Name()] = fn
			s.defs = append(s.defs, fn.Definition())
		}
		return nil
	}
}

// WithState attaches the session state supplier.
func WithState(fn StateFunc) Option {
	return func(s *Session) error {
		s.stateFn = fn
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithMetrics attaches engine metrics.
func WithMetrics(metrics *telemetry.EngineMetrics) Option {
	return func(s *Session) error {
		s.metrics = metrics
		return nil
	}
}

// WithPrompt sets the prompt sent at session registration.
func WithPrompt(p string) Option {
	return func(s *Session) error {
		s.prompt = p
		return nil
	}
}

// Open registers a conversation session with the planner and binds its
// action space locally.
func Open(ctx context.Context, client planner.Client, partnerID, partnerName string, opts ...Option) (*Session, error) {
	if client == nil {
		return nil, errors.New(errors.CodeConfig, "planner client is required", nil)
	}
	s := &Session{
		client: client,
		index:  make(map[string]*function.Descriptor),
		logger: slog.Default(),
		tracer: otel.Tracer("telos/chat"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	chatID, err := client.CreateChat(ctx, planner.ChatCreateRequest{
		Prompt:      s.prompt,
		PartnerID:   partnerID,
		PartnerName: partnerName,
	})
	if err != nil {
		return nil, err
	}
	s.id = chatID
	s.logger.InfoContext(ctx, "chat session opened", "chat_id", chatID, "partner", partnerName)
	return s, nil
}

// ID returns the planner-assigned session id.
func (s *Session) ID() string { return s.id }

// Finished reports whether the session is terminal.
func (s *Session) Finished() bool { return s.finished }

// Next submits one user message and returns the planner's turn. When
// the planner calls a function, Next executes it and reports the result
// before returning, so the planner's turn history never desynchronizes:
// a function turn always makes exactly two remote calls, in order.
func (s *Session) Next(ctx context.Context, message string) (*Response, error) {
	if s.finished {
		return nil, errors.New(errors.CodeConfig, "next called on a finished session", nil).
			WithContext("chat_id", s.id)
	}

	ctx, span := s.tracer.Start(ctx, "Chat.Next",
		trace.WithAttributes(attribute.String("chat.id", s.id)),
	)
	defer span.End()

	state := map[string]any{}
	if s.stateFn != nil {
		var err error
		state, err = s.stateFn(ctx)
		if err != nil {
			return nil, err
		}
	}

	turn, err := s.client.UpdateChat(ctx, s.id, planner.ChatUpdateRequest{
		Message:   message,
		State:     state,
		Functions: s.defs,
	})
	if err != nil {
		return nil, err
	}

	if turn.IsFinished {
		s.finished = true
	}

	if turn.FunctionCall == nil {
		s.metrics.RecordChatTurn(ctx, "message")
		return &Response{Message: turn.Message, Finished: turn.IsFinished}, nil
	}
	return s.dispatchFunction(ctx, turn)
}

// dispatchFunction executes the planner-called function and reports the
// result, returning the follow-up message as the turn's reply.
func (s *Session) dispatchFunction(ctx context.Context, turn *planner.Turn) (*Response, error) {
	call := turn.FunctionCall
	fn, ok := s.index[call.Name]
	if !ok {
		// Report nothing: a planner calling into an unbound action space
		// is a contract violation, not a runtime condition.
		return nil, errors.New(errors.CodeProtocol, "planner called a function not bound to this session", nil).
			WithContext("chat_id", s.id).
			WithContext("function", call.Name)
	}

	started := time.Now()
	result := fn.Execute(ctx, call.Args, func(msg string) {
		s.logger.InfoContext(ctx, msg, "chat_id", s.id, "function", fn.Name())
	})
	s.metrics.RecordFunction(ctx, fn.Name(), string(result.Status), time.Since(started))

	followUp, err := s.client.ReportFunction(ctx, s.id, planner.FunctionReport{
		FunctionID: call.ID,
		Result:     result.String(),
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordChatTurn(ctx, "function_call")
	s.logger.InfoContext(ctx, "function turn completed",
		"chat_id", s.id, "function", fn.Name(), "status", string(result.Status))

	return &Response{
		Message: followUp,
		FunctionCall: &FunctionResult{
			Name:   fn.Name(),
			Args:   call.Args,
			Result: result,
		},
		Finished: turn.IsFinished,
	}, nil
}

// End terminates the session explicitly. Next must not be called again
// afterwards; the caller owns the lifecycle, there is no idle timeout.
func (s *Session) End(ctx context.Context, message string) error {
	if s.finished {
		return errors.New(errors.CodeConfig, "session already finished", nil).
			WithContext("chat_id", s.id)
	}
	if err := s.client.EndChat(ctx, s.id, message); err != nil {
		return err
	}
	s.finished = true
	s.logger.InfoContext(ctx, "chat session ended", "chat_id", s.id)
	return nil
}

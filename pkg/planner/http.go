// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ahermida/telos/pkg/errors"
)

// HTTPClient talks to the planning service over JSON/HTTP. It performs
// no retries: the engine's contract is one planner call per iteration,
// and retry policy belongs to the caller.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// HTTPOption configures the HTTP client.
type HTTPOption func(*HTTPClient)

// WithHTTPTimeout bounds each round trip at the transport level.
func WithHTTPTimeout(timeout time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithHTTPClient substitutes the underlying http.Client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if client != nil {
			c.client = client
		}
	}
}

// NewHTTP creates a planner client for the given service endpoint.
func NewHTTP(baseURL, apiKey string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateMap implements Client.
func (c *HTTPClient) CreateMap(ctx context.Context, locations []MapLocation) (string, error) {
	var out struct {
		MapID string `json:"map_id"`
	}
	in := map[string]any{"locations": locations}
	if err := c.post(ctx, "/v2/maps", in, &out); err != nil {
		return "", err
	}
	if out.MapID == "" {
		return "", errors.New(errors.CodeProtocol, "map registration returned no map_id", nil)
	}
	return out.MapID, nil
}

// CreateAgent implements Client.
func (c *HTTPClient) CreateAgent(ctx context.Context, name, goal, description string) (string, error) {
	var out struct {
		AgentID string `json:"agent_id"`
	}
	in := map[string]any{
		"name":        name,
		"goal":        goal,
		"description": description,
	}
	if err := c.post(ctx, "/v2/agents", in, &out); err != nil {
		return "", err
	}
	if out.AgentID == "" {
		return "", errors.New(errors.CodeProtocol, "agent registration returned no agent_id", nil)
	}
	return out.AgentID, nil
}

// GetAction implements Client.
func (c *HTTPClient) GetAction(ctx context.Context, req ActionRequest) (*Action, error) {
	if req.Version == "" {
		req.Version = Version
	}
	var payload actionPayload
	if err := c.post(ctx, "/v2/agents/"+req.AgentID+"/actions", req, &payload); err != nil {
		return nil, err
	}
	action, err := decodeAction(payload)
	if err != nil {
		return nil, errors.New(errors.CodePlanner, "malformed action payload", err)
	}
	return action, nil
}

// CreateChat implements Client.
func (c *HTTPClient) CreateChat(ctx context.Context, req ChatCreateRequest) (string, error) {
	var out struct {
		ChatID string `json:"chat_id"`
	}
	if err := c.post(ctx, "/v2/chats", req, &out); err != nil {
		return "", err
	}
	if out.ChatID == "" {
		return "", errors.New(errors.CodeProtocol, "chat registration returned no chat_id", nil)
	}
	return out.ChatID, nil
}

// UpdateChat implements Client.
func (c *HTTPClient) UpdateChat(ctx context.Context, chatID string, req ChatUpdateRequest) (*Turn, error) {
	var turn Turn
	if err := c.post(ctx, "/v2/chats/"+chatID+"/turns", req, &turn); err != nil {
		return nil, err
	}
	return &turn, nil
}

// ReportFunction implements Client. A response without a message would
// desynchronize the turn history, so it is rejected instead of being
// coerced to an empty string.
func (c *HTTPClient) ReportFunction(ctx context.Context, chatID string, report FunctionReport) (string, error) {
	var out struct {
		Message *string `json:"message"`
	}
	if err := c.post(ctx, "/v2/chats/"+chatID+"/report", report, &out); err != nil {
		return "", err
	}
	if out.Message == nil {
		return "", errors.New(errors.CodeProtocol, "function report returned no message", nil).
			WithContext("chat_id", chatID).
			WithContext("fn_id", report.FunctionID)
	}
	return *out.Message, nil
}

// EndChat implements Client.
func (c *HTTPClient) EndChat(ctx context.Context, chatID, message string) error {
	in := map[string]any{}
	if message != "" {
		in["message"] = message
	}
	return c.post(ctx, "/v2/chats/"+chatID+"/end", in, nil)
}

// post sends one JSON request and decodes the response into out.
func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.New(errors.CodePlanner, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.New(errors.CodePlanner, "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return errors.New(errors.CodePlanner, "planner call failed", err).
			WithContext("path", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.New(errors.CodePlanner,
			fmt.Sprintf("planner returned status %d", resp.StatusCode), nil).
			WithContext("path", path).
			WithContext("body", string(detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.New(errors.CodePlanner, "failed to decode planner response", err).
			WithContext("path", path)
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)

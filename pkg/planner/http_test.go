// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ahermida/telos/pkg/errors"
	"github.com/ahermida/telos/pkg/function"
)

func TestGetActionStampsVersionAndAuth(t *testing.T) {
	var captured map[string]any
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v2/agents/agent-1/actions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"action_type": "wait"})
	}))
	defer server.Close()

	client := NewHTTP(server.URL, "secret")
	action, err := client.GetAction(context.Background(), ActionRequest{
		AgentID:     "agent-1",
		MapID:       "map-1",
		Location:    "desk",
		Environment: map[string]any{},
		Functions:   []function.Definition{{Name: "search"}},
		AgentState:  map[string]any{},
	})
	if err != nil {
		t.Fatalf("GetAction failed: %v", err)
	}
	if action.Kind != KindWait {
		t.Fatalf("expected wait, got %v", action.Kind)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if captured["version"] != Version {
		t.Fatalf("expected version %q in request, got %v", Version, captured["version"])
	}
	if _, present := captured["current_action"]; present {
		t.Fatal("expected current_action to be omitted when nil")
	}
}

func TestGetActionCurrentActionOnWire(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{"action_type": "wait"})
	}))
	defer server.Close()

	client := NewHTTP(server.URL, "")
	_, err := client.GetAction(context.Background(), ActionRequest{
		AgentID:       "agent-1",
		CurrentAction: &ActionResult{ActionID: "a1", Result: "done: 3"},
	})
	if err != nil {
		t.Fatalf("GetAction failed: %v", err)
	}

	current, ok := captured["current_action"].(map[string]any)
	if !ok {
		t.Fatalf("expected current_action object, got %v", captured["current_action"])
	}
	if current["action_id"] != "a1" || current["result"] != "done: 3" {
		t.Fatalf("unexpected current_action %v", current)
	}
}

func TestPostNon2xxIsPlannerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTP(server.URL, "")
	_, err := client.CreateAgent(context.Background(), "sage", "help users", "an assistant")
	if !errors.IsCode(err, errors.CodePlanner) {
		t.Fatalf("expected planner error, got %v", err)
	}
}

func TestReportFunctionMissingMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer server.Close()

	client := NewHTTP(server.URL, "")
	_, err := client.ReportFunction(context.Background(), "chat-1", FunctionReport{
		FunctionID: "a1",
		Result:     "done: ok",
	})
	if !errors.IsCode(err, errors.CodeProtocol) {
		t.Fatalf("expected protocol violation, got %v", err)
	}
}

func TestCreateMapReturnsID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/maps" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"map_id": "map-9"})
	}))
	defer server.Close()

	client := NewHTTP(server.URL, "")
	mapID, err := client.CreateMap(context.Background(), []MapLocation{
		{ID: "desk", Name: "Front Desk"},
	})
	if err != nil {
		t.Fatalf("CreateMap failed: %v", err)
	}
	if mapID != "map-9" {
		t.Fatalf("expected map-9, got %q", mapID)
	}
}

func TestUpdateChatDecodesTurn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/chats/chat-1/turns" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"is_finished": false,
			"function_call": map[string]any{
				"id":      "a1",
				"fn_name": "generate_picture",
				"args":    map[string]any{"subject": "cat"},
			},
		})
	}))
	defer server.Close()

	client := NewHTTP(server.URL, "")
	turn, err := client.UpdateChat(context.Background(), "chat-1", ChatUpdateRequest{Message: "hi"})
	if err != nil {
		t.Fatalf("UpdateChat failed: %v", err)
	}
	if turn.FunctionCall == nil || turn.FunctionCall.Name != "generate_picture" {
		t.Fatalf("expected function call turn, got %+v", turn)
	}
}

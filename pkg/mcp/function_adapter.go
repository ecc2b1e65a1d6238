// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ahermida/telos/pkg/errors"
	"github.com/ahermida/telos/pkg/function"
)

// ToolCaller abstracts MCP tool execution for adapters.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// Function adapts an MCP tool into an executable function descriptor.
// Tool failures surface as failed results with the server's feedback, so
// the planner sees them the same way it sees any other function failure.
func Function(tool mcp.Tool, caller ToolCaller, opts ...function.Option) (*function.Descriptor, error) {
	if tool.Name == "" {
		return nil, errors.New(errors.CodeConfig, "mcp tool name is required", nil)
	}
	if caller == nil {
		return nil, errors.New(errors.CodeConfig, "tool caller is required", nil)
	}

	exec := func(ctx context.Context, args map[string]any, log function.Logger) function.Result {
		if log != nil {
			log(fmt.Sprintf("calling mcp tool %s", tool.Name))
		}
		result, err := caller.CallTool(ctx, tool.Name, args)
		if err != nil {
			return function.Failed(err.Error())
		}
		return resultToOutcome(result)
	}

	descOpts := []function.Option{
		function.WithArgs(schemaArgs(tool.InputSchema)...),
		function.WithExecutable(exec),
	}
	descOpts = append(descOpts, opts...)
	return function.New(tool.Name, tool.Description, descOpts...)
}

// Functions discovers every tool on the server and adapts each one.
func Functions(ctx context.Context, client *Client, opts ...function.Option) ([]*function.Descriptor, error) {
	tools, err := client.ListTools(ctx)
	if err != nil {
		return nil, errors.New(errors.CodePlanner, "mcp tool discovery failed", err)
	}
	descriptors := make([]*function.Descriptor, 0, len(tools))
	for _, tool := range tools {
		fn, err := Function(tool, client, opts...)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, fn)
	}
	return descriptors, nil
}

// schemaArgs flattens a JSON schema's top-level properties into declared
// arguments. Only object schemas carry argument metadata.
func schemaArgs(schema mcp.ToolInputSchema) []function.Arg {
	if schema.Type != "" && schema.Type != "object" {
		return nil
	}
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]function.Arg, 0, len(names))
	for _, name := range names {
		arg := function.Arg{Name: name, Optional: !required[name]}
		if prop, ok := schema.Properties[name].(map[string]any); ok {
			if t, ok := prop["type"].(string); ok {
				arg.Type = t
			}
			if d, ok := prop["description"].(string); ok {
				arg.Description = d
			}
		}
		args = append(args, arg)
	}
	return args
}

func resultToOutcome(result *mcp.CallToolResult) function.Result {
	if result == nil {
		return function.Failed("mcp tool returned no result")
	}
	if result.IsError {
		return function.Failed(extractTextContent(result.Content))
	}
	if result.StructuredContent != nil {
		encoded, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return function.Failed(fmt.Sprintf("mcp structured content: %v", err))
		}
		return function.Done(string(encoded))
	}
	return function.Done(extractTextContent(result.Content))
}

func extractTextContent(items []mcp.Content) string {
	if len(items) == 0 {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

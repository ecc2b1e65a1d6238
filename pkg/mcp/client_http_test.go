package mcp

import (
	"context"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ahermida/telos/pkg/function"
)

func TestClient_StreamableHTTP_ListTools(t *testing.T) {
	server := mcpserver.NewMCPServer("test-http", "1.0.0")
	server.AddTool(mcpgo.NewTool("ping"), func(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		return &mcpgo.CallToolResult{
			Content: []mcpgo.Content{mcpgo.TextContent{Type: "text", Text: "ok"}},
		}, nil
	})

	httpServer := mcpserver.NewTestStreamableHTTPServer(server)
	defer httpServer.Close()

	client, err := NewClientWithStreamableHTTPProtocol(httpServer.URL, mcpgo.LATEST_PROTOCOL_VERSION)
	if err != nil {
		t.Fatalf("NewClientWithStreamableHTTPProtocol error: %v", err)
	}
	defer client.Close()

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools error: %v", err)
	}
	if len(tools) == 0 || tools[0].Name != "ping" {
		t.Fatalf("Expected tool 'ping', got %+v", tools)
	}
}

func TestClient_StreamableHTTP_AdaptedFunctions(t *testing.T) {
	server := mcpserver.NewMCPServer("test-http", "1.0.0")
	server.AddTool(
		mcpgo.NewTool("greet", mcpgo.WithString("name", mcpgo.Required())),
		func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
			args, _ := req.Params.Arguments.(map[string]interface{})
			name, _ := args["name"].(string)
			return &mcpgo.CallToolResult{
				Content: []mcpgo.Content{mcpgo.TextContent{Type: "text", Text: "hello " + name}},
			}, nil
		},
	)

	httpServer := mcpserver.NewTestStreamableHTTPServer(server)
	defer httpServer.Close()

	client, err := NewClientWithStreamableHTTP(httpServer.URL)
	if err != nil {
		t.Fatalf("NewClientWithStreamableHTTP error: %v", err)
	}
	defer client.Close()

	fns, err := Functions(context.Background(), client)
	if err != nil {
		t.Fatalf("Functions error: %v", err)
	}
	if len(fns) != 1 || fns[0].Name() != "greet" {
		t.Fatalf("Expected adapted greet function, got %+v", fns)
	}

	result := fns[0].Execute(context.Background(), map[string]any{"name": "telos"}, nil)
	if result.Status != function.StatusDone || result.Feedback != "hello telos" {
		t.Fatalf("Expected greeting, got %+v", result)
	}
}

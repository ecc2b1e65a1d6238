package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ahermida/telos/pkg/function"
)

// Server exposes local function descriptors as MCP tools, so other
// agents can borrow a worker's capabilities over the protocol.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server.
func NewServer(name, version string) *Server {
	return &Server{
		mcpServer: server.NewMCPServer(name, version),
	}
}

// RegisterFunction publishes a function descriptor as an MCP tool.
func (s *Server) RegisterFunction(fn *function.Descriptor) {
	opts := []mcp.ToolOption{mcp.WithDescription(fn.Description())}
	for _, arg := range fn.Args() {
		propOpts := []mcp.PropertyOption{mcp.Description(arg.Description)}
		if !arg.Optional {
			propOpts = append(propOpts, mcp.Required())
		}
		switch arg.Type {
		case "number", "integer":
			opts = append(opts, mcp.WithNumber(arg.Name, propOpts...))
		case "boolean":
			opts = append(opts, mcp.WithBoolean(arg.Name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(arg.Name, propOpts...))
		}
	}
	tool := mcp.NewTool(fn.Name(), opts...)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})
		result := fn.Execute(ctx, args, nil)
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: result.Feedback}},
			IsError: result.Status == function.StatusFailed,
		}, nil
	})
}

// RegisterFunctions publishes several descriptors at once.
func (s *Server) RegisterFunctions(fns ...*function.Descriptor) {
	for _, fn := range fns {
		s.RegisterFunction(fn)
	}
}

// ServeStdio starts the server on Stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

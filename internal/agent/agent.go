// Package agent exposes the bridge to AI assistants over the Model
// Context Protocol. Each tool call becomes one bridge request; the
// terminal outcome is returned as a single JSON text block.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forge3d/blenderbridge/internal/client"
)

// SceneScript is the canned payload behind the scene inspection tool.
const SceneScript = "send_status(\"collecting scene inventory\")\nsend_status(scene_info())\n"

// ExecArgs are the arguments for the script execution tool.
type ExecArgs struct {
	Script string `json:"script" jsonschema:"the script to execute inside Blender"`
}

// SceneArgs are the arguments for the scene inspection tool. It takes none.
type SceneArgs struct{}

// ToolOutcome is the JSON body returned to the assistant for every call.
type ToolOutcome struct {
	Status   string   `json:"status"`
	Messages []string `json:"messages,omitempty"`
	Error    string   `json:"error,omitempty"`
	Trace    string   `json:"trace,omitempty"`
}

// NewServer builds an MCP server whose tools drive the given bridge client.
func NewServer(c *client.Client, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "blenderbridge",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "blender_exec",
		Description: "Execute a script inside the running Blender instance and return its result",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ExecArgs) (*mcp.CallToolResult, ToolOutcome, error) {
		return execute(ctx, c, args.Script)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_blender_scene",
		Description: "Inspect the current Blender scene and return an inventory of its objects",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args SceneArgs) (*mcp.CallToolResult, ToolOutcome, error) {
		return execute(ctx, c, SceneScript)
	})

	return server
}

// Run serves the tools over stdio until the context is cancelled.
func Run(ctx context.Context, c *client.Client, version string) error {
	return NewServer(c, version).Run(ctx, &mcp.StdioTransport{})
}

// execute sends one script through the bridge and shapes the outcome.
// Transport failures surface as MCP errors; in-band script failures come
// back as a normal result with status "error" so the assistant can read
// the traceback and try again.
func execute(ctx context.Context, c *client.Client, script string) (*mcp.CallToolResult, ToolOutcome, error) {
	res, err := c.Execute(ctx, script)
	if err != nil {
		return nil, ToolOutcome{}, fmt.Errorf("bridge request failed: %w", err)
	}

	outcome := ToolOutcome{
		Status:   res.Status,
		Messages: res.Messages,
		Error:    res.Error,
		Trace:    res.Trace,
	}

	body, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return nil, ToolOutcome{}, fmt.Errorf("failed to encode outcome: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
		IsError: res.Failed(),
	}, outcome, nil
}

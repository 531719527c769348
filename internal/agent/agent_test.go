// internal/agent/agent_test.go
package agent

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/forge3d/blenderbridge/internal/bridge"
	"github.com/forge3d/blenderbridge/internal/client"
	"github.com/forge3d/blenderbridge/internal/engine"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// stubBridge answers the first request with the given frames.
func stubBridge(t *testing.T, frames []*bridge.Response) *client.Client {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		if _, err := bridge.ReadRequest(conn, 1<<20); err != nil {
			return
		}
		for _, frame := range frames {
			if err := bridge.WriteResponse(conn, frame); err != nil {
				return
			}
		}
	}()

	return client.New(client.Config{
		Addr:    listener.Addr().String(),
		Timeout: 2 * time.Second,
	})
}

func TestExecuteSuccessOutcome(t *testing.T) {
	c := stubBridge(t, []*bridge.Response{
		bridge.NewRunningResponse(),
		bridge.NewProgressResponse("cube added"),
		bridge.NewOKResponse(),
	})

	result, outcome, err := execute(context.Background(), c, "add_cube()")
	if err != nil {
		t.Fatalf("execute() error = %v", err)
	}

	if result.IsError {
		t.Error("expected a non-error tool result")
	}
	if outcome.Status != bridge.StatusOK {
		t.Errorf("expected ok status, got %q", outcome.Status)
	}

	// The text block carries the same outcome as JSON.
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	var decoded ToolOutcome
	if err := json.Unmarshal([]byte(text.Text), &decoded); err != nil {
		t.Fatalf("tool output is not JSON: %v", err)
	}
	if decoded.Status != outcome.Status || len(decoded.Messages) != len(outcome.Messages) {
		t.Errorf("text block diverges from outcome: %+v vs %+v", decoded, outcome)
	}
}

func TestExecuteScriptFailureIsToolError(t *testing.T) {
	c := stubBridge(t, []*bridge.Response{
		bridge.NewRunningResponse(),
		bridge.NewErrorResponse("undefined name", "Traceback: line 2"),
	})

	result, outcome, err := execute(context.Background(), c, "nope()")
	if err != nil {
		t.Fatalf("an in-band failure must come back as a result, got %v", err)
	}

	if !result.IsError {
		t.Error("expected the tool result to be flagged as an error")
	}
	if outcome.Error != "undefined name" || outcome.Trace != "Traceback: line 2" {
		t.Errorf("expected failure details, got %+v", outcome)
	}
}

func TestExecuteUnreachableBridge(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	c := client.New(client.Config{Addr: addr, Timeout: time.Second})
	_, _, err = execute(context.Background(), c, "work()")
	if err == nil {
		t.Error("expected a transport error for an unreachable bridge")
	}
}

func TestSceneScriptRunsOnEngine(t *testing.T) {
	eng := engine.NewStarlark(nil)

	var got []string
	if err := eng.Exec(SceneScript, func(msg string) { got = append(got, msg) }); err != nil {
		t.Fatalf("scene script failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 status messages, got %v", got)
	}
	if got[1] != "scene is empty" {
		t.Errorf("expected empty inventory, got %q", got[1])
	}
}

func TestNewServerRegistersTools(t *testing.T) {
	c := client.New(client.Config{})
	server := NewServer(c, "test")
	if server == nil {
		t.Fatal("expected a server")
	}
}

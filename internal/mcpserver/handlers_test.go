package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/prtrackr/internal/host"
)

// fakeController records commands and answers with a canned reply.
type fakeController struct {
	sessions []string
	commands []host.Command
	reply    string
}

func (f *fakeController) HandleCommand(cmd host.Command) string {
	f.commands = append(f.commands, cmd)
	return f.reply
}

func (f *fakeController) Sessions() []string {
	return f.sessions
}

func extractText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if textContent, ok := result.Content[0].(mcp.TextContent); ok {
		return textContent.Text
	}
	return ""
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	}
}

func TestHandleStatus_ExplicitSession(t *testing.T) {
	ctrl := &fakeController{reply: "✅ · PR #42 · ✓2 ✗0 ⏳0"}
	srv := New(ctrl)

	result, err := srv.handleStatus(context.Background(),
		callRequest("pr_status", map[string]any{"session": "alpha"}))
	if err != nil {
		t.Fatalf("handleStatus returned error: %v", err)
	}

	if got := extractText(result); got != ctrl.reply {
		t.Errorf("unexpected result: %s", got)
	}
	if len(ctrl.commands) != 1 || ctrl.commands[0].Verb != "status" || ctrl.commands[0].Session != "alpha" {
		t.Errorf("unexpected command: %+v", ctrl.commands)
	}
}

func TestHandleStatus_DefaultsToOnlySession(t *testing.T) {
	ctrl := &fakeController{sessions: []string{"solo"}, reply: "no PR"}
	srv := New(ctrl)

	result, err := srv.handleStatus(context.Background(), callRequest("pr_status", nil))
	if err != nil {
		t.Fatalf("handleStatus returned error: %v", err)
	}

	if extractText(result) != "no PR" {
		t.Errorf("unexpected result: %s", extractText(result))
	}
	if ctrl.commands[0].Session != "solo" {
		t.Errorf("expected session solo, got %q", ctrl.commands[0].Session)
	}
}

func TestHandleStatus_AmbiguousWithoutSession(t *testing.T) {
	ctrl := &fakeController{sessions: []string{"alpha", "beta"}}
	srv := New(ctrl)

	result, err := srv.handleStatus(context.Background(), callRequest("pr_status", nil))
	if err != nil {
		t.Fatalf("handleStatus returned error: %v", err)
	}

	if !result.IsError {
		t.Fatal("expected error result for ambiguous session")
	}
	if len(ctrl.commands) != 0 {
		t.Errorf("no command should have been dispatched, got %+v", ctrl.commands)
	}
}

func TestHandleStatus_NoSessions(t *testing.T) {
	ctrl := &fakeController{}
	srv := New(ctrl)

	result, err := srv.handleStatus(context.Background(), callRequest("pr_status", nil))
	if err != nil {
		t.Fatalf("handleStatus returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result when nothing is tracked")
	}
}

func TestHandlePin(t *testing.T) {
	ctrl := &fakeController{sessions: []string{"solo"}, reply: "pinned to acme/widgets#7"}
	srv := New(ctrl)

	result, err := srv.handlePin(context.Background(), callRequest("pr_pin", map[string]any{
		"target": "https://github.com/acme/widgets/pull/7",
	}))
	if err != nil {
		t.Fatalf("handlePin returned error: %v", err)
	}

	if !strings.Contains(extractText(result), "pinned to") {
		t.Errorf("unexpected result: %s", extractText(result))
	}
	cmd := ctrl.commands[0]
	if cmd.Verb != "pin" || cmd.Arg != "https://github.com/acme/widgets/pull/7" {
		t.Errorf("unexpected command: %+v", cmd)
	}
}

func TestHandlePin_MissingTarget(t *testing.T) {
	ctrl := &fakeController{sessions: []string{"solo"}}
	srv := New(ctrl)

	result, err := srv.handlePin(context.Background(), callRequest("pr_pin", map[string]any{}))
	if err != nil {
		t.Fatalf("handlePin returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing target")
	}
}

func TestVerbHandlers(t *testing.T) {
	tests := []struct {
		verb string
	}{
		{"on"}, {"off"}, {"run"}, {"unpin"},
	}

	for _, tt := range tests {
		t.Run(tt.verb, func(t *testing.T) {
			ctrl := &fakeController{sessions: []string{"solo"}, reply: "ok"}
			srv := New(ctrl)

			handler := srv.verbHandler(tt.verb)
			result, err := handler(context.Background(), callRequest("tool", nil))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if extractText(result) != "ok" {
				t.Errorf("unexpected result: %s", extractText(result))
			}
			if ctrl.commands[0].Verb != tt.verb {
				t.Errorf("expected verb %q, got %q", tt.verb, ctrl.commands[0].Verb)
			}
		})
	}
}

func TestServerStartStop(t *testing.T) {
	srv := New(&fakeController{sessions: []string{"solo"}, reply: "ok"})

	port, err := srv.Start(context.Background())
	if err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	if port == 0 {
		t.Fatal("expected non-zero port")
	}
	if !strings.Contains(srv.URL(), "/mcp") {
		t.Errorf("unexpected URL: %s", srv.URL())
	}

	if _, err := srv.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("failed to stop server: %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("second Stop should be a no-op, got: %v", err)
	}
}

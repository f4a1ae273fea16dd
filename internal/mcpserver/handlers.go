package mcpserver

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/prtrackr/internal/host"
)

// registerTools registers the PR tracking tools with the MCP server.
func (s *Server) registerTools() error {
	s.mcpServer.AddTool(
		mcp.NewTool("pr_status",
			mcp.WithDescription("Get the current PR status line for a session: state, checks, unresolved review threads, iteration progress"),
			mcp.WithString("session",
				mcp.Description("Session id (defaults to the only tracked session when unambiguous)"),
			),
		),
		s.handleStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("pr_pin",
			mcp.WithDescription("Pin the session to a specific PR, overriding branch-based detection"),
			mcp.WithString("target", mcp.Required(),
				mcp.Description("PR URL (https://github.com/owner/repo/pull/N) or bare PR number"),
			),
			mcp.WithString("session",
				mcp.Description("Session id"),
			),
		),
		s.handlePin,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("pr_unpin",
			mcp.WithDescription("Remove the session's PR pin and fall back to branch-based detection"),
			mcp.WithString("session",
				mcp.Description("Session id"),
			),
		),
		s.verbHandler("unpin"),
	)

	s.mcpServer.AddTool(
		mcp.NewTool("iterate_on",
			mcp.WithDescription("Enable auto-iteration: every successful push schedules a follow-up instruction, up to the iteration cap"),
			mcp.WithString("session",
				mcp.Description("Session id"),
			),
		),
		s.verbHandler("on"),
	)

	s.mcpServer.AddTool(
		mcp.NewTool("iterate_off",
			mcp.WithDescription("Disable auto-iteration and cancel any pending follow-up"),
			mcp.WithString("session",
				mcp.Description("Session id"),
			),
		),
		s.verbHandler("off"),
	)

	s.mcpServer.AddTool(
		mcp.NewTool("iterate_once",
			mcp.WithDescription("Fire exactly one follow-up iteration now, regardless of the auto-iterate setting"),
			mcp.WithString("session",
				mcp.Description("Session id"),
			),
		),
		s.verbHandler("run"),
	)

	return nil
}

// resolveSession picks the target session: the explicit argument when given,
// otherwise the single tracked session. Ambiguity is an error the agent can
// act on.
func (s *Server) resolveSession(args map[string]any) (string, string) {
	if args != nil {
		if id, ok := args["session"].(string); ok && id != "" {
			return id, ""
		}
	}

	sessions := s.ctrl.Sessions()
	switch len(sessions) {
	case 1:
		return sessions[0], ""
	case 0:
		return "", "no tracked sessions; pass 'session' explicitly"
	default:
		return "", "multiple tracked sessions (" + strings.Join(sessions, ", ") + "); pass 'session' explicitly"
	}
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, errMsg := s.resolveSession(request.GetArguments())
	if errMsg != "" {
		return mcp.NewToolResultError(errMsg), nil
	}

	reply := s.ctrl.HandleCommand(host.Command{Session: session, Verb: "status"})
	return mcp.NewToolResultText(reply), nil
}

func (s *Server) handlePin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if args == nil {
		return mcp.NewToolResultError("no arguments provided"), nil
	}

	target, ok := args["target"].(string)
	if !ok || target == "" {
		return mcp.NewToolResultError("missing or empty 'target' parameter"), nil
	}

	session, errMsg := s.resolveSession(args)
	if errMsg != "" {
		return mcp.NewToolResultError(errMsg), nil
	}

	reply := s.ctrl.HandleCommand(host.Command{Session: session, Verb: "pin", Arg: target})
	return mcp.NewToolResultText(reply), nil
}

// verbHandler builds a handler for the argument-free control verbs.
func (s *Server) verbHandler(verb string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		session, errMsg := s.resolveSession(request.GetArguments())
		if errMsg != "" {
			return mcp.NewToolResultError(errMsg), nil
		}

		reply := s.ctrl.HandleCommand(host.Command{Session: session, Verb: verb})
		return mcp.NewToolResultText(reply), nil
	}
}

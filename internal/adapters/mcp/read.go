package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"plansync/internal/application/commands"
)

// RegisterReadTools adds the tools that never change a plan
func RegisterReadTools(s *server.MCPServer, engine commands.Engine) {
	s.AddTool(statusTool(), statusHandler(engine))
	s.AddTool(logTool(), logHandler(engine))
	s.AddTool(entryTool(), entryHandler(engine))
}

func withTarget() mcp.ToolOption {
	return mcp.WithString("target",
		mcp.Description("Plan to operate on, as team/release (e.g. core/2026-q2)"),
		mcp.Required(),
	)
}

// --- status ---

func statusTool() mcp.Tool {
	return mcp.NewTool("plan_status",
		mcp.WithDescription("Show the sync phase of a plan, its branches, unresolved conflicts and a preview of what a push would change."),
		withTarget(),
	)
}

func statusHandler(engine commands.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cmd := commands.NewStatusCommand(engine, req.GetString("target", ""))
		report, err := cmd.Execute(ctx)
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(commands.FormatStatus(report)), nil
	}
}

// --- log ---

func logTool() mcp.Tool {
	return mcp.NewTool("plan_log",
		mcp.WithDescription("List the audit log of a plan, newest first. Every init, pull and push is recorded with its outcome."),
		withTarget(),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of entries (default 20, -1 for all)"),
		),
	)
}

func logHandler(engine commands.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cmd := commands.NewLogCommand(engine, req.GetString("target", ""), req.GetInt("limit", 0))
		result, err := cmd.Execute(ctx)
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(commands.FormatEntries(result.Entries)), nil
	}
}

// --- entry ---

func entryTool() mcp.Tool {
	return mcp.NewTool("plan_entry",
		mcp.WithDescription("Show one audit entry in full: every attributed change and conflict hint."),
		mcp.WithString("id",
			mcp.Description("Audit entry id as listed by plan_log"),
			mcp.Required(),
		),
	)
}

func entryHandler(engine commands.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entry, err := commands.NewShowEntryCommand(engine, req.GetString("id", "")).Execute(ctx)
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(commands.FormatEntry(entry)), nil
	}
}

// --- helpers ---

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

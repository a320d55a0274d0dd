package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"plansync/internal/application/commands"
	"plansync/internal/domain"
)

// RegisterWriteTools adds the tools that run sync operations
func RegisterWriteTools(s *server.MCPServer, engine commands.Engine) {
	s.AddTool(initTool(), syncHandler(engine, domain.OpInit))
	s.AddTool(pullTool(), syncHandler(engine, domain.OpPull))
	s.AddTool(pushTool(), syncHandler(engine, domain.OpPush))
	s.AddTool(resolveTool(), syncHandler(engine, domain.OpResolve))
}

func initTool() mcp.Tool {
	return mcp.NewTool("plan_init",
		mcp.WithDescription("Start syncing a plan: snapshot it from the planning service into a tracking branch and create the working branch users edit. Fails if the plan is already initialized."),
		withTarget(),
	)
}

func pullTool() mcp.Tool {
	return mcp.NewTool("plan_pull",
		mcp.WithDescription("Fetch the latest remote plan and replay local edits on top of it with git. Reports merge conflicts that must be resolved in the working branch."),
		withTarget(),
	)
}

func pushTool() mcp.Tool {
	return mcp.NewTool("plan_push",
		mcp.WithDescription("Apply committed local edits to the planning service in one all-or-nothing batch. Rejected without any remote change when a field was edited on both sides."),
		withTarget(),
		mcp.WithBoolean("confirm_removals",
			mcp.Description("Delete remotely the items removed from the document. Without it removals are withheld."),
		),
	)
}

func resolveTool() mcp.Tool {
	return mcp.NewTool("plan_resolve",
		mcp.WithDescription("Mark a conflicted plan resolved once the resolution is committed on the working branch."),
		withTarget(),
	)
}

func syncHandler(engine commands.Engine, op domain.Operation) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target := req.GetString("target", "")

		var cmd *commands.SyncCommand
		switch op {
		case domain.OpInit:
			cmd = commands.NewInitCommand(engine, target)
		case domain.OpPull:
			cmd = commands.NewPullCommand(engine, target)
		case domain.OpPush:
			cmd = commands.NewPushCommand(engine, target, req.GetBool("confirm_removals", false))
		default:
			cmd = commands.NewResolveCommand(engine, target)
		}

		result, err := cmd.Execute(ctx)
		switch {
		case err != nil && result != nil:
			return mcp.NewToolResultError(commands.FormatResult(result)), nil
		case err != nil:
			return toolError(err)
		case result.Outcome == domain.OutcomeRejected || result.Outcome == domain.OutcomeFailed:
			// push rejections carry conflict hints the agent has to act on
			return mcp.NewToolResultError(commands.FormatResult(result)), nil
		}
		return mcp.NewToolResultText(commands.FormatResult(result)), nil
	}
}

package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"specbook/internal/application"
	"specbook/internal/application/commands"
	"specbook/internal/domain"
	"specbook/internal/ports"
)

// RegisterReadTools adds the tools that only read the workspace.
// history may be nil, in which case the history tools are not registered.
func RegisterReadTools(s *server.MCPServer, scanner *application.Scanner, tree ports.ObjectTree, history ports.ScanLog) {
	s.AddTool(loadMappingTool(), loadMappingHandler(scanner))
	s.AddTool(changelogTool(), changelogHandler(scanner))
	s.AddTool(outlineTool(), outlineHandler(tree))
	if history != nil {
		s.AddTool(historyTool(), historyHandler(history))
		s.AddTool(historyShowTool(), historyShowHandler(history))
	}
}

// --- load_mapping ---

func loadMappingTool() mcp.Tool {
	return mcp.NewTool("load_mapping",
		mcp.WithDescription("Show the persisted feature-to-code mapping. Each feature lists its status, summary, implementation files and test files."),
		mcp.WithString("object_id",
			mcp.Description("Feature ID to show. Omit to show every feature."),
		),
	)
}

func loadMappingHandler(scanner *application.Scanner) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		objectID := req.GetString("object_id", "")

		idx, err := commands.NewLoadMappingCommand(scanner, objectID).Execute(ctx)
		if err != nil {
			return toolError(err)
		}
		return formatEntities(idx.Entries, formatEntry)
	}
}

// --- changelog ---

func changelogTool() mcp.Tool {
	return mcp.NewTool("changelog",
		mcp.WithDescription("Show what changed in the mapping between the last two full scans."),
		mcp.WithBoolean("include_unchanged",
			mcp.Description("Also list features whose mapping did not change"),
		),
	)
}

func changelogHandler(scanner *application.Scanner) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		all := req.GetBool("include_unchanged", false)

		idx, err := commands.NewLoadMappingCommand(scanner, "").Execute(ctx)
		if err != nil {
			return toolError(err)
		}

		rows := make([]domain.MappingChangeEntry, 0, len(idx.Changelog))
		for _, r := range idx.Changelog {
			if all || r.ChangeType != domain.ChangeUnchanged {
				rows = append(rows, r)
			}
		}
		return formatEntities(rows, formatChange)
	}
}

// --- outline ---

func outlineTool() mcp.Tool {
	return mcp.NewTool("outline",
		mcp.WithDescription("Display the feature tree as a numbered outline with feature IDs."),
		mcp.WithString("object_id",
			mcp.Description("Feature ID to root the outline at. Omit for the whole tree."),
		),
	)
}

func outlineHandler(tree ports.ObjectTree) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		objectID := req.GetString("object_id", "")

		result, err := commands.NewBuildOutlineCommand(tree, objectID).Execute(ctx)
		if err != nil {
			return toolError(err)
		}
		if result.Text == "" {
			return mcp.NewToolResultText("No features."), nil
		}
		return mcp.NewToolResultText(result.Text), nil
	}
}

// --- history ---

func historyTool() mcp.Tool {
	return mcp.NewTool("history",
		mcp.WithDescription("List recent scan runs, newest first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs (default 20)"),
		),
	)
}

func historyHandler(history ports.ScanLog) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)

		runs, err := commands.NewListRunsCommand(history, limit).Execute(ctx)
		if err != nil {
			return toolError(err)
		}
		return formatEntities(runs, formatRun)
	}
}

func historyShowTool() mcp.Tool {
	return mcp.NewTool("history_show",
		mcp.WithDescription("Show one scan run with the prompts sent and the raw provider response."),
		mcp.WithString("run_id",
			mcp.Description("Run ID or a unique prefix of it"),
			mcp.Required(),
		),
	)
}

func historyShowHandler(history ports.ScanLog) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		runID := req.GetString("run_id", "")

		run, err := commands.NewShowRunCommand(history, runID).Execute(ctx)
		if err != nil {
			return toolError(err)
		}

		var sb strings.Builder
		sb.WriteString(formatRun(*run))
		fmt.Fprintf(&sb, "\n\n## System prompt\n%s\n\n## User prompt\n%s\n\n## Raw response\n%s\n",
			run.SystemPrompt, run.UserPrompt, run.RawResponse)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- helpers ---

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

func formatEntities[T any](entities []T, format func(T) string) (*mcp.CallToolResult, error) {
	if len(entities) == 0 {
		return mcp.NewToolResultText("No results."), nil
	}
	var sb strings.Builder
	for _, e := range entities {
		sb.WriteString(format(e))
		sb.WriteByte('\n')
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func formatEntry(e domain.MappingEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  %s  [%s]", e.ObjectID, e.ObjectTitle, e.Status)
	if e.Summary != "" {
		fmt.Fprintf(&sb, "\n  %s", e.Summary)
	}
	writeFiles(&sb, "impl", e.ImplFiles)
	writeFiles(&sb, "test", e.TestFiles)
	return sb.String()
}

func writeFiles(sb *strings.Builder, label string, files []domain.RelatedFile) {
	for _, f := range files {
		fmt.Fprintf(sb, "\n  %s: %s", label, f.FilePath)
		if f.LineRange != "" {
			fmt.Fprintf(sb, ":%s", f.LineRange)
		}
		if f.Description != "" {
			fmt.Fprintf(sb, " (%s)", f.Description)
		}
	}
}

func formatChange(c domain.MappingChangeEntry) string {
	line := fmt.Sprintf("%-9s %s  %s", c.ChangeType, c.ObjectID, c.ObjectTitle)
	if c.ChangeSummary != "" {
		line += "  " + c.ChangeSummary
	}
	return line
}

func formatRun(r domain.ScanRun) string {
	target := "all features"
	if r.Kind == domain.ScanObject {
		target = r.ObjectID
	}
	line := fmt.Sprintf("%s  %s  %-9s %s  %s  in=%d out=%d",
		r.ID, r.StartedAt.Format(time.RFC3339), r.State, target,
		r.Duration().Round(time.Millisecond), r.TokenUsage.InputTokens, r.TokenUsage.OutputTokens)
	if r.Error != "" {
		line += "  error: " + r.Error
	}
	return line
}

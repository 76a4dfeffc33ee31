package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"specbook/internal/application"
	"specbook/internal/application/commands"
	"specbook/internal/domain"
)

// RegisterWriteTools adds the scan tools, which call the AI provider and
// rewrite the mapping index
func RegisterWriteTools(s *server.MCPServer, scanner *application.Scanner) {
	s.AddTool(scanMappingTool(), scanMappingHandler(scanner))
	s.AddTool(scanObjectTool(), scanObjectHandler(scanner))
}

// --- scan_mapping ---

func scanMappingTool() mcp.Tool {
	return mcp.NewTool("scan_mapping",
		mcp.WithDescription("Scan the whole feature tree against the source code and replace the mapping. Returns the changelog against the previous scan."),
	)
}

func scanMappingHandler(scanner *application.Scanner) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := commands.NewScanMappingCommand(scanner).Execute(ctx)
		if err != nil {
			return toolError(err)
		}

		var sb strings.Builder
		sb.WriteString(result.Message)
		sb.WriteByte('\n')
		for _, c := range result.Index.Changelog {
			if c.ChangeType == domain.ChangeUnchanged {
				continue
			}
			sb.WriteString(formatChange(c))
			sb.WriteByte('\n')
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- scan_object ---

func scanObjectTool() mcp.Tool {
	return mcp.NewTool("scan_object",
		mcp.WithDescription("Rescan one feature and its descendants. Entries of other features are left untouched."),
		mcp.WithString("object_id",
			mcp.Description("Feature ID to rescan"),
			mcp.Required(),
		),
	)
}

func scanObjectHandler(scanner *application.Scanner) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		objectID := req.GetString("object_id", "")

		result, err := commands.NewScanObjectCommand(scanner, objectID).Execute(ctx)
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("%s\n%s\n", result.Message, formatEntry(*result.Entry))), nil
	}
}

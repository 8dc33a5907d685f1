package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dwellscope/dwellscope/internal/ingest"
)

// handleSystems processes residency_systems tool calls.
func (s *Server) handleSystems(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input SystemsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Path == "" {
		return errorResult(ErrEmptyPath)
	}

	dataset, err := ingest.ReadFile(input.Path, false)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(dataset.Systems())
}

package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/tally/internal/testplan"
)

type testplanParams struct {
	Path        string `json:"path" jsonschema:"path to a JavaDoc test-class page, absolute or relative to the workspace"`
	SetupMethod string `json:"setup_method,omitempty" jsonschema:"leading method to drop from the plan. Defaults to the configured setup method."`
}

func (h *handler) testplanHandler(ctx context.Context, req *mcp.CallToolRequest, params testplanParams) (*mcp.CallToolResult, any, error) {
	if params.Path == "" {
		return errorResult("path is required")
	}
	path := params.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(h.workspace, path)
	}

	setup := params.SetupMethod
	if setup == "" {
		setup = h.cfg.SetupMethod()
	}

	f, err := os.Open(path)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to open %s: %v", params.Path, err))
	}
	defer f.Close()

	entries, err := testplan.Extract(f, setup)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to extract test plan: %v", err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d tests!\n\n", len(entries))
	if err := testplan.WriteCSV(&b, entries); err != nil {
		return errorResult(fmt.Sprintf("Failed to render CSV: %v", err))
	}
	return textResult(b.String())
}

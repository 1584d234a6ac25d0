// Package mcp provides the tally MCP server, registering the trial and
// test-plan tools and publishing model instructions.
package mcp

import (
	_ "embed"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/deixis/tally"
	"github.com/deixis/tally/internal/config"
	"github.com/deixis/tally/internal/report"
	"github.com/deixis/tally/internal/runner"
	"github.com/deixis/tally/internal/trial"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	cfg       *config.Config
	runner    trial.CommandRunner
	store     report.Store
	workspace string
	logger    *zap.Logger
}

// NewServer creates an MCP server with all tally tools registered.
func NewServer(cfg *config.Config, r *runner.Runner, store report.Store, workspace string, opts ...ServerOption) *mcp.Server {
	so := serverOptions{logger: zap.NewNop()}
	for _, o := range opts {
		o(&so)
	}

	h := &handler{
		cfg:       cfg,
		runner:    r,
		store:     store,
		workspace: workspace,
		logger:    so.logger,
	}

	s := mcp.NewServer(&mcp.Implementation{Name: "tally", Version: tally.Version}, &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	})

	mcp.AddTool(s, &mcp.Tool{
		Name: "tally_run",
		Description: `Run the configured program repeatedly and tally valid versus invalid runs.

Trials run in batches of at most "width" concurrent invocations; each batch finishes
before the next starts. A run is valid when its output contains the configured marker.
Every trial's output is kept on disk. Results are stored for drill-down via tally_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "tally_inspect",
		Description: `Drill into a tally_run result.

Pass "trial" to read one trial's captured output, or "category" (valid or invalid)
to list the trials in that category.`,
	}, h.inspectHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "tally_testplan",
		Description: "Extract a CSV test plan (method name, description) from a generated JavaDoc test-class page.",
	}, h.testplanHandler)

	return s
}

// ServerOption configures the tally MCP server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	logger *zap.Logger
}

// WithLogger attaches a logger used for run progress.
func WithLogger(l *zap.Logger) ServerOption {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}

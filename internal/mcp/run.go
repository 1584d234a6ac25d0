package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/deixis/tally/internal/report"
	"github.com/deixis/tally/internal/trial"
)

type runParams struct {
	Trials *int `json:"trials,omitempty" jsonschema:"Number of trials to run. Defaults to the configured trial count."`
	Width  *int `json:"width,omitempty" jsonschema:"Maximum number of concurrent trials. Defaults to the configured width."`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	n := h.cfg.Trials()
	if params.Trials != nil {
		n = *params.Trials
	}
	width := h.cfg.Width()
	if params.Width != nil {
		width = *params.Width
	}

	outputDir := h.cfg.OutputDir
	if outputDir == "" {
		outputDir = h.workspace
	} else if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(h.workspace, outputDir)
	}

	eng := &trial.Engine{
		Runner:       h.runner,
		Command:      h.cfg.Argv(),
		Marker:       h.cfg.Marker(),
		Width:        width,
		OutputDir:    outputDir,
		OutputPrefix: h.cfg.OutputPrefix(),
		Logger:       h.logger.With(zap.String("tool", "tally_run")),
	}

	summary, err := eng.Run(ctx, n)
	if err != nil {
		return errorResult(fmt.Sprintf("run failed: %v", err))
	}

	// Save results for tally_inspect.
	if err := h.store.Save(summary); err != nil {
		h.logger.Warn("saving summary", zap.String("run", summary.ID), zap.Error(err))
	}

	return textResult(formatRun(summary))
}

func formatRun(s *report.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s\n", s.ID)
	fmt.Fprintf(&b, "Command: %s\n", strings.Join(s.Command, " "))
	fmt.Fprintf(&b, "Trials: %d in %d batches of up to %d\n", s.Trials, s.Batches, s.Width)
	fmt.Fprintf(&b, "Output: %s\n", s.Dir)
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "valid: %d\n", s.Tally.Valid)
	fmt.Fprintf(&b, "invalid: %d\n", s.Tally.Invalid)

	if failed := report.Failed(s); len(failed) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "Trials that could not run: %d (first: trial %d, %s)\n", len(failed), failed[0].Index, failed[0].Error)
	}

	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Inspect with tally_inspect(run_id=%q, category=\"invalid\").\n", s.ID)
	return b.String()
}

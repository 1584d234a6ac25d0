package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/tally/internal/artifact"
	"github.com/deixis/tally/internal/report"
)

type inspectParams struct {
	RunID    string `json:"run_id" jsonschema:"the run ID from a tally_run result"`
	Trial    *int   `json:"trial,omitempty" jsonschema:"index of a single trial whose captured output to return"`
	Category string `json:"category,omitempty" jsonschema:"valid or invalid: list the trials in this category"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	if params.Trial == nil && params.Category == "" {
		return errorResult("one of trial or category is required")
	}

	summary, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	if params.Trial != nil {
		rec, err := summary.Record(*params.Trial)
		if err != nil {
			return errorResult(err.Error())
		}
		output, err := artifact.Open(summary.Dir).Read(rec.File)
		if err != nil {
			return errorResult(fmt.Sprintf("Failed to read trial %d: %v", rec.Index, err))
		}
		return textResult(formatTrial(summary.ID, rec, string(output)))
	}

	cat, err := report.ParseCategory(params.Category)
	if err != nil {
		return errorResult(err.Error())
	}
	records := report.ByCategory(summary, cat)
	if len(records) == 0 {
		return textResult(fmt.Sprintf("No %s trials in run %s.", cat, summary.ID))
	}
	return textResult(formatCategory(summary, cat, records))
}

func formatTrial(runID string, rec report.Record, output string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s\n", runID)
	fmt.Fprintf(&b, "Trial %d: %s\n", rec.Index, rec.Category)
	fmt.Fprintf(&b, "File: %s\n", rec.File)
	fmt.Fprintf(&b, "Exit code: %d\n", rec.ExitCode)
	if rec.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", rec.Error)
	}
	fmt.Fprintln(&b)

	if output == "" {
		fmt.Fprintln(&b, "(no output)")
	} else {
		fmt.Fprint(&b, output)
		if !strings.HasSuffix(output, "\n") {
			fmt.Fprintln(&b)
		}
	}
	return b.String()
}

func formatCategory(s *report.Summary, cat report.Category, records []report.Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s\n", s.ID)
	fmt.Fprintf(&b, "%s trials: %d of %d\n", cat, len(records), s.Trials)
	fmt.Fprintln(&b)
	for _, r := range records {
		fmt.Fprintf(&b, "  %4d  %s  exit %d", r.Index, r.File, r.ExitCode)
		if r.Error != "" {
			fmt.Fprintf(&b, "  (%s)", r.Error)
		}
		fmt.Fprintln(&b)
	}
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Read one with tally_inspect(run_id=%q, trial=<index>).\n", s.ID)
	return b.String()
}

// Package trial runs an external program repeatedly in fixed-width
// batches, classifies each run's console output and tallies the results.
//
// Within a batch every trial is started before any is waited on; the
// next batch starts only after the whole batch has finished, so at most
// Width trials are ever in flight.
package trial

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/deixis/tally/internal/artifact"
	"github.com/deixis/tally/internal/report"
	"github.com/deixis/tally/internal/runner"
)

// ErrSetup marks failures that abort a run before any trial executes.
var ErrSetup = errors.New("run setup failed")

// CommandRunner executes one invocation of the trial program.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, cwd string) (*runner.Result, error)
}

// Result is the outcome of a single trial.
type Result struct {
	Index    int
	Batch    int // start index of the batch
	Offset   int // position within the batch
	File     string
	Output   string
	Category report.Category
	ExitCode int
	Err      error // launch or persistence failure; the trial still counts
}

// Engine holds the dependencies of a batched run.
type Engine struct {
	Runner  CommandRunner
	Command []string
	Marker  string
	Width   int

	OutputDir    string // parent of the per-run directory
	OutputPrefix string

	Logger *zap.Logger

	// OnBatch, if set, is called after each batch with the number of
	// completed trials and the total.
	OnBatch func(done, total int)

	now func() time.Time
}

// Run executes n trials and returns the finished summary. Per-trial
// failures never abort the run; only setup errors (wrapping ErrSetup),
// invalid arguments and context cancellation do.
func (e *Engine) Run(ctx context.Context, n int) (*report.Summary, error) {
	if n < 0 {
		return nil, fmt.Errorf("trial count must be >= 0, got %d", n)
	}
	if e.Width < 1 {
		return nil, fmt.Errorf("width must be >= 1, got %d", e.Width)
	}
	if len(e.Command) == 0 {
		return nil, fmt.Errorf("no command configured")
	}
	if e.Marker == "" {
		return nil, fmt.Errorf("no marker configured")
	}

	log := e.logger()
	now := e.clock()

	dir, err := artifact.Create(e.OutputDir, e.prefix(), now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}

	batches := Plan(n, e.Width)
	summary := &report.Summary{
		ID:      uuid.New().String(),
		Dir:     dir.Path(),
		Command: e.Command,
		Trials:  n,
		Width:   e.Width,
		Marker:  e.Marker,
		Batches: len(batches),
		Records: make([]report.Record, 0, n),
		Started: now(),
	}
	log.Info("run started",
		zap.String("run", summary.ID),
		zap.String("dir", summary.Dir),
		zap.Int("trials", n),
		zap.Int("width", e.Width),
		zap.Int("batches", len(batches)),
	)

	done := 0
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			summary.Finished = now()
			return summary, fmt.Errorf("interrupted after %d/%d trials: %w", done, n, err)
		}

		results := e.runBatch(ctx, dir, b)

		// Reduce on this goroutine, after the barrier.
		for _, r := range results {
			summary.Tally.Add(r.Category)
			summary.Records = append(summary.Records, record(r))
		}
		done += b.Size

		log.Debug("batch finished",
			zap.Int("start", b.Start),
			zap.Int("size", b.Size),
			zap.Int("done", done),
		)
		if e.OnBatch != nil {
			e.OnBatch(done, n)
		}
	}

	summary.Finished = now()
	log.Info("run finished",
		zap.String("run", summary.ID),
		zap.Int("valid", summary.Tally.Valid),
		zap.Int("invalid", summary.Tally.Invalid),
		zap.Duration("elapsed", summary.Finished.Sub(summary.Started)),
	)
	return summary, nil
}

// runBatch starts one goroutine per trial in b and waits for all of them.
// Each goroutine writes only its own slot of the returned slice.
func (e *Engine) runBatch(ctx context.Context, dir *artifact.Dir, b Batch) []Result {
	results := make([]Result, b.Size)
	var g errgroup.Group
	for j := range b.Size {
		g.Go(func() error {
			results[j] = e.runTrial(ctx, dir, b.Start, j)
			return nil
		})
	}
	_ = g.Wait() // trials never return errors
	return results
}

// runTrial invokes the program once, persists its output and classifies it.
func (e *Engine) runTrial(ctx context.Context, dir *artifact.Dir, batchStart, offset int) Result {
	r := Result{
		Index:  batchStart + offset,
		Batch:  batchStart,
		Offset: offset,
		File:   artifact.FileName(batchStart, offset),
	}

	res, err := e.Runner.Run(ctx, e.Command, "")
	if err != nil {
		// Record what a shell would have printed; the marker is absent,
		// so the trial is classified invalid.
		r.Output = err.Error() + "\n"
		r.ExitCode = -1
		r.Err = err
	} else {
		r.Output = string(res.Output)
		r.ExitCode = res.ExitCode
	}

	if werr := dir.Write(r.File, []byte(r.Output)); werr != nil {
		e.logger().Warn("persisting trial output", zap.Int("trial", r.Index), zap.Error(werr))
		r.Err = errors.Join(r.Err, werr)
	}

	r.Category = Classify(r.Output, e.Marker)

	e.logger().Debug("trial finished",
		zap.Int("trial", r.Index),
		zap.String("file", r.File),
		zap.Int("exit_code", r.ExitCode),
		zap.String("category", string(r.Category)),
		zap.Error(r.Err),
	)
	return r
}

func record(r Result) report.Record {
	rec := report.Record{
		Index:    r.Index,
		Batch:    r.Batch,
		Offset:   r.Offset,
		File:     r.File,
		Category: r.Category,
		ExitCode: r.ExitCode,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Engine) clock() func() time.Time {
	if e.now == nil {
		return time.Now
	}
	return e.now
}

func (e *Engine) prefix() string {
	if e.OutputPrefix == "" {
		return "out"
	}
	return e.OutputPrefix
}

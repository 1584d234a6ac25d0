package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	return &Runner{
		Workspace: t.TempDir(),
		Timeout:   10 * time.Second,
		MaxOutput: 1 << 20,
	}
}

func TestRun_Success(t *testing.T) {
	r := newTestRunner(t)
	res, err := r.Run(context.Background(), []string{"echo", "Dungeon created in 12ms"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if !strings.Contains(string(res.Output), "Dungeon created in") {
		t.Errorf("Output = %q, want to contain 'Dungeon created in'", res.Output)
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}
}

func TestRun_MergesStderr(t *testing.T) {
	r := newTestRunner(t)
	res, err := r.Run(context.Background(), []string{"sh", "-c", "echo out; echo err 1>&2"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := string(res.Output); got != "out\nerr\n" {
		t.Errorf("Output = %q, want %q", got, "out\nerr\n")
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	r := newTestRunner(t)
	res, err := r.Run(context.Background(), []string{"sh", "-c", "echo boom 1>&2; exit 3"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(string(res.Output), "boom") {
		t.Errorf("Output = %q, want to contain 'boom'", res.Output)
	}
}

func TestRun_BinaryNotFound(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.Run(context.Background(), []string{"nonexistent-binary-xyz-123"}, "")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !strings.Contains(err.Error(), "nonexistent-binary-xyz-123") {
		t.Errorf("error = %q, want to mention the binary name", err)
	}
}

func TestRun_EmptyArgv(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.Run(context.Background(), nil, "")
	if err == nil {
		t.Fatal("expected error for empty argv")
	}
}

func TestRun_CWDWithinWorkspace(t *testing.T) {
	r := newTestRunner(t)
	sub := filepath.Join(r.Workspace, "subdir")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(context.Background(), []string{"pwd"}, "subdir")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(res.Output), "subdir") {
		t.Errorf("Output = %q, want to contain 'subdir'", res.Output)
	}
}

func TestRun_CWDOutsideWorkspace(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.Run(context.Background(), []string{"echo"}, "../")
	if err == nil {
		t.Fatal("expected error for cwd outside workspace")
	}
	if !strings.Contains(err.Error(), "outside workspace") {
		t.Errorf("error = %q, want 'outside workspace'", err)
	}
}

func TestRun_Timeout(t *testing.T) {
	r := newTestRunner(t)
	r.Timeout = 100 * time.Millisecond

	start := time.Now()
	res, err := r.Run(context.Background(), []string{"sleep", "10"}, "")
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Run took %v, want it killed by the timeout", elapsed)
	}
	// A killed process surfaces as an ExitError, so a result is expected.
	if err != nil {
		return
	}
	if res.ExitCode == 0 {
		t.Error("ExitCode = 0, want non-zero after timeout")
	}
}

func TestRun_NoTimeout(t *testing.T) {
	r := newTestRunner(t)
	r.Timeout = 0

	res, err := r.Run(context.Background(), []string{"sh", "-c", "sleep 0.2; echo done"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(res.Output), "done") {
		t.Errorf("Output = %q, want to contain 'done'", res.Output)
	}
}

func TestRun_OutputTruncation(t *testing.T) {
	r := newTestRunner(t)
	r.MaxOutput = 100

	res, err := r.Run(context.Background(), []string{"sh", "-c", "dd if=/dev/zero bs=200 count=1 2>/dev/null"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	if len(res.Output) > r.MaxOutput {
		t.Errorf("len(Output) = %d, want <= %d", len(res.Output), r.MaxOutput)
	}
}

func TestRun_ExactLimitNotTruncated(t *testing.T) {
	r := newTestRunner(t)
	r.MaxOutput = 4

	res, err := r.Run(context.Background(), []string{"printf", "abcd"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Truncated {
		t.Error("Truncated = true, want false when output fits exactly")
	}
	if string(res.Output) != "abcd" {
		t.Errorf("Output = %q, want %q", res.Output, "abcd")
	}
}

func TestRun_ZeroMaxOutputCapturesEverything(t *testing.T) {
	r := newTestRunner(t)
	r.MaxOutput = 0

	res, err := r.Run(context.Background(), []string{"sh", "-c", "dd if=/dev/zero bs=1024 count=2048 2>/dev/null"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Truncated {
		t.Error("Truncated = true, want false")
	}
	if len(res.Output) != 2<<20 {
		t.Errorf("len(Output) = %d, want %d", len(res.Output), 2<<20)
	}
}

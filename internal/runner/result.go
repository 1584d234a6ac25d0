package runner

// Result holds the output of a single program invocation.
type Result struct {
	RunID     string // unique identifier for this invocation
	ExitCode  int    // process exit code
	Output    []byte // merged stdout and stderr (may be truncated)
	Truncated bool   // true if output exceeded the size cap
}

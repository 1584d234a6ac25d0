// Command tally runs a program repeatedly and tallies valid versus invalid
// runs, and extracts test plans from generated JavaDoc pages.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/deixis/tally"
	"github.com/deixis/tally/internal/config"
	tallymcp "github.com/deixis/tally/internal/mcp"
	"github.com/deixis/tally/internal/report"
	"github.com/deixis/tally/internal/runner"
	"github.com/deixis/tally/internal/testplan"
	"github.com/deixis/tally/internal/trial"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("tally: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runMain(args)
	case "testplan":
		err = testplanMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(tally.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "tally: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: tally <command> [flags] [args]

Commands:
  run         Run the configured program N times in batches and tally the results
  testplan    Extract a CSV test plan from a JavaDoc test-class page
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Use "tally <command> -h" for command-specific flags.`)
}

// --- run ---

func runMain(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	trialsFlag := fs.Int("n", -1, "number of trials (default from .tally, else 1000)")
	widthFlag := fs.Int("w", 0, "maximum concurrent trials (default from .tally, else 32)")
	timeoutFlag := fs.Duration("timeout", 0, "per-trial timeout (default: none)")
	maxOutputFlag := fs.Int("max-output", 0, "cap each trial's captured output at this many bytes (default: uncapped)")
	dirFlag := fs.String("dir", "", "parent directory for the run's output directory")
	saveFlag := fs.String("save", "", "also write the run summary as JSON into this directory")
	jsonFlag := fs.Bool("json", false, "print the full run summary as JSON")
	quietFlag := fs.Bool("q", false, "suppress the progress indicator")
	verboseFlag := fs.Bool("v", false, "verbose logging")
	_ = fs.Parse(args)

	logger, err := newLogger(*verboseFlag)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	width, widthSet, err := widthOverride(fs, *widthFlag)
	if err != nil {
		return err
	}

	loaded, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := loaded.Config

	n := cfg.Trials()
	if *trialsFlag >= 0 {
		n = *trialsFlag
	}
	timeout := cfg.Timeout()
	if *timeoutFlag > 0 {
		timeout = *timeoutFlag
	}
	maxOutput := cfg.MaxOutputBytes()
	if *maxOutputFlag > 0 {
		maxOutput = *maxOutputFlag
	}

	eng := newEngine(loaded, logger)
	eng.Runner = &runner.Runner{
		Workspace: loaded.Root,
		Timeout:   timeout,
		MaxOutput: maxOutput,
	}
	if widthSet {
		eng.Width = width
	}
	if *dirFlag != "" {
		eng.OutputDir = *dirFlag
	}
	if fs.NArg() > 0 {
		eng.Command = fs.Args()
	}
	if !*quietFlag {
		eng.OnBatch = progress(os.Stderr)
	}

	if err := trial.CheckCommand(eng.Command, loaded.Root); err != nil {
		logger.Warn("every trial will fail to launch", zap.Error(err))
	}

	summary, runErr := eng.Run(ctx, n)
	if summary == nil {
		return runErr
	}

	if *saveFlag != "" {
		if err := report.NewDiskStore(*saveFlag).Save(summary); err != nil {
			logger.Warn("saving summary", zap.Error(err))
		}
	}

	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		fmt.Println(formatTally(summary.Tally))
	}
	return runErr
}

// widthOverride returns the -w value when it was passed explicitly.
// An explicit width below 1 is an error rather than a fallback to config.
func widthOverride(fs *flag.FlagSet, w int) (int, bool, error) {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "w" {
			set = true
		}
	})
	if !set {
		return 0, false, nil
	}
	if w < 1 {
		return 0, false, fmt.Errorf("-w must be >= 1, got %d", w)
	}
	return w, true, nil
}

// progress returns a batch hook that redraws a single progress line.
func progress(w io.Writer) func(done, total int) {
	start := time.Now()
	return func(done, total int) {
		pct := 100
		if total > 0 {
			pct = done * 100 / total
		}
		fmt.Fprintf(w, "\r%3d%% %d/%d [%s]", pct, done, total, time.Since(start).Round(time.Second))
		if done == total {
			fmt.Fprintln(w)
		}
	}
}

func formatTally(t report.Tally) string {
	return fmt.Sprintf(`{"valid": %d, "invalid": %d}`, t.Valid, t.Invalid)
}

// --- testplan ---

func testplanMain(args []string) error {
	fs := flag.NewFlagSet("testplan", flag.ExitOnError)
	setupFlag := fs.String("setup", "", "leading method to drop (default from .tally, else setUp)")
	outFlag := fs.String("o", "", "output CSV path (default: page name with .csv in the current directory)")
	docsFlag := fs.String("docs", "", "JavaDoc root used with -package and -class (default from .tally, else docs)")
	pkgFlag := fs.String("package", "", "package of the class under test, e.g. utils")
	classFlag := fs.String("class", "", "class under test, e.g. ValueSanity")
	_ = fs.Parse(args)

	loaded, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := loaded.Config

	page, err := testplanSource(fs.Arg(0), *docsFlag, cfg.Testplan.Docs, *pkgFlag, *classFlag)
	if err != nil {
		return err
	}

	setup := cfg.SetupMethod()
	if *setupFlag != "" {
		setup = *setupFlag
	}

	f, err := os.Open(page)
	if err != nil {
		return fmt.Errorf("opening page: %w", err)
	}
	defer f.Close()

	entries, err := testplan.Extract(f, setup)
	if err != nil {
		return fmt.Errorf("%s: %w", page, err)
	}

	fmt.Printf("Found %d tests!\n", len(entries))

	out := *outFlag
	if out == "" {
		out = testplan.OutputName(page)
	}
	w, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	if err := testplan.WriteCSV(w, entries); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing %s: %w", out, err)
	}
	return w.Close()
}

// testplanSource picks the page to read: an explicit argument wins,
// otherwise the page is derived from the docs root, package and class.
func testplanSource(arg, docsFlag, docsConfig, pkg, class string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	if pkg == "" || class == "" {
		return "", fmt.Errorf("testplan: pass a page path or both -package and -class")
	}
	docs := docsFlag
	if docs == "" {
		docs = docsConfig
	}
	if docs == "" {
		docs = "docs"
	}
	return testplan.Source(docs, pkg, class), nil
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	verboseFlag := fs.Bool("v", false, "verbose logging")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(tallymcp.Instructions)
		return nil
	}

	logger, err := newLogger(*verboseFlag)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return serve(ctx, *httpAddr, logger)
}

func serve(ctx context.Context, httpAddr string, logger *zap.Logger) error {
	loaded, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := loaded.Config

	store := report.NewLRUStore(5, report.NewDiskStore(""))

	r := &runner.Runner{
		Workspace: loaded.Root,
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutputBytes(),
	}

	server := tallymcp.NewServer(cfg, r, store, loaded.Root, tallymcp.WithLogger(logger))

	if httpAddr != "" {
		return serveHTTP(ctx, server, httpAddr, logger)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string, logger *zap.Logger) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	logger.Info("listening", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- shared ---

func loadConfig() (*config.LoadResult, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining workspace: %w", err)
	}
	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return loaded, nil
}

// newEngine builds an engine from configuration. Relative output
// directories in .tally are resolved against the directory holding it.
func newEngine(loaded *config.LoadResult, logger *zap.Logger) *trial.Engine {
	cfg := loaded.Config
	outputDir := cfg.OutputDir
	if outputDir != "" && !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(loaded.Root, outputDir)
	}
	return &trial.Engine{
		Command:      cfg.Argv(),
		Marker:       cfg.Marker(),
		Width:        cfg.Width(),
		OutputDir:    outputDir,
		OutputPrefix: cfg.OutputPrefix(),
		Logger:       logger,
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

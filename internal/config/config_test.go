package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_FromRoot(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "version: 1\ntrials: 10\nwidth: 3\ntimeout: 30s\n")

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Root != dir {
		t.Errorf("Root = %q, want %q", res.Root, dir)
	}
	cfg := res.Config
	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Trials() != 10 {
		t.Errorf("Trials() = %d, want 10", cfg.Trials())
	}
	if cfg.Width() != 3 {
		t.Errorf("Width() = %d, want 3", cfg.Width())
	}
	if cfg.Timeout() != 30*time.Second {
		t.Errorf("Timeout() = %v, want 30s", cfg.Timeout())
	}
}

func TestLoad_FromSubdirectory(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "version: 2\nmarker: \"Maze built in\"\n")

	sub := filepath.Join(root, "build", "out")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := Load(sub)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Root != root {
		t.Errorf("Root = %q, want %q", res.Root, root)
	}
	if res.Config.Marker() != "Maze built in" {
		t.Errorf("Marker() = %q, want %q", res.Config.Marker(), "Maze built in")
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	dir := t.TempDir()

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Root != dir {
		t.Errorf("Root = %q, want %q (fallback to workspace)", res.Root, dir)
	}
	if res.Config.Version != 0 {
		t.Errorf("expected default config, got Version = %d", res.Config.Version)
	}
}

func TestLoad_SchemaViolation(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "width: 0\n")

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for width: 0")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("error = %q, want 'validation failed'", err)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "threads: 8\n")

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoad_BadTimeout(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "timeout: soon\n")

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for unparsable timeout")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("error = %q, want to mention timeout", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	if cfg.Trials() != DefaultTrials {
		t.Errorf("Trials() = %d, want %d", cfg.Trials(), DefaultTrials)
	}
	if cfg.Width() != DefaultWidth {
		t.Errorf("Width() = %d, want %d", cfg.Width(), DefaultWidth)
	}
	if cfg.Marker() != DefaultMarker {
		t.Errorf("Marker() = %q, want %q", cfg.Marker(), DefaultMarker)
	}
	if !slices.Equal(cfg.Argv(), DefaultCommand) {
		t.Errorf("Argv() = %v, want %v", cfg.Argv(), DefaultCommand)
	}
	if cfg.Timeout() != 0 {
		t.Errorf("Timeout() = %v, want 0", cfg.Timeout())
	}
	if cfg.MaxOutputBytes() != DefaultMaxOutput {
		t.Errorf("MaxOutputBytes() = %d, want %d", cfg.MaxOutputBytes(), DefaultMaxOutput)
	}
	if cfg.OutputPrefix() != "out" {
		t.Errorf("OutputPrefix() = %q, want out", cfg.OutputPrefix())
	}
	if cfg.SetupMethod() != "setUp" {
		t.Errorf("SetupMethod() = %q, want setUp", cfg.SetupMethod())
	}
}

func TestTrials_ZeroIsExplicit(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "trials: 0\n")

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Config.Trials() != 0 {
		t.Errorf("Trials() = %d, want 0", res.Config.Trials())
	}
}

func TestMaxOutputBytes_UncappedByDefault(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "max_output: 0\n")

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := res.Config.MaxOutputBytes(); got != 0 {
		t.Errorf("MaxOutputBytes() = %d, want 0 (uncapped)", got)
	}
	if got := (&Config{}).MaxOutputBytes(); got != 0 {
		t.Errorf("default MaxOutputBytes() = %d, want 0 (uncapped)", got)
	}
}

func TestMaxOutputBytes_OptIn(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "max_output: 4096\n")

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := res.Config.MaxOutputBytes(); got != 4096 {
		t.Errorf("MaxOutputBytes() = %d, want 4096", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"empty", "", false},
		{"full", "version: 1\ncommand: [sh, -c, 'echo hi']\ntrials: 5\nwidth: 2\nmarker: hi\nmax_output: 1024\ntestplan:\n  setup_method: before\n", false},
		{"empty command", "command: []\n", true},
		{"negative trials", "trials: -1\n", true},
		{"empty marker", "marker: \"\"\n", true},
		{"prefix with slash", "output_prefix: a/b\n", true},
		{"not yaml", "trials: [1,\n", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate([]byte(tc.yaml))
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

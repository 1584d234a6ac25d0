package trial

import (
	"fmt"
	"os/exec"
	"path/filepath"
)

// ErrCommandUnavailable reports that the trial program cannot be found.
// Runs still proceed; every trial then fails to launch and counts as invalid.
type ErrCommandUnavailable struct {
	Name string
	Err  error
}

func (e ErrCommandUnavailable) Error() string {
	return fmt.Sprintf("%s is not available: %v", e.Name, e.Err)
}

func (e ErrCommandUnavailable) Unwrap() error {
	return e.Err
}

// CheckCommand verifies that argv[0] resolves to an executable. Relative
// paths containing a separator are resolved against workspace.
func CheckCommand(argv []string, workspace string) error {
	if len(argv) == 0 {
		return fmt.Errorf("no command configured")
	}
	name := argv[0]
	if filepath.Base(name) != name && !filepath.IsAbs(name) {
		name = filepath.Join(workspace, name)
	}
	if _, err := exec.LookPath(name); err != nil {
		return ErrCommandUnavailable{Name: argv[0], Err: err}
	}
	return nil
}

//go:build !windows

package updater

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// RestartWithHelper is only meaningful on Windows; the call site in
// updater.go is guarded by a runtime.GOOS check, so this stub exists
// purely so the package compiles on other platforms.
func RestartWithHelper(newBinary, targetPath string) error {
	return fmt.Errorf("RestartWithHelper is only supported on windows")
}

// Restart replaces the current process image with the freshly installed
// binary.
func Restart() error {
	binary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	binary, err = filepath.EvalSymlinks(binary)
	if err != nil {
		return fmt.Errorf("failed to resolve symlinks: %w", err)
	}

	args := []string{binary, "run"}
	env := os.Environ()

	return syscall.Exec(binary, args, env)
}

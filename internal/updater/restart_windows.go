//go:build windows

package updater

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Restart launches a fresh copy of the shell and lets the caller exit.
func Restart() error {
	binary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cmd := exec.Command(binary, "run")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to relaunch: %w", err)
	}
	return nil
}

// RestartWithHelper spawns a batch script that waits for this process
// to exit, swaps the binary, relaunches the shell, and deletes itself.
// Windows cannot overwrite a running executable, so the swap has to
// happen from outside the process.
func RestartWithHelper(newBinary, targetPath string) error {
	script := filepath.Join(os.TempDir(), "solvr-shell-update.bat")
	pid := strconv.Itoa(os.Getpid())

	content := "@echo off\r\n" +
		":wait\r\n" +
		"tasklist /FI \"PID eq " + pid + "\" 2>nul | find \"" + pid + "\" >nul\r\n" +
		"if not errorlevel 1 (\r\n" +
		"  timeout /t 1 /nobreak >nul\r\n" +
		"  goto wait\r\n" +
		")\r\n" +
		"copy /y \"" + newBinary + "\" \"" + targetPath + "\" >nul\r\n" +
		"del \"" + newBinary + "\"\r\n" +
		"start \"\" \"" + targetPath + "\" run\r\n" +
		"del \"%~f0\"\r\n"

	if err := os.WriteFile(script, []byte(content), 0700); err != nil {
		return fmt.Errorf("failed to write update helper: %w", err)
	}

	cmd := exec.Command("cmd", "/c", "start", "/min", "", script)
	if err := cmd.Start(); err != nil {
		os.Remove(script)
		return fmt.Errorf("failed to spawn update helper: %w", err)
	}
	return nil
}

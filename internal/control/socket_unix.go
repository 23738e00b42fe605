//go:build !windows

package control

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// DefaultPath returns the per-user control socket location.
func DefaultPath(stateDir string) string {
	return filepath.Join(stateDir, "control.sock")
}

func listenSocket(path string) (net.Listener, error) {
	// Remove stale socket file
	os.Remove(path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}

	if err := os.Chmod(path, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("chmod %s: %w", path, err)
	}
	return listener, nil
}

func dialSocket(path string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", path, timeout)
}

func cleanupSocket(path string) {
	os.Remove(path)
}

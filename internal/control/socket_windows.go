//go:build windows

package control

import (
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// SDDL: SYSTEM gets full control, Interactive Users get read/write.
const pipeSecurity = "D:P(A;;GA;;;SY)(A;;GRGW;;;IU)"

// DefaultPath returns the control pipe name. stateDir is unused on
// Windows; named pipes live in their own namespace.
func DefaultPath(_ string) string {
	return `\\.\pipe\agentsolvr-shell`
}

func listenSocket(path string) (net.Listener, error) {
	cfg := &winio.PipeConfig{
		SecurityDescriptor: pipeSecurity,
		InputBufferSize:    64 * 1024,
		OutputBufferSize:   64 * 1024,
	}
	return winio.ListenPipe(path, cfg)
}

func dialSocket(path string, timeout time.Duration) (net.Conn, error) {
	return winio.DialPipe(path, &timeout)
}

func cleanupSocket(_ string) {}

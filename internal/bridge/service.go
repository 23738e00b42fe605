package bridge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/agentsolvr/shell/internal/logging"
)

// ServiceState tracks the lifecycle of a managed backend process.
type ServiceState string

const (
	ServiceStopped  ServiceState = "stopped"
	ServiceStarting ServiceState = "starting"
	ServiceRunning  ServiceState = "running"
	ServiceFailed   ServiceState = "failed"
)

const stopGracePeriod = 5 * time.Second

// Service is a backend helper process managed by the bridge. The shell
// starts these alongside itself and restarts them on demand.
type Service struct {
	name    string
	command []string
	env     []string
	dir     string

	mu        sync.Mutex
	cmd       *exec.Cmd
	state     ServiceState
	startedAt time.Time
	restarts  int
	lastErr   error
	waitDone  chan struct{}
}

// NewService describes a process to manage. command[0] is the binary,
// the rest are arguments.
func NewService(name string, command []string, env map[string]string, dir string) (*Service, error) {
	if name == "" {
		return nil, fmt.Errorf("bridge: service needs a name")
	}
	if len(command) == 0 {
		return nil, fmt.Errorf("bridge: service %s needs a command", name)
	}
	s := &Service{
		name:    name,
		command: command,
		dir:     dir,
		state:   ServiceStopped,
	}
	if len(env) > 0 {
		s.env = os.Environ()
		for k, v := range env {
			s.env = append(s.env, k+"="+v)
		}
	}
	return s, nil
}

// Name returns the service name.
func (s *Service) Name() string { return s.name }

// Start launches the process. Starting an already running service is an
// error.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == ServiceRunning || s.state == ServiceStarting {
		return fmt.Errorf("bridge: service %s already running", s.name)
	}

	cmd := exec.CommandContext(ctx, s.command[0], s.command[1:]...)
	cmd.Env = s.env
	cmd.Dir = s.dir
	if err := cmd.Start(); err != nil {
		s.state = ServiceFailed
		s.lastErr = err
		return fmt.Errorf("bridge: start %s: %w", s.name, err)
	}

	s.cmd = cmd
	s.state = ServiceRunning
	s.startedAt = time.Now()
	s.lastErr = nil
	s.waitDone = make(chan struct{})
	done := s.waitDone

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		if s.state == ServiceRunning {
			if err != nil {
				s.state = ServiceFailed
				s.lastErr = err
			} else {
				s.state = ServiceStopped
			}
		}
		s.mu.Unlock()
		close(done)
		if err != nil {
			log.Warn("service exited", logging.KeyService, s.name, "error", err)
		} else {
			log.Info("service exited", logging.KeyService, s.name)
		}
	}()

	log.Info("service started", logging.KeyService, s.name, "pid", cmd.Process.Pid)
	return nil
}

// Stop terminates the process, giving it a grace period before killing.
func (s *Service) Stop() error {
	s.mu.Lock()
	if s.state != ServiceRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = ServiceStopped
	cmd := s.cmd
	done := s.waitDone
	s.mu.Unlock()

	if runtime.GOOS == "windows" {
		cmd.Process.Kill()
	} else {
		cmd.Process.Signal(os.Interrupt)
	}

	select {
	case <-done:
	case <-time.After(stopGracePeriod):
		cmd.Process.Kill()
		<-done
	}
	log.Info("service stopped", logging.KeyService, s.name)
	return nil
}

// Restart stops the process if running and starts it again.
func (s *Service) Restart(ctx context.Context) error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.mu.Lock()
	s.restarts++
	s.mu.Unlock()
	return s.Start(ctx)
}

// State returns the current lifecycle state.
func (s *Service) State() ServiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Healthy reports whether the process is running.
func (s *Service) Healthy() bool {
	return s.State() == ServiceRunning
}

// Uptime returns how long the process has been running, zero when
// stopped.
func (s *Service) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ServiceRunning {
		return 0
	}
	return time.Since(s.startedAt)
}

// PID returns the process id, 0 when not running.
func (s *Service) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ServiceRunning || s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Info is a JSON-friendly snapshot of a service.
type Info struct {
	Name          string `json:"name"`
	State         string `json:"state"`
	PID           int    `json:"pid,omitempty"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	Restarts      int    `json:"restarts"`
	LastError     string `json:"lastError,omitempty"`
}

// Snapshot returns the service's current Info.
func (s *Service) Snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		Name:     s.name,
		State:    string(s.state),
		Restarts: s.restarts,
	}
	if s.state == ServiceRunning {
		info.UptimeSeconds = int64(time.Since(s.startedAt).Seconds())
		if s.cmd != nil && s.cmd.Process != nil {
			info.PID = s.cmd.Process.Pid
		}
	}
	if s.lastErr != nil {
		info.LastError = s.lastErr.Error()
	}
	return info
}

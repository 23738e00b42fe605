//go:build !windows

package control

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentsolvr/shell/internal/ipc"
)

func startServer(t *testing.T, h Handlers) (string, []byte) {
	t.Helper()
	dir := t.TempDir()
	path := DefaultPath(dir)
	key, err := ipc.LoadOrCreateKey(filepath.Join(dir, "control.key"))
	if err != nil {
		t.Fatal(err)
	}

	srv := NewServer(path, key, h)
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- srv.Listen(stop) }()
	t.Cleanup(func() {
		close(stop)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c, err := Dial(path, key); err == nil {
			c.Close()
			return path, key
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server never came up")
	return "", nil
}

func TestPing(t *testing.T) {
	path, key := startServer(t, Handlers{})
	c, err := Dial(path, key)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	path, key := startServer(t, Handlers{
		Status: func(verbose bool) (*ipc.StatusResult, error) {
			return &ipc.StatusResult{Version: "1.2.3", PID: 42, Windows: 1}, nil
		},
	})
	c, err := Dial(path, key)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	res, err := c.Status(false)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if res.Version != "1.2.3" || res.PID != 42 {
		t.Errorf("result = %+v", res)
	}
}

func TestNotifyValidation(t *testing.T) {
	path, key := startServer(t, Handlers{
		Notify: func(req ipc.NotifyRequest) (*ipc.NotifyResult, error) {
			return &ipc.NotifyResult{ID: "n1", Queued: true}, nil
		},
	})
	c, err := Dial(path, key)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	res, err := c.Notify(ipc.NotifyRequest{Title: "Build done", Message: "ok"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if !res.Queued || res.ID != "n1" {
		t.Errorf("result = %+v", res)
	}

	if _, err := c.Notify(ipc.NotifyRequest{Message: "no title"}); err == nil {
		t.Error("notify without title accepted")
	}
}

func TestHandlerErrorPropagates(t *testing.T) {
	path, key := startServer(t, Handlers{
		Clear: func() (*ipc.Result, error) {
			return nil, fmt.Errorf("center not running")
		},
	})
	c, err := Dial(path, key)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, err := c.Clear(); err == nil {
		t.Fatal("handler error not propagated")
	}
}

func TestMissingHandlerRejected(t *testing.T) {
	path, key := startServer(t, Handlers{})
	c, err := Dial(path, key)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, err := c.UpdateCheck(ipc.UpdateCheckRequest{}); err == nil {
		t.Fatal("missing handler did not error")
	}
}

func TestWrongKeyRejected(t *testing.T) {
	path, _ := startServer(t, Handlers{})
	wrong, err := ipc.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	c, err := Dial(path, wrong)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.Ping(); err == nil {
		t.Fatal("request with wrong key succeeded")
	}
}

package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentsolvr/shell/internal/health"
	"github.com/agentsolvr/shell/internal/workerpool"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	pool := workerpool.New("bridge", 2, 16)
	t.Cleanup(func() {
		pool.StopAccepting()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		pool.Drain(ctx)
	})

	srv := NewServer(New(health.NewMonitor()), "secret", pool)
	ts := httptest.NewServer(http.HandlerFunc(srv.handleUpgrade))
	t.Cleanup(ts.Close)
	return srv, ts
}

func dialBridge(t *testing.T, ts *httptest.Server, token string) (*websocket.Conn, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

func TestServerRejectsBadToken(t *testing.T) {
	_, ts := newTestServer(t)
	if conn, err := dialBridge(t, ts, "wrong"); err == nil {
		conn.Close()
		t.Fatal("connection with wrong token accepted")
	}
}

func TestServerRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)

	conn, err := dialBridge(t, ts, "secret")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := Message{ID: "req-1", Channel: "ping"}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var reply Message
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.ID != "req-1" {
		t.Errorf("reply id = %q", reply.ID)
	}
	var payload map[string]string
	if err := json.Unmarshal(reply.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["reply"] != "pong" {
		t.Errorf("payload = %v", payload)
	}
}

func TestServerUnknownChannelError(t *testing.T) {
	_, ts := newTestServer(t)

	conn, err := dialBridge(t, ts, "secret")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(Message{ID: "req-2", Channel: "missing"}); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var reply Message
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatal(err)
	}
	if reply.Error == "" || !strings.Contains(reply.Error, "unknown channel") {
		t.Errorf("error = %q", reply.Error)
	}
}

func TestServerBroadcast(t *testing.T) {
	srv, ts := newTestServer(t)

	conn, err := dialBridge(t, ts, "secret")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	srv.Broadcast("notification.delivered", map[string]string{"id": "n1"})

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var event Message
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read: %v", err)
	}
	if event.Channel != "notification.delivered" {
		t.Errorf("channel = %q", event.Channel)
	}
	if event.ID == "" {
		t.Error("event missing id")
	}
}

func TestServerListenRefusesNonLoopback(t *testing.T) {
	pool := workerpool.New("bridge", 1, 4)
	defer func() {
		pool.StopAccepting()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		pool.Drain(ctx)
	}()
	srv := NewServer(New(health.NewMonitor()), "t", pool)
	if err := srv.Listen("0.0.0.0:0"); err == nil {
		t.Fatal("non-loopback listen accepted")
	}
}

func TestServerBindReturnsBeforeServing(t *testing.T) {
	pool := workerpool.New("bridge", 1, 4)
	defer func() {
		pool.StopAccepting()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		pool.Drain(ctx)
	}()
	srv := NewServer(New(health.NewMonitor()), "secret", pool)

	if err := srv.Bind("127.0.0.1:0"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	addr := srv.Addr()
	if addr == "" {
		t.Fatal("Addr empty after Bind")
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/bridge?token=secret", nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	select {
	case err := <-serveErr:
		if err != nil {
			t.Errorf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestServerServeBeforeBindFails(t *testing.T) {
	pool := workerpool.New("bridge", 1, 4)
	defer func() {
		pool.StopAccepting()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		pool.Drain(ctx)
	}()
	srv := NewServer(New(health.NewMonitor()), "t", pool)
	if err := srv.Serve(); err == nil {
		t.Fatal("Serve without Bind succeeded")
	}
}

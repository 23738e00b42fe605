package updater

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestNewAppliesDefaults(t *testing.T) {
	u := New(&Config{ServerURL: "http://localhost:3001", CurrentVersion: "1.0.0"})
	if u.cfg.Channel != ChannelStable {
		t.Errorf("channel = %q, want stable", u.cfg.Channel)
	}
	if u.cfg.CheckInterval != DefaultCheckInterval {
		t.Errorf("interval = %v", u.cfg.CheckInterval)
	}
	if u.State() != StateIdle {
		t.Errorf("initial state = %s", u.State())
	}
}

func TestValidChannel(t *testing.T) {
	for _, ch := range []string{"stable", "beta", "alpha", "dev"} {
		if !ValidChannel(ch) {
			t.Errorf("%s rejected", ch)
		}
	}
	if ValidChannel("nightly") {
		t.Error("nightly accepted")
	}
}

func TestIsNewer(t *testing.T) {
	cases := []struct {
		candidate, current string
		want               bool
	}{
		{"1.0.1", "1.0.0", true},
		{"1.1.0", "1.0.9", true},
		{"2.0.0", "1.9.9", true},
		{"1.0.0", "1.0.0", false},
		{"1.0.0", "1.0.1", false},
		{"1.0.0.1", "1.0.0", true},
		{"1.0", "1.0.0", false},
		{"v1.2.0", "1.1.0", true},
		{"1.2.0-beta.1", "1.1.0", true},
		{"", "1.0.0", false},
	}
	for _, tc := range cases {
		if got := IsNewer(tc.candidate, tc.current); got != tc.want {
			t.Errorf("IsNewer(%q, %q) = %v, want %v", tc.candidate, tc.current, got, tc.want)
		}
	}
}

func TestVerifyChecksumValid(t *testing.T) {
	content := []byte("shell binary payload")
	path := filepath.Join(t.TempDir(), "bin")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	hasher := sha256.New()
	hasher.Write(content)
	checksum := hex.EncodeToString(hasher.Sum(nil))

	if err := verifyChecksum(path, checksum); err != nil {
		t.Fatalf("valid checksum should pass: %v", err)
	}
}

func TestVerifyChecksumInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bin")
	if err := os.WriteFile(path, []byte("actual content"), 0644); err != nil {
		t.Fatal(err)
	}
	err := verifyChecksum(path, "0000000000000000000000000000000000000000000000000000000000000000")
	if err == nil {
		t.Fatal("invalid checksum should fail")
	}
}

func TestVerifyChecksumFileNotFound(t *testing.T) {
	if err := verifyChecksum("/nonexistent/file", "abc"); err == nil {
		t.Fatal("nonexistent file should return error")
	}
}

func TestCheckFindsUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("channel") != "beta" {
			t.Errorf("channel = %q", q.Get("channel"))
		}
		json.NewEncoder(w).Encode(Release{
			Version:  "1.3.0",
			URL:      "http://example.invalid/shell",
			Checksum: "deadbeef",
			Notes:    "fixes",
		})
	}))
	defer srv.Close()

	u := New(&Config{ServerURL: srv.URL, Channel: "beta", CurrentVersion: "1.2.0"})

	var mu sync.Mutex
	var states []State
	u.OnEvent(func(ev Event) {
		mu.Lock()
		states = append(states, ev.State)
		mu.Unlock()
	})

	rel, err := u.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if rel == nil || rel.Version != "1.3.0" {
		t.Fatalf("release = %+v", rel)
	}
	if u.State() != StateAvailable {
		t.Errorf("state = %s", u.State())
	}
	if u.Available() == nil {
		t.Error("available release not stored")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 || states[0] != StateChecking || states[1] != StateAvailable {
		t.Errorf("states = %v", states)
	}
}

func TestCheckNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	u := New(&Config{ServerURL: srv.URL, CurrentVersion: "1.0.0"})
	rel, err := u.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if rel != nil {
		t.Errorf("release = %+v, want nil", rel)
	}
	if u.State() != StateNoUpdate {
		t.Errorf("state = %s", u.State())
	}
}

func TestCheckIgnoresOlderVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(Release{Version: "0.9.0", URL: "http://x", Checksum: "ab"})
	}))
	defer srv.Close()

	u := New(&Config{ServerURL: srv.URL, CurrentVersion: "1.0.0"})
	rel, err := u.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rel != nil {
		t.Errorf("older release offered as update: %+v", rel)
	}
	if u.State() != StateNoUpdate {
		t.Errorf("state = %s", u.State())
	}
}

func TestDownloadVerifiesChecksum(t *testing.T) {
	payload := []byte("new shell build bytes")
	hasher := sha256.New()
	hasher.Write(payload)
	good := hex.EncodeToString(hasher.Sum(nil))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	u := New(&Config{ServerURL: srv.URL, CurrentVersion: "1.0.0"})
	u.mu.Lock()
	u.release = &Release{Version: "1.1.0", URL: srv.URL, Checksum: good}
	u.mu.Unlock()

	if err := u.Download(context.Background()); err != nil {
		t.Fatalf("download: %v", err)
	}
	if u.State() != StateDownloaded {
		t.Errorf("state = %s", u.State())
	}
	u.mu.Lock()
	archive := u.archive
	u.mu.Unlock()
	defer os.Remove(archive)
	data, err := os.ReadFile(archive)
	if err != nil {
		t.Fatalf("staged file: %v", err)
	}
	if string(data) != string(payload) {
		t.Error("staged file content differs from download")
	}
}

func TestDownloadRejectsBadChecksum(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("corrupted"))
	}))
	defer srv.Close()

	u := New(&Config{ServerURL: srv.URL, CurrentVersion: "1.0.0"})
	u.mu.Lock()
	u.release = &Release{Version: "1.1.0", URL: srv.URL, Checksum: "ffff"}
	u.mu.Unlock()

	if err := u.Download(context.Background()); err == nil {
		t.Fatal("bad checksum accepted")
	}
	if u.State() != StateError {
		t.Errorf("state = %s", u.State())
	}
}

func TestDownloadWithoutCheck(t *testing.T) {
	u := New(&Config{ServerURL: "http://localhost:1", CurrentVersion: "1.0.0"})
	if err := u.Download(context.Background()); err == nil {
		t.Fatal("download without a release succeeded")
	}
}

func TestBackupAndRollback(t *testing.T) {
	dir := t.TempDir()
	binPath := filepath.Join(dir, "shell")
	backupPath := filepath.Join(dir, "shell.backup")
	if err := os.WriteFile(binPath, []byte("version one"), 0755); err != nil {
		t.Fatal(err)
	}

	u := New(&Config{BinaryPath: binPath, BackupPath: backupPath})
	if err := u.backupCurrentBinary(); err != nil {
		t.Fatalf("backup: %v", err)
	}

	if err := os.WriteFile(binPath, []byte("broken version two"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := u.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	data, _ := os.ReadFile(binPath)
	if string(data) != "version one" {
		t.Errorf("binary after rollback = %q", data)
	}
}

func TestRollbackWithoutBackup(t *testing.T) {
	u := New(&Config{BackupPath: filepath.Join(t.TempDir(), "missing")})
	if err := u.Rollback(); err == nil {
		t.Fatal("rollback without backup succeeded")
	}
}

func TestEventHandlerPanicIsolated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	u := New(&Config{ServerURL: srv.URL, CurrentVersion: "1.0.0"})
	u.OnEvent(func(Event) { panic("listener bug") })

	called := false
	u.OnEvent(func(Event) { called = true })

	if _, err := u.Check(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}
	if !called {
		t.Error("second handler not reached after first panicked")
	}
}

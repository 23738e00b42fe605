// Package updater checks for, downloads, and installs shell updates.
package updater

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/agentsolvr/shell/internal/httputil"
	"github.com/agentsolvr/shell/internal/logging"
)

var log = logging.L("updater")

// State is the updater's position in the check/download/install cycle.
type State string

const (
	StateIdle        State = "idle"
	StateChecking    State = "checking"
	StateAvailable   State = "available"
	StateNoUpdate    State = "no_update"
	StateDownloading State = "downloading"
	StateDownloaded  State = "downloaded"
	StateInstalling  State = "installing"
	StateInstalled   State = "installed"
	StateError       State = "error"
)

// Channels the update server publishes builds on.
const (
	ChannelStable = "stable"
	ChannelBeta   = "beta"
	ChannelAlpha  = "alpha"
	ChannelDev    = "dev"
)

// ValidChannel reports whether ch names a known release channel.
func ValidChannel(ch string) bool {
	switch ch {
	case ChannelStable, ChannelBeta, ChannelAlpha, ChannelDev:
		return true
	}
	return false
}

// DefaultCheckInterval is how often the auto-check loop polls.
const DefaultCheckInterval = 24 * time.Hour

// Config holds updater configuration.
type Config struct {
	ServerURL      string
	Channel        string
	CurrentVersion string
	BinaryPath     string
	BackupPath     string
	CheckInterval  time.Duration
}

// Release describes an available build.
type Release struct {
	Version  string `json:"version"`
	URL      string `json:"url"`
	Checksum string `json:"checksum"`
	Notes    string `json:"notes,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Progress reports download advancement.
type Progress struct {
	Downloaded  int64
	Total       int64
	Percent     float64
	BytesPerSec float64
	ETASeconds  int64
}

// Event is delivered to registered handlers on every state change.
type Event struct {
	State    State
	Release  *Release
	Progress *Progress
	Err      error
}

// Updater drives the update lifecycle. All methods are safe for
// concurrent use; only one check or download runs at a time.
type Updater struct {
	cfg    *Config
	client *http.Client

	mu       sync.Mutex
	state    State
	release  *Release
	archive  string
	handlers []func(Event)

	autoStop chan struct{}
	autoOn   bool
}

// New creates an Updater in the idle state.
func New(cfg *Config) *Updater {
	if cfg.Channel == "" {
		cfg.Channel = ChannelStable
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	return &Updater{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Minute},
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (u *Updater) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Available returns the release found by the last successful check.
func (u *Updater) Available() *Release {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.release
}

// OnEvent subscribes to state changes. Handler panics are recovered so
// a broken listener cannot take the updater down.
func (u *Updater) OnEvent(h func(Event)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.handlers = append(u.handlers, h)
}

func (u *Updater) setState(s State, rel *Release, prog *Progress, err error) {
	u.mu.Lock()
	u.state = s
	if rel != nil {
		u.release = rel
	}
	handlers := append(([]func(Event))(nil), u.handlers...)
	u.mu.Unlock()

	ev := Event{State: s, Release: rel, Progress: prog, Err: err}
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("update event handler panicked", "panic", r)
				}
			}()
			h(ev)
		}()
	}
}

// Check asks the update server whether a newer build exists on the
// configured channel.
func (u *Updater) Check(ctx context.Context) (*Release, error) {
	u.setState(StateChecking, nil, nil, nil)

	url := fmt.Sprintf("%s/api/v1/updates/check?channel=%s&platform=%s&arch=%s&version=%s",
		u.cfg.ServerURL, u.cfg.Channel, runtime.GOOS, runtime.GOARCH, u.cfg.CurrentVersion)

	resp, err := httputil.Do(ctx, u.client, http.MethodGet, url, nil, nil, httputil.DefaultRetryConfig())
	if err != nil {
		u.setState(StateError, nil, nil, err)
		return nil, fmt.Errorf("updater: check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		u.setState(StateNoUpdate, nil, nil, nil)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("updater: check returned status %d", resp.StatusCode)
		u.setState(StateError, nil, nil, err)
		return nil, err
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		u.setState(StateError, nil, nil, err)
		return nil, fmt.Errorf("updater: parse check response: %w", err)
	}
	if rel.Version == "" || rel.URL == "" || rel.Checksum == "" {
		err := fmt.Errorf("updater: check response missing version, url, or checksum")
		u.setState(StateError, nil, nil, err)
		return nil, err
	}

	if !IsNewer(rel.Version, u.cfg.CurrentVersion) {
		log.Info("no newer version", "current", u.cfg.CurrentVersion, "offered", rel.Version)
		u.setState(StateNoUpdate, nil, nil, nil)
		return nil, nil
	}

	log.Info("update available", "current", u.cfg.CurrentVersion, "available", rel.Version)
	u.setState(StateAvailable, &rel, nil, nil)
	return &rel, nil
}

// Download fetches the release found by Check, verifies its checksum,
// and leaves it staged for Install.
func (u *Updater) Download(ctx context.Context) error {
	u.mu.Lock()
	rel := u.release
	u.mu.Unlock()
	if rel == nil {
		return fmt.Errorf("updater: no release to download, run Check first")
	}

	u.setState(StateDownloading, rel, &Progress{}, nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rel.URL, nil)
	if err != nil {
		u.setState(StateError, rel, nil, err)
		return err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		u.setState(StateError, rel, nil, err)
		return fmt.Errorf("updater: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("updater: download returned status %d", resp.StatusCode)
		u.setState(StateError, rel, nil, err)
		return err
	}

	total := resp.ContentLength
	if total <= 0 {
		total = rel.Size
	}

	tmp, err := os.CreateTemp("", "solvr-shell-*")
	if err != nil {
		u.setState(StateError, rel, nil, err)
		return err
	}

	if err := u.copyWithProgress(tmp, resp.Body, total, rel); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		u.setState(StateError, rel, nil, err)
		return err
	}
	tmp.Close()

	if err := verifyChecksum(tmp.Name(), rel.Checksum); err != nil {
		os.Remove(tmp.Name())
		u.setState(StateError, rel, nil, err)
		return fmt.Errorf("updater: %w", err)
	}

	u.mu.Lock()
	u.archive = tmp.Name()
	u.mu.Unlock()
	log.Info("update downloaded", "version", rel.Version, "path", tmp.Name())
	u.setState(StateDownloaded, rel, &Progress{Downloaded: total, Total: total, Percent: 100}, nil)
	return nil
}

// copyWithProgress streams the body to dst, emitting progress events at
// most a few times a second.
func (u *Updater) copyWithProgress(dst io.Writer, src io.Reader, total int64, rel *Release) error {
	const reportEvery = 250 * time.Millisecond
	buf := make([]byte, 128*1024)
	var written int64
	start := time.Now()
	lastReport := start

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			written += int64(n)
		}
		if now := time.Now(); now.Sub(lastReport) >= reportEvery {
			lastReport = now
			u.setState(StateDownloading, rel, progressAt(written, total, now.Sub(start)), nil)
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

func progressAt(written, total int64, elapsed time.Duration) *Progress {
	p := &Progress{Downloaded: written, Total: total}
	if secs := elapsed.Seconds(); secs > 0 {
		p.BytesPerSec = float64(written) / secs
	}
	if total > 0 {
		p.Percent = float64(written) / float64(total) * 100
		if p.BytesPerSec > 0 {
			p.ETASeconds = int64(float64(total-written) / p.BytesPerSec)
		}
	}
	return p
}

// Install replaces the running binary with the staged download, backing
// up the current one and rolling back on failure. On success the
// process is restarted.
func (u *Updater) Install() error {
	u.mu.Lock()
	rel := u.release
	archive := u.archive
	u.mu.Unlock()
	if archive == "" {
		return fmt.Errorf("updater: nothing staged, run Download first")
	}

	u.setState(StateInstalling, rel, nil, nil)

	if err := u.backupCurrentBinary(); err != nil {
		os.Remove(archive)
		u.setState(StateError, rel, nil, err)
		return fmt.Errorf("updater: backup: %w", err)
	}

	if runtime.GOOS == "windows" {
		// The helper swaps the binary after this process exits.
		if err := RestartWithHelper(archive, u.cfg.BinaryPath); err != nil {
			os.Remove(archive)
			if rbErr := u.Rollback(); rbErr != nil {
				log.Error("rollback also failed", "originalError", err, "rollbackError", rbErr)
			}
			u.setState(StateError, rel, nil, err)
			return fmt.Errorf("updater: spawn helper: %w", err)
		}
		u.setState(StateInstalled, rel, nil, nil)
		return nil
	}

	defer os.Remove(archive)
	if err := u.replaceBinary(archive); err != nil {
		if rbErr := u.Rollback(); rbErr != nil {
			log.Error("rollback also failed after replace error", "replaceError", err, "rollbackError", rbErr)
			u.setState(StateError, rel, nil, err)
			return fmt.Errorf("updater: replace binary: %w (rollback also failed: %v)", err, rbErr)
		}
		u.setState(StateError, rel, nil, err)
		return fmt.Errorf("updater: replace binary (rolled back): %w", err)
	}

	u.setState(StateInstalled, rel, nil, nil)

	if err := Restart(); err != nil {
		if rbErr := u.Rollback(); rbErr != nil {
			log.Error("rollback also failed after restart error", "restartError", err, "rollbackError", rbErr)
			return fmt.Errorf("updater: restart: %w (rollback also failed: %v)", err, rbErr)
		}
		return fmt.Errorf("updater: restart (rolled back): %w", err)
	}
	return nil
}

// StartAutoCheck begins periodic background checks. Downloads are not
// started automatically; listeners react to the available event.
func (u *Updater) StartAutoCheck() {
	u.mu.Lock()
	if u.autoOn {
		u.mu.Unlock()
		return
	}
	u.autoOn = true
	u.autoStop = make(chan struct{})
	stop := u.autoStop
	interval := u.cfg.CheckInterval
	u.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				if _, err := u.Check(ctx); err != nil {
					log.Warn("scheduled update check failed", "error", err)
				}
				cancel()
			}
		}
	}()
	log.Info("auto update check started", "interval", interval.String())
}

// StopAutoCheck halts the background check loop.
func (u *Updater) StopAutoCheck() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.autoOn {
		return
	}
	u.autoOn = false
	close(u.autoStop)
}

// verifyChecksum verifies the SHA256 checksum of a file.
func verifyChecksum(path, expected string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return err
	}

	actual := hex.EncodeToString(hasher.Sum(nil))
	if actual != expected {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}

// backupCurrentBinary copies the running binary aside so a failed
// install can be rolled back.
func (u *Updater) backupCurrentBinary() error {
	os.Remove(u.cfg.BackupPath)

	src, err := os.Open(u.cfg.BinaryPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(u.cfg.BackupPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	info, err := os.Stat(u.cfg.BinaryPath)
	if err != nil {
		return err
	}
	return os.Chmod(u.cfg.BackupPath, info.Mode())
}

// replaceBinary swaps the staged file into the binary path.
func (u *Updater) replaceBinary(newPath string) error {
	if runtime.GOOS == "windows" {
		oldPath := u.cfg.BinaryPath + ".old"
		os.Remove(oldPath)
		if err := os.Rename(u.cfg.BinaryPath, oldPath); err != nil {
			return err
		}
	}

	src, err := os.Open(newPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(u.cfg.BinaryPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(u.cfg.BinaryPath, 0755); err != nil {
			return err
		}
	}
	return nil
}

// Rollback restores the backup binary.
func (u *Updater) Rollback() error {
	log.Info("rolling back to previous version")

	if _, err := os.Stat(u.cfg.BackupPath); os.IsNotExist(err) {
		return fmt.Errorf("no backup found at %s", u.cfg.BackupPath)
	}

	src, err := os.Open(u.cfg.BackupPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(u.cfg.BinaryPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(u.cfg.BinaryPath, 0755); err != nil {
			return err
		}
	}
	return nil
}

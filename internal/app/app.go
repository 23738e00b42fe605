// Package app assembles the desktop shell: tray, notification center,
// backend bridge, window manager, updater, and the local control socket.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentsolvr/shell/internal/bridge"
	"github.com/agentsolvr/shell/internal/config"
	"github.com/agentsolvr/shell/internal/control"
	"github.com/agentsolvr/shell/internal/health"
	"github.com/agentsolvr/shell/internal/ipc"
	"github.com/agentsolvr/shell/internal/logging"
	"github.com/agentsolvr/shell/internal/notify"
	"github.com/agentsolvr/shell/internal/tray"
	"github.com/agentsolvr/shell/internal/updater"
	"github.com/agentsolvr/shell/internal/window"
	"github.com/agentsolvr/shell/internal/workerpool"
)

var log = logging.L("app")

const (
	mainWindowID    = "main"
	shutdownTimeout = 5 * time.Second
)

// Shell owns every long-lived component and their shutdown order.
type Shell struct {
	cfg     *config.Config
	version string
	started time.Time

	tray      *tray.Manager
	center    *notify.Center
	monitor   *health.Monitor
	pool      *workerpool.Pool
	bridge    *bridge.Bridge
	bridgeSrv *bridge.Server
	windows   *window.Manager
	updater   *updater.Updater
	control   *control.Server

	controlStop chan struct{}
	logClose    func() error

	quitOnce sync.Once
	done     chan struct{}
}

// New builds the shell from config. Nothing is started yet; call Run.
func New(cfg *config.Config, version string) (*Shell, error) {
	s := &Shell{
		cfg:         cfg,
		version:     version,
		controlStop: make(chan struct{}),
		done:        make(chan struct{}),
	}

	if err := s.initLogging(); err != nil {
		return nil, err
	}

	s.tray = tray.NewManager(cfg.App.Name)

	s.center = notify.NewCenter(notify.Config{
		MaxSimultaneous: cfg.Notifications.MaxSimultaneous,
		QueueLimit:      cfg.Notifications.QueueLimit,
		HistoryLimit:    cfg.Notifications.HistoryLimit,
		MaxPerMinute:    cfg.Notifications.MaxPerMinute,
	}, s.tray)

	s.monitor = health.NewMonitor()
	s.pool = workerpool.New("bridge", 4, 64)
	s.bridge = bridge.New(s.monitor)
	if err := s.registerServices(); err != nil {
		return nil, err
	}
	s.bridgeSrv = bridge.NewServer(s.bridge, cfg.Bridge.Token, s.pool)

	store, err := window.LoadStateStore(filepath.Join(config.Dir(), "windows.yaml"))
	if err != nil {
		return nil, fmt.Errorf("window state: %w", err)
	}
	s.windows = window.NewManager(s.bridgeSrv, store)

	binPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve binary path: %w", err)
	}
	s.updater = updater.New(&updater.Config{
		ServerURL:      cfg.Updater.ServerURL,
		Channel:        cfg.Updater.Channel,
		CurrentVersion: version,
		BinaryPath:     binPath,
		BackupPath:     binPath + ".backup",
		CheckInterval:  time.Duration(cfg.Updater.CheckIntervalHours) * time.Hour,
	})
	s.updater.OnEvent(s.onUpdateEvent)

	key, err := ipc.LoadOrCreateKey(filepath.Join(config.Dir(), "control.key"))
	if err != nil {
		return nil, fmt.Errorf("control key: %w", err)
	}
	s.control = control.NewServer(control.DefaultPath(config.Dir()), key, s.controlHandlers())

	s.registerChannels()
	s.buildMenu()

	return s, nil
}

func (s *Shell) initLogging() error {
	lc := s.cfg.Logging
	level := lc.Level
	if s.cfg.App.Debug {
		level = "debug"
	}

	if lc.File == "" {
		logging.Init(lc.Format, level, nil)
		return nil
	}

	rw, err := logging.NewRotatingWriter(lc.File, lc.MaxSizeMB, lc.MaxBackups)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logging.Init(lc.Format, level, logging.TeeWriter(os.Stdout, rw))
	s.logClose = rw.Close
	return nil
}

func (s *Shell) registerServices() error {
	for name, spec := range s.cfg.Bridge.Services {
		svc, err := serviceFromSpec(name, spec)
		if err != nil {
			return err
		}
		if err := s.bridge.RegisterService(svc); err != nil {
			return err
		}
	}
	return nil
}

func serviceFromSpec(name string, spec map[string]any) (*bridge.Service, error) {
	var command []string
	switch v := spec["command"].(type) {
	case []any:
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("service %s: command must be a list of strings", name)
			}
			command = append(command, str)
		}
	case string:
		command = []string{v}
	case nil:
		return nil, fmt.Errorf("service %s: missing command", name)
	default:
		return nil, fmt.Errorf("service %s: invalid command", name)
	}

	env := map[string]string{}
	if raw, ok := spec["env"].(map[string]any); ok {
		for k, v := range raw {
			if str, ok := v.(string); ok {
				env[k] = str
			}
		}
	}

	dir, _ := spec["dir"].(string)
	return bridge.NewService(name, command, env, dir)
}

func (s *Shell) buildMenu() {
	s.tray.BuildDefaultMenu(tray.MenuActions{
		ShowWindow: func() {
			if err := s.windows.Show(mainWindowID); err != nil {
				log.Warn("show main window", logging.KeyError, err)
			}
		},
		OpenSettings: func() {
			s.bridgeSrv.Broadcast("shell.settings", map[string]any{"open": true})
		},
		CheckUpdates: func() {
			go s.checkForUpdates()
		},
		Quit: s.Quit,
	})
}

// Run starts every component and blocks until Quit is called or ctx is
// cancelled. It must run on the main goroutine; the tray event loop on
// macOS requires it.
func (s *Shell) Run(ctx context.Context) error {
	log.Info("starting shell", "version", s.version, "pid", os.Getpid())
	s.started = time.Now()

	s.center.Start()

	// Bind synchronously so an occupied port fails startup; Serve blocks
	// until Shutdown and runs on its own goroutine.
	if err := s.bridgeSrv.Bind(s.cfg.Bridge.ListenAddr); err != nil {
		return fmt.Errorf("bridge listen: %w", err)
	}
	go func() {
		if err := s.bridgeSrv.Serve(); err != nil {
			log.Error("bridge server", logging.KeyError, err)
		}
	}()
	log.Info("bridge listening", "addr", s.bridgeSrv.Addr())

	go func() {
		if err := s.control.Listen(s.controlStop); err != nil {
			log.Error("control socket", logging.KeyError, err)
		}
	}()

	// Services run for the shell's lifetime; StopAll terminates them on
	// shutdown. The context is deliberately not the run context, since
	// exec.CommandContext kills the process on cancellation and shutdown
	// order matters.
	s.bridge.StartAll(context.Background())

	if _, err := s.windows.Create(mainWindowID, window.Options{
		Title:     s.cfg.Window.Title,
		Width:     s.cfg.Window.Width,
		Height:    s.cfg.Window.Height,
		Resizable: s.cfg.Window.Resizable,
		Show:      s.cfg.Window.Show,
	}); err != nil {
		return fmt.Errorf("create main window: %w", err)
	}

	if s.cfg.Updater.AutoCheck {
		s.updater.StartAutoCheck()
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Quit()
		case <-s.done:
		}
	}()

	s.tray.Run(func() {
		s.tray.SetStatus(string(tray.StatusIdle))
		log.Info("shell ready")
	})

	s.shutdown()
	return nil
}

// Quit asks the shell to exit. Safe to call from any goroutine.
func (s *Shell) Quit() {
	s.quitOnce.Do(func() {
		close(s.done)
		s.tray.Destroy()
	})
}

func (s *Shell) shutdown() {
	log.Info("shutting down")

	s.updater.StopAutoCheck()
	close(s.controlStop)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.bridgeSrv.Shutdown(ctx); err != nil {
		log.Warn("bridge shutdown", logging.KeyError, err)
	}
	s.bridge.StopAll()
	s.pool.StopAccepting()
	s.pool.Drain(ctx)

	s.windows.DestroyAll()
	s.center.Stop()

	if s.logClose != nil {
		s.logClose()
	}
	log.Info("shutdown complete")
}

func (s *Shell) checkForUpdates() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, err := s.updater.Check(ctx); err != nil {
		log.Warn("update check", logging.KeyError, err)
	}
}

func (s *Shell) onUpdateEvent(ev updater.Event) {
	switch ev.State {
	case updater.StateAvailable:
		rel := ev.Release
		n := notify.New("update_available", "Update Available",
			fmt.Sprintf("Version %s is ready to download", rel.Version))
		n.Type = notify.TypeInfo
		n.Icon = "update_available"
		n.ReplaceID = "update_available"
		if _, err := s.center.Show(n); err != nil {
			log.Warn("update notification", logging.KeyError, err)
		}
		s.tray.AddRecentActivity("Update available: " + rel.Version)
		if s.cfg.Updater.AutoDownload {
			go func() {
				if err := s.updater.Download(context.Background()); err != nil {
					log.Error("update download", logging.KeyError, err)
				}
			}()
		}
	case updater.StateDownloaded:
		n := notify.New("update_downloaded", "Update Ready",
			"Restart to apply the update")
		n.Type = notify.TypeSuccess
		n.Icon = "update_ready"
		n.Duration = 0
		n.ReplaceID = "update_downloaded"
		if _, err := s.center.Show(n); err != nil {
			log.Warn("update notification", logging.KeyError, err)
		}
		if s.cfg.Updater.AutoInstall {
			go func() {
				if err := s.updater.Install(); err != nil {
					log.Error("update install", logging.KeyError, err)
				}
			}()
		}
	case updater.StateError:
		log.Warn("updater error", logging.KeyError, ev.Err)
	}
}

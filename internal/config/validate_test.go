package config

import (
	"strings"
	"testing"
)

func errorsContain(errs []error, substr string) bool {
	for _, err := range errs {
		if strings.Contains(err.Error(), substr) {
			return true
		}
	}
	return false
}

func TestValidateDefaultsClean(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("default config should validate cleanly, got: %v", errs)
	}
}

func TestValidateBadUpdaterURL(t *testing.T) {
	cfg := Default()
	cfg.Updater.ServerURL = "ftp://updates.example.com"
	errs := cfg.Validate()
	if !errorsContain(errs, "scheme must be http or https") {
		t.Fatalf("expected scheme error, got: %v", errs)
	}
}

func TestValidateBadChannel(t *testing.T) {
	cfg := Default()
	cfg.Updater.Channel = "nightly"
	errs := cfg.Validate()
	if !errorsContain(errs, "updater.channel") {
		t.Fatalf("expected channel error, got: %v", errs)
	}
}

func TestValidateClampsMaxSimultaneous(t *testing.T) {
	cfg := Default()
	cfg.Notifications.MaxSimultaneous = 0
	errs := cfg.Validate()
	if !errorsContain(errs, "max_simultaneous") {
		t.Fatalf("expected clamp warning, got: %v", errs)
	}
	if cfg.Notifications.MaxSimultaneous != 1 {
		t.Fatalf("expected clamp to 1, got %d", cfg.Notifications.MaxSimultaneous)
	}
}

func TestValidateForcesLoopbackBridge(t *testing.T) {
	cfg := Default()
	cfg.Bridge.ListenAddr = "0.0.0.0:8765"
	errs := cfg.Validate()
	if !errorsContain(errs, "not loopback") {
		t.Fatalf("expected loopback error, got: %v", errs)
	}
	if cfg.Bridge.ListenAddr != "127.0.0.1:8765" {
		t.Fatalf("expected forced loopback addr, got %s", cfg.Bridge.ListenAddr)
	}
}

func TestValidateClampsWindowBounds(t *testing.T) {
	cfg := Default()
	cfg.Window.Width = 10
	cfg.Window.Height = 0
	cfg.Validate()
	if cfg.Window.Width != 200 || cfg.Window.Height != 200 {
		t.Fatalf("expected 200x200 clamp, got %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
}

func TestValidateBadLogSettings(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "verbose"
	cfg.Logging.Format = "xml"
	errs := cfg.Validate()
	if !errorsContain(errs, "logging.level") {
		t.Fatalf("expected log level error, got: %v", errs)
	}
	if !errorsContain(errs, "logging.format") {
		t.Fatalf("expected log format error, got: %v", errs)
	}
}

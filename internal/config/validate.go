package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
)

var validChannels = map[string]bool{
	"stable": true,
	"beta":   true,
	"alpha":  true,
	"dev":    true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks the config for invalid values and returns all errors found.
// Dangerous zero-values that would cause panics are clamped to safe defaults.
// Validation errors are logged as warnings but do not prevent startup.
func (c *Config) Validate() []error {
	var errs []error

	if c.Updater.ServerURL != "" {
		u, err := url.Parse(c.Updater.ServerURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("updater.server_url %q is not a valid URL: %w", c.Updater.ServerURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("updater.server_url scheme must be http or https, got %q", u.Scheme))
		}
	}

	if c.Updater.Channel != "" && !validChannels[strings.ToLower(c.Updater.Channel)] {
		errs = append(errs, fmt.Errorf("updater.channel %q is not valid (use stable, beta, alpha, dev)", c.Updater.Channel))
	}

	if c.Updater.CheckIntervalHours < 1 {
		errs = append(errs, fmt.Errorf("updater.check_interval_hours %d is below minimum 1, clamping", c.Updater.CheckIntervalHours))
		c.Updater.CheckIntervalHours = 1
	}

	if c.Bridge.ListenAddr != "" {
		host, _, err := net.SplitHostPort(c.Bridge.ListenAddr)
		if err != nil {
			errs = append(errs, fmt.Errorf("bridge.listen_addr %q is not host:port: %w", c.Bridge.ListenAddr, err))
		} else if host != "127.0.0.1" && host != "localhost" && host != "::1" {
			// The bridge carries renderer IPC; it must never bind a public interface.
			errs = append(errs, fmt.Errorf("bridge.listen_addr %q is not loopback, forcing 127.0.0.1", c.Bridge.ListenAddr))
			if _, port, splitErr := net.SplitHostPort(c.Bridge.ListenAddr); splitErr == nil {
				c.Bridge.ListenAddr = net.JoinHostPort("127.0.0.1", port)
			}
		}
	}

	// Clamp notification settings to safe range
	if c.Notifications.MaxSimultaneous < 1 {
		errs = append(errs, fmt.Errorf("notifications.max_simultaneous %d is below minimum 1, clamping", c.Notifications.MaxSimultaneous))
		c.Notifications.MaxSimultaneous = 1
	} else if c.Notifications.MaxSimultaneous > 20 {
		errs = append(errs, fmt.Errorf("notifications.max_simultaneous %d exceeds maximum 20, clamping", c.Notifications.MaxSimultaneous))
		c.Notifications.MaxSimultaneous = 20
	}

	if c.Notifications.HistoryLimit < 1 {
		errs = append(errs, fmt.Errorf("notifications.history_limit %d is below minimum 1, clamping", c.Notifications.HistoryLimit))
		c.Notifications.HistoryLimit = 1
	}

	if c.Notifications.MaxPerMinute < 0 {
		errs = append(errs, fmt.Errorf("notifications.max_per_minute %d is negative, clamping to 0 (unlimited)", c.Notifications.MaxPerMinute))
		c.Notifications.MaxPerMinute = 0
	}

	if c.Window.Width < 200 {
		errs = append(errs, fmt.Errorf("window.width %d is below minimum 200, clamping", c.Window.Width))
		c.Window.Width = 200
	}
	if c.Window.Height < 200 {
		errs = append(errs, fmt.Errorf("window.height %d is below minimum 200, clamping", c.Window.Height))
		c.Window.Height = 200
	}

	if c.Logging.Level != "" && !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("logging.level %q is not valid (use debug, info, warn, error)", c.Logging.Level))
	}

	if c.Logging.Format != "" && c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("logging.format %q is not valid (use text or json)", c.Logging.Format))
	}

	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}

	return errs
}

package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config is the desktop shell configuration, loaded from solvr.yaml.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Window        WindowConfig        `mapstructure:"window"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	Bridge        BridgeConfig        `mapstructure:"bridge"`
	Updater       UpdaterConfig       `mapstructure:"updater"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

type AppConfig struct {
	Name  string `mapstructure:"name"`
	Debug bool   `mapstructure:"debug"`
}

type WindowConfig struct {
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
	Resizable bool   `mapstructure:"resizable"`
	Show      bool   `mapstructure:"show"`
	Title     string `mapstructure:"title"`
}

type NotificationConfig struct {
	MaxSimultaneous int `mapstructure:"max_simultaneous"`
	QueueLimit      int `mapstructure:"queue_limit"`
	HistoryLimit    int `mapstructure:"history_limit"`
	MaxPerMinute    int `mapstructure:"max_per_minute"`
}

type BridgeConfig struct {
	ListenAddr string                    `mapstructure:"listen_addr"`
	Token      string                    `mapstructure:"token"`
	Services   map[string]map[string]any `mapstructure:"services"`
}

type UpdaterConfig struct {
	ServerURL          string `mapstructure:"server_url"`
	Channel            string `mapstructure:"channel"`
	CheckIntervalHours int    `mapstructure:"check_interval_hours"`
	AutoCheck          bool   `mapstructure:"auto_check"`
	AutoDownload       bool   `mapstructure:"auto_download"`
	AutoInstall        bool   `mapstructure:"auto_install"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

func Default() *Config {
	return &Config{
		App: AppConfig{
			Name: "AgentSOLVR",
		},
		Window: WindowConfig{
			Width:     1200,
			Height:    800,
			Resizable: true,
			Show:      true,
			Title:     "AgentSOLVR",
		},
		Notifications: NotificationConfig{
			MaxSimultaneous: 3,
			QueueLimit:      50,
			HistoryLimit:    100,
		},
		Bridge: BridgeConfig{
			ListenAddr: "127.0.0.1:8765",
		},
		Updater: UpdaterConfig{
			ServerURL:          "https://updates.agentsolvr.com",
			Channel:            "stable",
			CheckIntervalHours: 24,
			AutoCheck:          true,
			AutoDownload:       true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("solvr")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(Dir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SOLVR")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("app", cfg.App)
	viper.Set("window", cfg.Window)
	viper.Set("notifications", cfg.Notifications)
	viper.Set("bridge", cfg.Bridge)
	viper.Set("updater", cfg.Updater)
	viper.Set("logging", cfg.Logging)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(Dir(), "solvr.yaml")
		if err := os.MkdirAll(Dir(), 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	// Restrict config file to owner-only access (contains the bridge token)
	return os.Chmod(cfgPath, 0600)
}

// Dir returns the per-OS configuration directory for the shell.
func Dir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "AgentSOLVR")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "AgentSOLVR")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "agentsolvr")
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentsolvr/shell/internal/app"
	"github.com/agentsolvr/shell/internal/config"
	"github.com/agentsolvr/shell/internal/control"
	"github.com/agentsolvr/shell/internal/ipc"
)

var (
	version = "0.1.0"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "solvr-shell",
	Short: "AgentSOLVR Desktop Shell",
	Long:  `AgentSOLVR Shell - desktop shell with system tray, notification center, and backend bridge`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the shell",
	Run: func(cmd *cobra.Command, args []string) {
		runShell()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("AgentSOLVR Shell v%s\n", version)
	},
}

var statusVerbose bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show status of the running shell",
	Run: func(cmd *cobra.Command, args []string) {
		withClient(func(c *control.Client) error {
			res, err := c.Status(statusVerbose)
			if err != nil {
				return err
			}
			fmt.Printf("Version:  %s\n", res.Version)
			fmt.Printf("PID:      %d\n", res.PID)
			fmt.Printf("Uptime:   %ds\n", res.UptimeSeconds)
			fmt.Printf("Windows:  %d\n", res.Windows)
			if res.UpdateState != "" {
				fmt.Printf("Updates:  %s\n", res.UpdateState)
			}
			if statusVerbose {
				fmt.Printf("CPU:      %.1f%%\n", res.CPUPercent)
				fmt.Printf("Memory:   %.1f MB\n", res.MemoryMB)
				printJSONSection("Notifications", res.Notifications)
				printJSONSection("Services", res.Services)
			}
			return nil
		})
	},
}

var (
	notifyMessage  string
	notifyType     string
	notifyPriority int
	notifyGroup    string
)

var notifyCmd = &cobra.Command{
	Use:   "notify [title]",
	Short: "Send a notification through the running shell",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withClient(func(c *control.Client) error {
			res, err := c.Notify(ipc.NotifyRequest{
				Title:    args[0],
				Message:  notifyMessage,
				Type:     notifyType,
				Priority: notifyPriority,
				Group:    notifyGroup,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Queued: %s\n", res.ID)
			return nil
		})
	},
}

var (
	dismissID    string
	dismissGroup string
)

var dismissCmd = &cobra.Command{
	Use:   "dismiss",
	Short: "Dismiss a notification or group",
	Run: func(cmd *cobra.Command, args []string) {
		withClient(func(c *control.Client) error {
			res, err := c.Dismiss(ipc.DismissRequest{ID: dismissID, Group: dismissGroup})
			if err != nil {
				return err
			}
			fmt.Printf("Dismissed %d notification(s)\n", res.Count)
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Dismiss all notifications",
	Run: func(cmd *cobra.Command, args []string) {
		withClient(func(c *control.Client) error {
			res, err := c.Clear()
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %d notification(s)\n", res.Count)
			return nil
		})
	},
}

var dndDuration int

var dndCmd = &cobra.Command{
	Use:   "dnd [on|off]",
	Short: "Toggle do-not-disturb",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		enabled := args[0] == "on"
		if !enabled && args[0] != "off" {
			fmt.Fprintln(os.Stderr, "expected 'on' or 'off'")
			os.Exit(1)
		}
		withClient(func(c *control.Client) error {
			_, err := c.DoNotDisturb(ipc.DoNotDisturbRequest{
				Enabled:         enabled,
				DurationSeconds: dndDuration,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Do not disturb: %s\n", args[0])
			return nil
		})
	},
}

var updateChannel string

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check for updates",
	Run: func(cmd *cobra.Command, args []string) {
		withClient(func(c *control.Client) error {
			res, err := c.UpdateCheck(ipc.UpdateCheckRequest{Channel: updateChannel})
			if err != nil {
				return err
			}
			if res.Available == "" {
				fmt.Printf("Up to date (v%s)\n", res.Current)
				return nil
			}
			fmt.Printf("Update available: v%s -> v%s\n", res.Current, res.Available)
			if res.Notes != "" {
				fmt.Println(res.Notes)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is solvr.yaml in the config dir)")

	statusCmd.Flags().BoolVarP(&statusVerbose, "verbose", "v", false, "include resource usage and component details")
	notifyCmd.Flags().StringVarP(&notifyMessage, "message", "m", "", "notification body")
	notifyCmd.Flags().StringVarP(&notifyType, "type", "t", "", "notification type (info, success, warning, error)")
	notifyCmd.Flags().IntVarP(&notifyPriority, "priority", "p", 0, "priority 1-5")
	notifyCmd.Flags().StringVarP(&notifyGroup, "group", "g", "", "notification group")
	dismissCmd.Flags().StringVar(&dismissID, "id", "", "notification id")
	dismissCmd.Flags().StringVar(&dismissGroup, "group", "", "notification group")
	dndCmd.Flags().IntVar(&dndDuration, "duration", 0, "auto-disable after this many seconds")
	updateCmd.Flags().StringVar(&updateChannel, "channel", "", "release channel (stable, beta, alpha, dev)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(dismissCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(dndCmd)
	rootCmd.AddCommand(updateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runShell() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	for _, warn := range cfg.Validate() {
		fmt.Fprintf(os.Stderr, "config: %v\n", warn)
	}

	shell, err := app.New(cfg, version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := shell.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Shell exited with error: %v\n", err)
		os.Exit(1)
	}
}

func withClient(fn func(*control.Client) error) {
	key, err := ipc.LoadOrCreateKey(filepath.Join(config.Dir(), "control.key"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load control key: %v\n", err)
		os.Exit(1)
	}

	client, err := control.Dial(control.DefaultPath(config.Dir()), key)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer client.Close()

	if err := fn(client); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printJSONSection(title string, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	pretty, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return
	}
	fmt.Printf("%s:\n%s\n", title, pretty)
}

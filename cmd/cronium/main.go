package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/modoterra/cronium/internal/buildinfo"
	"github.com/modoterra/cronium/pkg/cmdparse"
	"github.com/modoterra/cronium/pkg/core"
	"github.com/modoterra/cronium/pkg/crontab"
	"github.com/modoterra/cronium/pkg/daemon/service"
	"github.com/modoterra/cronium/pkg/transport/uds"
	tuimodel "github.com/modoterra/cronium/pkg/tui/model"
)

var socketPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cronium",
	Short: "Cron job manager TUI",
	Long:  "Cronium is a TUI + daemon for defining, scheduling, and monitoring cron jobs, with syncing to the system crontab.",
	RunE:  runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "/tmp/cronium.sock", "daemon socket path")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(crontabCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(versionCmd)
}

// --- Root: TUI ---

func runTUI(_ *cobra.Command, _ []string) error {
	ensureDaemon()
	app := tuimodel.New(socketPath)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func ensureDaemon() {
	if _, err := os.Stat(socketPath); err == nil {
		return
	}
	cmd := exec.Command("croniumd")
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not start daemon: %v\n", err)
		return
	}
	for i := 0; i < 30; i++ {
		if _, err := os.Stat(socketPath); err == nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Fprintln(os.Stderr, "warning: could not start daemon, continuing anyway")
}

func dialDaemon() (*uds.Client, error) {
	client, err := uds.Dial(socketPath)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon at %s: %w", socketPath, err)
	}
	return client, nil
}

// request dials, sends a single request, and decodes the response.
func request(method string, data any, out any) error {
	client, err := dialDaemon()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := client.Request(ctx, method, data)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.UnmarshalData(out)
}

// mutate sends a mutation and turns a validation failure into an error.
func mutate(method string, data any) error {
	var resp uds.MutationResponse
	if err := request(method, data, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%s", strings.Join(resp.Errors, "; "))
	}
	return nil
}

// --- Ping ---

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check if daemon is running",
	RunE: func(_ *cobra.Command, _ []string) error {
		var pong uds.PingResponse
		if err := request(uds.MethodPing, nil, &pong); err != nil {
			return err
		}
		if pong.Pong {
			fmt.Println("pong ✓")
		}
		return nil
	},
}

// --- Version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("cronium %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}

// --- List ---

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs with their run states",
	RunE: func(_ *cobra.Command, _ []string) error {
		var jobs []core.JobView
		if err := request(uds.MethodListJobs, nil, &jobs); err != nil {
			return err
		}

		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(jobs)
		}

		if len(jobs) == 0 {
			fmt.Println("no jobs")
			return nil
		}

		fmt.Printf("%-20s %-14s %-8s %-18s %s\n", "NAME", "SCHEDULE", "STATUS", "NEXT RUN", "COMMAND")
		for _, job := range jobs {
			status := string(job.Run.Status)
			if job.Disabled {
				status = "disabled"
			}
			next := "-"
			if job.Run.NextRun != nil {
				next = job.Run.NextRun.Format("2006-01-02 15:04")
			}
			fmt.Printf("%-20s %-14s %-8s %-18s %s\n", job.Name, job.Schedule, status, next, job.Command)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
}

// --- Add ---

var (
	addDescription string
	addDir         string
)

var addCmd = &cobra.Command{
	Use:   "add <name> <schedule> <command>",
	Short: "Add a job",
	Long:  `Example: cronium add backup "0 3 * * *" "./backup.sh >> /var/log/backup.log 2>&1"`,
	Args:  cobra.ExactArgs(3),
	RunE: func(_ *cobra.Command, args []string) error {
		job := core.Job{
			Name:        args[0],
			Schedule:    args[1],
			Command:     args[2],
			Description: addDescription,
			Dir:         addDir,
		}
		if files := cmdparse.LogFiles(job.Command); len(files) > 0 {
			job.LogFile = files[0]
		}

		if err := mutate(uds.MethodCreateJob, uds.SaveJobRequest{Job: job}); err != nil {
			return err
		}
		fmt.Printf("added %s ✓\n", job.Name)
		if job.LogFile != "" {
			fmt.Printf("  log file: %s\n", job.LogFile)
		}
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addDescription, "description", "", "job description")
	addCmd.Flags().StringVar(&addDir, "dir", "", "working directory for the job")
}

// --- Remove ---

var rmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Remove a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if err := mutate(uds.MethodDeleteJob, uds.JobRequest{Name: args[0]}); err != nil {
			return err
		}
		fmt.Printf("removed %s ✓\n", args[0])
		return nil
	},
}

// --- Enable / Disable ---

var enableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a disabled job",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return setEnabled(args[0], true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a job without removing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return setEnabled(args[0], false)
	},
}

func setEnabled(name string, enabled bool) error {
	var view core.JobView
	if err := request(uds.MethodGetJob, uds.JobRequest{Name: name}, &view); err != nil {
		return err
	}
	if view.Enabled() == enabled {
		fmt.Printf("%s is already %s\n", name, enabledWord(enabled))
		return nil
	}
	if err := mutate(uds.MethodToggleJob, uds.JobRequest{Name: name}); err != nil {
		return err
	}
	fmt.Printf("%s %s ✓\n", name, enabledWord(enabled))
	return nil
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// --- Run ---

var runCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a job immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if err := mutate(uds.MethodRunJob, uds.JobRequest{Name: args[0]}); err != nil {
			return err
		}
		fmt.Printf("run requested for %s ✓\n", args[0])
		return nil
	},
}

// --- Sync ---

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Install the managed jobs into the system crontab",
	RunE: func(_ *cobra.Command, _ []string) error {
		var resp uds.SyncResponse
		if err := request(uds.MethodSyncCrontab, nil, &resp); err != nil {
			return err
		}
		if !resp.OK {
			return fmt.Errorf("sync failed: %s", resp.Reason)
		}
		fmt.Printf("installed %d jobs to system crontab ✓\n", resp.Jobs)
		return nil
	},
}

// --- Crontab file ---

var crontabCmd = &cobra.Command{
	Use:   "crontab",
	Short: "Manage the cronium.yaml job file",
}

var crontabInitOutput string

var crontabInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a starter cronium.yaml",
	RunE: func(_ *cobra.Command, _ []string) error {
		path := crontabInitOutput
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("cannot create directory: %w", err)
		}

		ct := crontab.Starter()
		if err := crontab.Save(ct, path); err != nil {
			return err
		}
		fmt.Printf("Generated %s with %d jobs\n", path, len(ct.Jobs))
		for name, job := range ct.Jobs {
			fmt.Printf("  %s (%s)\n", name, job.Schedule)
		}
		return nil
	},
}

var crontabValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a cronium.yaml job file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := "cronium.yaml"
		if len(args) > 0 {
			path = args[0]
		}

		ct, err := crontab.Load(path)
		if err != nil {
			return err
		}

		errs := crontab.Validate(ct)
		if len(errs) == 0 {
			fmt.Printf("%s: valid (%d jobs)\n", path, len(ct.Jobs))
			return nil
		}

		fmt.Fprintf(os.Stderr, "%s: %d error(s)\n", path, len(errs))
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  • %s\n", e)
		}
		os.Exit(1)
		return nil
	},
}

func init() {
	crontabInitCmd.Flags().StringVar(&crontabInitOutput, "output", "cronium.yaml", "output file path")
	crontabCmd.AddCommand(crontabInitCmd)
	crontabCmd.AddCommand(crontabValidateCmd)
}

// --- Daemon ---

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the croniumd daemon",
}

var daemonRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start daemon in foreground (for debugging)",
	Long:  "Normally the TUI auto-spawns the daemon. Use this to run it manually.",
	RunE: func(_ *cobra.Command, _ []string) error {
		args := []string{"--socket", socketPath}
		if daemonCrontabFlag != "" {
			args = append(args, "--crontab", daemonCrontabFlag)
		}
		cmd := exec.Command("croniumd", args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	},
}

var daemonCrontabFlag string

var daemonInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install croniumd as a systemd user service",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := service.Install(); err != nil {
			return err
		}
		fmt.Println("croniumd service installed and started ✓")
		return nil
	},
}

var daemonUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop and remove the croniumd systemd user service",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := service.Uninstall(); err != nil {
			return err
		}
		fmt.Println("croniumd service removed ✓")
		return nil
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon socket and service status",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(service.Status(socketPath))
	},
}

func init() {
	daemonRunCmd.Flags().StringVar(&daemonCrontabFlag, "crontab", "", "path to cronium.yaml")
	daemonCmd.AddCommand(daemonRunCmd)
	daemonCmd.AddCommand(daemonInstallCmd)
	daemonCmd.AddCommand(daemonUninstallCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
}

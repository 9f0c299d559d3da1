package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"

	"github.com/modoterra/cronium/internal/buildinfo"
	"github.com/modoterra/cronium/pkg/core"
	"github.com/modoterra/cronium/pkg/crontab"
	"github.com/modoterra/cronium/pkg/daemon"
	"github.com/modoterra/cronium/pkg/logtail"
	"github.com/modoterra/cronium/pkg/transport/uds"
)

const defaultSocket = "/tmp/cronium.sock"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("croniumd %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
		return
	}

	socketPath := flag.String("socket", defaultSocket, "unix socket path")
	crontabPath := flag.String("crontab", defaultCrontabPath(), "path to cronium.yaml")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		sd.SdNotify(false, sd.SdNotifyStopping)
		cancel()
	}()

	d := daemon.New(*socketPath, logger)
	defer d.Shutdown()

	// Job output is broadcast to all connected clients as it happens.
	runner := daemon.NewShellRunner(logger, func(line core.RunLine) {
		evt, err := uds.NewEvent(uds.EventRunsLine, line)
		if err != nil {
			return
		}
		d.Server().Broadcast(evt)
	})

	sched := daemon.NewScheduler(ctx, runner, logger)
	d.SetScheduler(sched)
	d.SetTailer(logtail.New(logger))

	d.LoadCrontab(loadOrInit(*crontabPath, logger))
	sched.Start()
	defer sched.Stop()

	statusLoop := daemon.NewStatusLoop(d, time.Second, logger)
	go statusLoop.Run(ctx)

	notifyReady(logger)

	logger.Info("starting croniumd", "version", buildinfo.Version, "socket", *socketPath)
	if err := d.Run(ctx); err != nil {
		logger.Error("daemon error", "err", err)
		os.Exit(1)
	}
}

func defaultCrontabPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "cronium.yaml"
	}
	return filepath.Join(configDir, "cronium", "cronium.yaml")
}

// loadOrInit loads the crontab file, falling back to an empty store when
// the file does not exist yet. Invalid entries are logged; the scheduler
// rejects them individually when jobs are registered.
func loadOrInit(path string, logger *slog.Logger) *crontab.Crontab {
	ct, err := crontab.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("crontab load failed", "path", path, "err", err)
		}
		logger.Info("starting with empty crontab", "path", path)
		os.MkdirAll(filepath.Dir(path), 0o755)
		return crontab.Empty(path)
	}

	for _, e := range crontab.Validate(ct) {
		logger.Warn("crontab validation", "err", e)
	}
	return ct
}

// notifyReady signals readiness to systemd and keeps the watchdog fed
// when one is configured. Both are no-ops outside systemd.
func notifyReady(logger *slog.Logger) {
	if _, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		logger.Warn("sd_notify", "err", err)
	}

	interval, err := sd.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for range ticker.C {
			sd.SdNotify(false, sd.SdNotifyWatchdog)
		}
	}()
}

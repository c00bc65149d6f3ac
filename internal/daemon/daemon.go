// Package daemon runs the dispatch pipeline on an in-process cron
// schedule, for hosts without an external periodic runner. Run-once mode
// stays the normative deployment; this is the self-triggering variant.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"dingtask/internal/config"
	logx "dingtask/pkg/logx"
)

// RunFunc executes one dispatch run with the given (possibly reloaded)
// config.
type RunFunc func(ctx context.Context, cfg *config.Config)

// Run blocks until ctx is cancelled, triggering runOnce on the config's
// cron schedule. The config file is watched for changes; a valid reload
// swaps the config (and reschedules if the cron spec changed), an invalid
// one is logged and ignored.
func Run(ctx context.Context, configPath string, initial *config.Config, log logx.Logger, runOnce RunFunc) error {
	if initial.Daemon == nil || !initial.Daemon.Enabled {
		return fmt.Errorf("daemon: not enabled in config")
	}

	var (
		mu  sync.Mutex
		cfg = initial
	)
	current := func() *config.Config {
		mu.Lock()
		defer mu.Unlock()
		return cfg
	}

	warnShortWindow(log, initial)

	c := cron.New()
	trigger := func() { runOnce(ctx, current()) }
	entryID, err := c.AddFunc(initial.Daemon.Schedule, trigger)
	if err != nil {
		return fmt.Errorf("daemon: schedule %q: %w", initial.Daemon.Schedule, err)
	}
	c.Start()
	log.Info("daemon started", logx.String("schedule", initial.Daemon.Schedule), logx.String("config", configPath))

	// Let systemd know we're up; a no-op outside a systemd unit.
	if ok, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		log.Warn("sd_notify failed", logx.Err(err))
	} else if ok {
		log.Debug("systemd notified ready")
	}
	stopWatchdog := startWatchdog(ctx, log)
	defer stopWatchdog()

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- config.Watch(ctx, configPath, log, func(nc *config.Config) {
			if nc.Daemon == nil || !nc.Daemon.Enabled {
				log.Warn("reloaded config disables daemon; keeping current schedule (restart to apply)")
				nc.Daemon = current().Daemon
			}

			mu.Lock()
			old := cfg
			cfg = nc
			mu.Unlock()

			warnShortWindow(log, nc)

			if nc.Daemon.Schedule != old.Daemon.Schedule {
				id, err := c.AddFunc(nc.Daemon.Schedule, trigger)
				if err != nil {
					log.Warn("reloaded schedule invalid; keeping previous", logx.String("schedule", nc.Daemon.Schedule), logx.Err(err))
					return
				}
				c.Remove(entryID)
				entryID = id
				log.Info("schedule updated", logx.String("schedule", nc.Daemon.Schedule))
			}
		})
	}()

	<-ctx.Done()
	_, _ = sd.SdNotify(false, sd.SdNotifyStopping)

	// Let an in-flight run finish; its deliveries already observe ctx.
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		log.Warn("daemon stop timed out waiting for running job")
	}
	return <-watchDone
}

// warnShortWindow flags a trigger interval longer than the due window:
// tasks scheduled between two triggers would expire unseen.
func warnShortWindow(log logx.Logger, cfg *config.Config) {
	sched, err := cron.ParseStandard(cfg.Daemon.Schedule)
	if err != nil {
		return
	}
	n1 := sched.Next(time.Now())
	interval := sched.Next(n1).Sub(n1)
	if interval > cfg.Window() {
		log.Warn("trigger interval exceeds due window; timed tasks may expire unseen",
			logx.Duration("interval", interval),
			logx.Duration("window", cfg.Window()),
		)
	}
}

// startWatchdog pings systemd's watchdog at half its interval when one is
// configured on the unit.
func startWatchdog(ctx context.Context, log logx.Logger) func() {
	interval, err := sd.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return func() {}
	}

	tick := time.NewTicker(interval / 2)
	done := make(chan struct{})
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-tick.C:
				_, _ = sd.SdNotify(false, sd.SdNotifyWatchdog)
			}
		}
	}()
	log.Debug("systemd watchdog enabled", logx.Duration("interval", interval))

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

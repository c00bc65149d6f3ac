package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dingtask/internal/config"
	"dingtask/internal/content"
	"dingtask/internal/daemon"
	"dingtask/internal/dingtalk"
	"dingtask/internal/dispatch"
	"dingtask/internal/render"
	"dingtask/internal/schedule"
	"dingtask/internal/task"
	logx "dingtask/pkg/logx"
)

func main() {
	var (
		cfgPath    string
		dryRun     bool
		daemonMode bool
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml/json")
	flag.BoolVar(&dryRun, "dry-run", false, "select and render tasks but deliver nothing")
	flag.BoolVar(&daemonMode, "daemon", false, "self-trigger on daemon.schedule instead of running once")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Bootstrap logger: config errors happen before the configured
	// logger can exist.
	boot := logx.NewConsole("info")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		boot.Error("invalid configuration", logx.String("config", cfgPath), logx.Err(err))
		os.Exit(1)
	}

	log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	defer log.Close()

	if daemonMode {
		if cfg.Daemon == nil {
			cfg.Daemon = &config.DaemonConfig{Schedule: config.DefaultSchedule}
		}
		cfg.Daemon.Enabled = true

		err := daemon.Run(ctx, cfgPath, cfg, log, func(ctx context.Context, cfg *config.Config) {
			// In daemon mode a failed run is not fatal: the next
			// trigger gets a fresh chance (and a fresh task list).
			if _, err := runOnce(ctx, cfg, log, dryRun); err != nil {
				log.Error("run failed", logx.Err(err))
			}
		})
		if err != nil {
			log.Error("daemon failed", logx.Err(err))
			os.Exit(1)
		}
		return
	}

	if _, err := runOnce(ctx, cfg, log, dryRun); err != nil {
		log.Error("run failed", logx.Err(err))
		os.Exit(1)
	}
}

// runOnce executes one dispatch run. The returned error covers the
// configuration class only (unreadable task list, unusable webhook);
// per-task failures are inside the summary.
func runOnce(ctx context.Context, cfg *config.Config, log logx.Logger, dryRun bool) (dispatch.Summary, error) {
	now := time.Now()

	tasks, err := task.LoadFile(cfg.Tasks.Path)
	if err != nil {
		return dispatch.Summary{}, err
	}

	tpl, err := render.LoadTemplate(cfg.Tasks.Template)
	if err != nil {
		return dispatch.Summary{}, err
	}

	fetchTimeout, err := cfg.FetchTimeout()
	if err != nil {
		return dispatch.Summary{}, err
	}
	deliveryTimeout, err := cfg.DeliveryTimeout()
	if err != nil {
		return dispatch.Summary{}, err
	}

	var deliver dispatch.Deliverer
	if dryRun {
		deliver = dispatch.Preview{Log: log}
	} else {
		client, err := dingtalk.New(dingtalk.Options{
			WebhookURL: cfg.Webhook.URL,
			Secret:     cfg.Webhook.Secret,
			Timeout:    deliveryTimeout,
			RatePerMin: cfg.Webhook.RatePerMin,
			Log:        log,
		})
		if err != nil {
			return dispatch.Summary{}, err
		}
		deliver = client
	}

	d := &dispatch.Dispatcher{
		Selector: schedule.Selector{Window: cfg.Window()},
		Resolver: content.Default(content.NewHTTPFetcher(fetchTimeout), log),
		Template: tpl,
		Deliver:  deliver,
		Log:      log,
	}
	return d.Run(ctx, tasks, now), nil
}

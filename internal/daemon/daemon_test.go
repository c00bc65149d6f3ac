package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dingtask/internal/config"
	logx "dingtask/pkg/logx"
)

func TestRunRequiresEnabledDaemon(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	if err := Run(context.Background(), "config.yaml", cfg, logx.Nop(), nil); err == nil {
		t.Fatal("expected error when daemon is not enabled")
	}

	cfg.Daemon = &config.DaemonConfig{Enabled: false}
	if err := Run(context.Background(), "config.yaml", cfg, logx.Nop(), nil); err == nil {
		t.Fatal("expected error when daemon is disabled")
	}
}

func TestRunTriggersAndReloads(t *testing.T) {
	for _, n := range []string{config.EnvWebhookURL, config.EnvSecret, config.EnvWebhookURLLegacy, config.EnvSecretLegacy} {
		t.Setenv(n, "")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	layout := "webhook:\n  url: https://example.com/hook\n  secret: s\nrun:\n  window_minutes: %d\ndaemon:\n  enabled: true\n  schedule: \"%s\"\n"
	writeConfig := func(window int, schedule string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(fmt.Sprintf(layout, window, schedule)), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	writeConfig(15, "@every 50ms")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	windows := make(chan int, 64)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, path, cfg, logx.Nop(), func(_ context.Context, c *config.Config) {
			select {
			case windows <- c.Run.WindowMinutes:
			default:
			}
		})
	}()

	waitForWindow := func(want int) {
		t.Helper()
		deadline := time.After(8 * time.Second)
		for {
			select {
			case w := <-windows:
				if w == want {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for runs seeing window %d", want)
			}
		}
	}

	// Initial schedule fires with the initial config.
	waitForWindow(15)

	// Rewriting the file swaps both the run config and the cron
	// schedule in place; later triggers must see the new window.
	writeConfig(30, "@every 25ms")
	waitForWindow(30)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

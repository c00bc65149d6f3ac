package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// clearEnv shields Load tests from webhook credentials the invoking shell
// may export.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, n := range []string{EnvWebhookURL, EnvSecret, EnvWebhookURLLegacy, EnvSecretLegacy} {
		t.Setenv(n, "")
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
webhook:
  url: https://oapi.dingtalk.com/robot/send?access_token=abc
  secret: SEC123
run:
  window_minutes: 30
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Webhook.Secret != "SEC123" {
		t.Fatalf("Secret = %q, want SEC123", cfg.Webhook.Secret)
	}
	if cfg.Run.WindowMinutes != 30 {
		t.Fatalf("WindowMinutes = %d, want 30", cfg.Run.WindowMinutes)
	}
	if got := cfg.Window(); got != 30*time.Minute {
		t.Fatalf("Window() = %v, want 30m", got)
	}
	if cfg.Tasks.Path != "./tasks.json" {
		t.Fatalf("Tasks.Path default = %q", cfg.Tasks.Path)
	}
	if cfg.Webhook.RatePerMin != DefaultRatePerMin {
		t.Fatalf("RatePerMin default = %d", cfg.Webhook.RatePerMin)
	}
}

func TestLoadMissingSecret(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "webhook:\n  url: https://example.com/robot/send\n")

	_, err := Load(path)
	if !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("Load error = %v, want ErrMissingSecret", err)
	}
}

func TestLoadMissingWebhook(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "webhook:\n  secret: SEC123\n")

	_, err := Load(path)
	if !errors.Is(err, ErrMissingWebhook) {
		t.Fatalf("Load error = %v, want ErrMissingWebhook", err)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
webhook:
  url: https://example.com/from-file
  secret: file-secret
`)
	t.Setenv(EnvWebhookURL, "https://example.com/from-env")
	t.Setenv(EnvSecret, "env-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Webhook.URL != "https://example.com/from-env" {
		t.Fatalf("URL = %q, want env value", cfg.Webhook.URL)
	}
	if cfg.Webhook.Secret != "env-secret" {
		t.Fatalf("Secret = %q, want env value", cfg.Webhook.Secret)
	}
}

func TestLoadLocalOverrideWins(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
webhook:
  url: https://example.com/from-file
  secret: file-secret
`)
	writeFile(t, filepath.Join(dir, "config.local.yaml"), `
webhook:
  secret: local-secret
`)
	t.Setenv(EnvSecret, "env-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	// Override file beats env; fields it omits keep their merged value.
	if cfg.Webhook.Secret != "local-secret" {
		t.Fatalf("Secret = %q, want local-secret", cfg.Webhook.Secret)
	}
	if cfg.Webhook.URL != "https://example.com/from-file" {
		t.Fatalf("URL = %q, want file value", cfg.Webhook.URL)
	}
}

func TestLoadEnvOnly(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv(EnvWebhookURL, "https://example.com/robot/send")
	t.Setenv(EnvSecret, "env-secret")

	cfg, err := Load(filepath.Join(dir, "nope.yaml"))
	if err != nil {
		t.Fatalf("Load with absent file: %v", err)
	}
	if cfg.Webhook.Secret != "env-secret" {
		t.Fatalf("Secret = %q", cfg.Webhook.Secret)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
webhook:
  url: https://example.com/robot/send
  secret: SEC123
webhok_typo: true
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidateRejectsBadCron(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Webhook: WebhookConfig{URL: "https://example.com/x", Secret: "s"},
		Daemon:  &DaemonConfig{Enabled: true, Schedule: "not a cron"},
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestValidateRejectsBadDuration(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Webhook: WebhookConfig{URL: "https://example.com/x", Secret: "s", Timeout: "soon"},
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestDurationFields(t *testing.T) {
	t.Parallel()
	base := WebhookConfig{URL: "https://example.com/x", Secret: "s"}

	cfg := &Config{Webhook: base}
	applyDefaults(cfg)
	if d, err := cfg.DeliveryTimeout(); err != nil || d != 10*time.Second {
		t.Fatalf("default DeliveryTimeout = %v, %v", d, err)
	}

	cfg = &Config{Webhook: base}
	cfg.Webhook.Timeout = "0s"
	if d, err := cfg.DeliveryTimeout(); err != nil || d != 10*time.Second {
		t.Fatalf("zero DeliveryTimeout = %v, %v, want default", d, err)
	}

	cfg = &Config{Webhook: base}
	cfg.Webhook.Timeout = "-5s"
	applyDefaults(cfg)
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestLocalOverridePath(t *testing.T) {
	t.Parallel()
	got := localOverridePath("/etc/dingtask/config.yaml")
	want := "/etc/dingtask/config.local.yaml"
	if got != want {
		t.Fatalf("localOverridePath = %q, want %q", got, want)
	}
}

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
)

// Env var names. The DINGTASK_-prefixed names win; the bare names are kept
// for drop-in compatibility with runners that already export WEBHOOK_URL
// and SECRET.
const (
	EnvWebhookURL       = "DINGTASK_WEBHOOK_URL"
	EnvSecret           = "DINGTASK_SECRET"
	EnvWebhookURLLegacy = "WEBHOOK_URL"
	EnvSecretLegacy     = "SECRET"
)

// Load assembles the effective config for one run.
//
// Precedence, lowest to highest:
//  1. built-in defaults
//  2. the config file at path (missing file is fine: env may carry
//     everything a minimal deployment needs)
//  3. environment variables (webhook URL and secret)
//  4. the sibling local-override file (config.local.yaml next to
//     config.yaml), when present
//
// Validation runs on the merged result; a config error here is fatal to
// the run, nothing is dispatched without a usable webhook and secret.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if err := decodeFile(path, cfg); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if lp := localOverridePath(path); lp != "" {
		if err := decodeFile(lp, cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config override %s: %w", lp, err)
			}
		}
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeFile strict-decodes a YAML or JSON config file into cfg. Fields
// absent from the file keep whatever value cfg already holds, which is what
// makes partial override files work.
func decodeFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	jb, err := coerceToJSONBytes(path, b)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid config: trailing data")
		}
		return err
	}
	return nil
}

// localOverridePath maps config.yaml -> config.local.yaml (same directory,
// same extension).
func localOverridePath(path string) string {
	if path == "" {
		return ""
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func applyEnv(cfg *Config) {
	if v := firstEnv(EnvWebhookURL, EnvWebhookURLLegacy); v != "" {
		cfg.Webhook.URL = v
	}
	if v := firstEnv(EnvSecret, EnvSecretLegacy); v != "" {
		cfg.Webhook.Secret = v
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(os.Getenv(n)); v != "" {
			return v
		}
	}
	return ""
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Tasks.Path) == "" {
		cfg.Tasks.Path = "./tasks.json"
	}
	if cfg.Run.WindowMinutes == 0 {
		cfg.Run.WindowMinutes = DefaultWindowMinutes
	}
	if cfg.Webhook.RatePerMin <= 0 {
		cfg.Webhook.RatePerMin = DefaultRatePerMin
	}
	if cfg.Daemon != nil && strings.TrimSpace(cfg.Daemon.Schedule) == "" {
		cfg.Daemon.Schedule = DefaultSchedule
	}
}

// Validate checks the merged config before any task is processed.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Webhook.URL) == "" {
		return ErrMissingWebhook
	}
	if strings.TrimSpace(c.Webhook.Secret) == "" {
		return ErrMissingSecret
	}

	u, err := url.Parse(c.Webhook.URL)
	if err != nil {
		return fmt.Errorf("webhook.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("webhook.url: unsupported scheme %q", u.Scheme)
	}

	if c.Run.WindowMinutes < 0 {
		return fmt.Errorf("run.window_minutes: must be >= 0")
	}
	if _, err := c.DeliveryTimeout(); err != nil {
		return err
	}
	if _, err := c.FetchTimeout(); err != nil {
		return err
	}

	if c.Daemon != nil && c.Daemon.Enabled {
		if _, err := cron.ParseStandard(c.Daemon.Schedule); err != nil {
			return fmt.Errorf("daemon.schedule: invalid cron spec %q: %w", c.Daemon.Schedule, err)
		}
	}
	return nil
}

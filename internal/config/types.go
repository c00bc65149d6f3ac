package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingWebhook = errors.New("webhook.url is required")
	ErrMissingSecret  = errors.New("webhook.secret is required")
)

type Config struct {
	Webhook WebhookConfig `json:"webhook"`
	Tasks   TasksConfig   `json:"tasks"`
	Run     RunConfig     `json:"run"`
	Logging LoggingConfig `json:"logging"`

	// Daemon makes the process self-triggering instead of relying on an
	// external cron runner. If omitted, the binary runs once and exits.
	Daemon *DaemonConfig `json:"daemon,omitempty"`
}

type WebhookConfig struct {
	// URL is the DingTalk custom-robot webhook base URL. The freshness
	// signature is appended to it per delivery attempt.
	URL    string `json:"url"`
	Secret string `json:"secret"`

	// Timeout is a Go duration string bounding one delivery POST.
	Timeout string `json:"timeout,omitempty"`

	// RatePerMin caps outbound messages. DingTalk robots are throttled
	// at 20 msg/min server-side; staying under it avoids silent drops.
	RatePerMin int `json:"rate_per_min,omitempty"`
}

type TasksConfig struct {
	// Path to the task list file (JSON array, /* */ comments allowed).
	Path string `json:"path,omitempty"`

	// Template is an optional layout template file. Absent file selects
	// the built-in layout.
	Template string `json:"template,omitempty"`
}

// RunConfig controls one dispatch run.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type RunConfig struct {
	// WindowMinutes is the tolerance window after a task's scheduled
	// time during which it still counts as due. Must be at least the
	// external trigger's interval to guarantee at-least-once delivery.
	// Omitted or zero selects the default (15); there is no way to
	// configure a zero window.
	WindowMinutes int `json:"window_minutes,omitempty"`

	// FetchTimeout bounds one external-fetch content read.
	FetchTimeout string `json:"fetch_timeout,omitempty"`
}

// DaemonConfig controls the optional long-lived mode.
type DaemonConfig struct {
	Enabled bool `json:"enabled"`

	// Schedule is a standard 5-field cron expression evaluated in local
	// time. Defaults to every minute.
	Schedule string `json:"schedule,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console *bool       `json:"console,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

const (
	DefaultWindowMinutes = 15
	DefaultRatePerMin    = 20
	DefaultSchedule      = "* * * * *"

	defaultTimeout      = 10 * time.Second
	defaultFetchTimeout = 10 * time.Second
)

// DeliveryTimeout returns webhook.timeout with the default applied.
func (c *Config) DeliveryTimeout() (time.Duration, error) {
	return durationOrDefault("webhook.timeout", c.Webhook.Timeout, defaultTimeout)
}

// FetchTimeout returns run.fetch_timeout with the default applied.
func (c *Config) FetchTimeout() (time.Duration, error) {
	return durationOrDefault("run.fetch_timeout", c.Run.FetchTimeout, defaultFetchTimeout)
}

// durationOrDefault reads a Go duration string; empty or "0s" selects the
// default. Timeouts here are always bounded, so unlike a generic duration
// field there is no "disabled" zero.
func durationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}

// Window returns the tolerance window as a duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.Run.WindowMinutes) * time.Minute
}

// ConsoleEnabled treats an omitted logging.console as true: a run invoked
// by cron should say what it did even with a zero config file.
func (c *Config) ConsoleEnabled() bool {
	if c.Logging.Console == nil {
		return true
	}
	return *c.Logging.Console
}

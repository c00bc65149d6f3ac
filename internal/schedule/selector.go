// Package schedule decides which tasks are due at a given instant.
//
// There is no persisted sent-state between runs: whether a timed task is
// "not yet", "current", or "already handled" is judged purely from how
// many minutes have elapsed past its scheduled time. The tolerance window
// must be at least the external trigger's interval for at-least-once
// delivery; a second run inside the same window re-sends, which is an
// accepted trade-off of the stateless design.
package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"dingtask/internal/task"
)

// Reason classifies why a task was skipped.
type Reason string

const (
	ReasonDateMismatch Reason = "date_mismatch"
	ReasonFuture       Reason = "future"
	ReasonExpired      Reason = "expired"
	ReasonBadDate      Reason = "bad_date"
	ReasonBadTime      Reason = "bad_time"
)

// Skip is a per-task diagnostic for a task that was not selected.
type Skip struct {
	Task   task.Task
	Reason Reason
	Detail string
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)

// ParseHHMM parses a clock time with hour:minute granularity.
func ParseHHMM(raw string) (hour, minute int, err error) {
	m := reHHMM.FindStringSubmatch(raw)
	if len(m) != 3 {
		return 0, 0, fmt.Errorf("invalid time %q (use HH:MM like '09:00')", raw)
	}
	for i := 0; i < len(m[1]); i++ {
		hour = hour*10 + int(m[1][i]-'0')
	}
	minute = int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", raw)
	}
	if minute > 59 {
		return 0, 0, fmt.Errorf("invalid minutes in %q", raw)
	}
	return hour, minute, nil
}

// Selector applies the due-task window to a task list.
type Selector struct {
	// Window is how long past its scheduled time a timed task stays
	// due. Zero leaves a timed task due only when now is exactly its
	// scheduled instant; config treats a zero window as unset and
	// applies the default, so a zero here only arises when a Selector
	// is constructed directly.
	Window time.Duration
}

// Select partitions tasks into the due subset and per-task skips, judged
// against the single canonical now. The caller must pass now already in
// the deployment's canonical zone; no conversion happens here, date
// equality is taken at face value.
//
// A malformed date or time skips that task with a diagnostic; it is never
// fatal to the run.
func (s Selector) Select(tasks []task.Task, now time.Time) (due []task.Task, skips []Skip) {
	for _, t := range tasks {
		day, err := t.ParseDate(now.Location())
		if err != nil {
			skips = append(skips, Skip{Task: t, Reason: ReasonBadDate, Detail: err.Error()})
			continue
		}

		if day.Year() != now.Year() || day.YearDay() != now.YearDay() {
			skips = append(skips, Skip{Task: t, Reason: ReasonDateMismatch, Detail: "scheduled for " + t.Date})
			continue
		}

		// Whole-day task: date match alone makes it due.
		if !t.HasTime() {
			due = append(due, t)
			continue
		}

		hh, mm, err := ParseHHMM(t.Time)
		if err != nil {
			skips = append(skips, Skip{Task: t, Reason: ReasonBadTime, Detail: err.Error()})
			continue
		}

		at := time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, now.Location())
		elapsed := now.Sub(at)
		switch {
		case elapsed < 0:
			skips = append(skips, Skip{
				Task:   t,
				Reason: ReasonFuture,
				Detail: fmt.Sprintf("due in %s", (-elapsed).Round(time.Second)),
			})
		case elapsed > s.Window:
			skips = append(skips, Skip{
				Task:   t,
				Reason: ReasonExpired,
				Detail: fmt.Sprintf("scheduled %s ago, window is %s", elapsed.Round(time.Second), s.Window),
			})
		default:
			due = append(due, t)
		}
	}
	return due, skips
}

// String makes skip reasons readable in log lines.
func (sk Skip) String() string {
	b := strings.TrimSpace(sk.Task.Label())
	if sk.Detail == "" {
		return fmt.Sprintf("%s: %s", b, sk.Reason)
	}
	return fmt.Sprintf("%s: %s (%s)", b, sk.Reason, sk.Detail)
}

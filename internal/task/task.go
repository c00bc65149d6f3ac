// Package task defines the scheduled-notification model and loads the
// task list file.
//
// The task list is a JSON array. Because it is edited by hand, /* */
// block comments are allowed anywhere outside string literals and are
// stripped before decoding; comments do not nest.
package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Content-source kinds. Fetch also answers to "external-fetch" in task
// files; KindFetch is the canonical registry key.
const (
	KindStatic = "static"
	KindFetch  = "fetch"
	KindFile   = "file"
)

const dateLayout = "2006-01-02"

// Task is one scheduled notification definition. Tasks are loaded fresh
// at the start of every run and are immutable for its duration; nothing
// here carries run-to-run identity or "sent" state.
type Task struct {
	// Date is the calendar day the task fires on, as YYYY-MM-DD.
	Date string `json:"date"`

	// Time is an optional HH:MM clock time. A task without one is due
	// for the whole day.
	Time string `json:"time,omitempty"`

	// Kind selects the content source; empty means static.
	Kind string `json:"kind,omitempty"`

	// Content is the message body for the static kind.
	Content string `json:"content,omitempty"`

	// Source is the locator used by the fetch and file kinds (a URL or
	// a path, respectively).
	Source string `json:"source,omitempty"`

	Title string `json:"title,omitempty"`

	AtMobiles []string `json:"at_mobiles,omitempty"`
	AtUserIDs []string `json:"at_user_ids,omitempty"`
	AtAll     bool     `json:"at_all,omitempty"`
}

// UnmarshalJSON accepts "is_at_all" as an alias for "at_all" so task
// files written for earlier webhook notifiers load unchanged. Unknown
// fields are still rejected: the outer strict decoder delegates whole
// records here, so the strictness has to be re-applied.
func (t *Task) UnmarshalJSON(b []byte) error {
	type plain Task
	aux := struct {
		*plain
		IsAtAll *bool `json:"is_at_all,omitempty"`
	}{plain: (*plain)(t)}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return err
	}
	if aux.IsAtAll != nil {
		t.AtAll = *aux.IsAtAll
	}
	return nil
}

// EffectiveKind normalizes the declared content-source kind. It does not
// judge whether the kind is registered; unknown kinds must surface as a
// diagnostic placeholder at resolve time, not be silently defaulted here.
func (t Task) EffectiveKind() string {
	k := strings.TrimSpace(t.Kind)
	if k == "" {
		return KindStatic
	}
	return k
}

// ParseDate returns the task's calendar day in the given location.
func (t Task) ParseDate(loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(t.Date), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", t.Date, err)
	}
	return d, nil
}

// HasTime reports whether the task has a clock time.
func (t Task) HasTime() bool { return strings.TrimSpace(t.Time) != "" }

// Label is a short human identifier for log lines: the title when set,
// otherwise the scheduled slot.
func (t Task) Label() string {
	if s := strings.TrimSpace(t.Title); s != "" {
		return s
	}
	if t.HasTime() {
		return t.Date + " " + strings.TrimSpace(t.Time)
	}
	return t.Date
}

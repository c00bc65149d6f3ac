// Package content turns a task's declared content source into message
// text.
//
// Sources are an open set: a registry maps a kind name to a generator, so
// adding a kind is a Register call, never a change to dispatch call sites.
// Resolution never fails the run; any source error degrades to a
// descriptive placeholder that still gets delivered, because a broken
// content source should not silence the notification entirely.
package content

import (
	"context"
	"fmt"
	"os"
	"strings"

	"dingtask/internal/task"
	logx "dingtask/pkg/logx"
)

// Source generates message text for one task.
type Source func(ctx context.Context, t task.Task) (string, error)

// Registry dispatches on a task's content-source kind.
type Registry struct {
	sources map[string]Source
	log     logx.Logger
}

func NewRegistry(log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{sources: map[string]Source{}, log: log}
}

// Register installs (or replaces) the generator for a kind.
func (r *Registry) Register(kind string, src Source) {
	r.sources[strings.TrimSpace(kind)] = src
}

// Default returns a registry with the built-in kinds: static, file, and
// fetch. "external-fetch" is accepted as an alias for fetch.
func Default(fetcher Fetcher, log logx.Logger) *Registry {
	r := NewRegistry(log)
	r.Register(task.KindStatic, StaticSource())
	r.Register(task.KindFile, FileSource())
	fs := FetchSource(fetcher)
	r.Register(task.KindFetch, fs)
	r.Register("external-fetch", fs)
	return r
}

// Resolve produces the task's message text. It never returns an error:
// unknown kinds and source failures come back as placeholder text and a
// warn-level log line, leaving delivery to proceed.
func (r *Registry) Resolve(ctx context.Context, t task.Task) string {
	kind := t.EffectiveKind()
	src, ok := r.sources[kind]
	if !ok {
		r.log.Warn("unknown content kind", logx.String("kind", kind), logx.String("task", t.Label()))
		return fmt.Sprintf("(unknown content kind %q)", kind)
	}

	text, err := src(ctx, t)
	if err != nil {
		r.log.Warn("content source failed",
			logx.String("kind", kind),
			logx.String("task", t.Label()),
			logx.Err(err),
		)
		return fmt.Sprintf("(content unavailable: %v)", err)
	}
	return text
}

// StaticSource returns task.content verbatim, or a fixed placeholder when
// the field is absent.
func StaticSource() Source {
	return func(_ context.Context, t task.Task) (string, error) {
		if strings.TrimSpace(t.Content) == "" {
			return "(no content)", nil
		}
		return t.Content, nil
	}
}

// FileSource reads the message body from the task's source path.
func FileSource() Source {
	return func(_ context.Context, t task.Task) (string, error) {
		path := strings.TrimSpace(t.Source)
		if path == "" {
			return "", fmt.Errorf("file source: no path given")
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("file source: %w", err)
		}
		return string(b), nil
	}
}

// FetchSource pulls the message body from the task's source URL through
// the injected fetcher.
func FetchSource(f Fetcher) Source {
	return func(ctx context.Context, t task.Task) (string, error) {
		u := strings.TrimSpace(t.Source)
		if u == "" {
			return "", fmt.Errorf("fetch source: no url given")
		}
		if f == nil {
			return "", fmt.Errorf("fetch source: no fetcher configured")
		}
		text, err := f.Fetch(ctx, u)
		if err != nil {
			return "", fmt.Errorf("fetch source: %w", err)
		}
		return text, nil
	}
}

// Package dispatch orchestrates one run: pick the due tasks, resolve and
// render each one, then sign and deliver, collecting a run summary.
//
// Runs are synchronous and single-threaded. Per-task failure isolation is
// the whole policy here: a broken content source degrades to placeholder
// text, a failed delivery is counted and logged, and neither ever stops
// the remaining tasks.
package dispatch

import (
	"context"
	"time"

	"dingtask/internal/content"
	"dingtask/internal/dingtalk"
	"dingtask/internal/render"
	"dingtask/internal/schedule"
	"dingtask/internal/task"
	logx "dingtask/pkg/logx"
)

// Deliverer sends one rendered message. Implemented by dingtalk.Client
// and by Preview for dry runs.
type Deliverer interface {
	Send(ctx context.Context, msg render.Message, at dingtalk.Mentions) error
}

// Summary is the outcome of one run. A run with zero due tasks is a
// normal outcome, not an error.
type Summary struct {
	Attempted int
	Delivered int
	Skipped   int
	Errors    int
}

type Dispatcher struct {
	Selector schedule.Selector
	Resolver *content.Registry

	// Template is the optional layout template text (already loaded);
	// empty selects the built-in layout.
	Template string

	Deliver Deliverer
	Log     logx.Logger
}

// Run processes the full task list against the single canonical now.
// Cancelling ctx lets the in-flight delivery finish or fail cleanly and
// stops before the next task.
func (d *Dispatcher) Run(ctx context.Context, tasks []task.Task, now time.Time) Summary {
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}

	due, skips := d.Selector.Select(tasks, now)

	var sum Summary
	sum.Skipped = len(skips)
	debugOn := log.Enabled(logx.LevelDebug)
	for _, sk := range skips {
		switch sk.Reason {
		case schedule.ReasonBadDate, schedule.ReasonBadTime:
			log.Warn("task skipped", logx.String("task", sk.Task.Label()), logx.String("reason", string(sk.Reason)), logx.String("detail", sk.Detail))
		default:
			// Routine skips (future, wrong day) are debug-only; skip
			// even the label building when nobody listens.
			if !debugOn {
				continue
			}
			log.Debug("task skipped", logx.String("task", sk.Task.Label()), logx.String("reason", string(sk.Reason)), logx.String("detail", sk.Detail))
		}
	}

	for _, t := range due {
		if ctx.Err() != nil {
			log.Warn("run interrupted", logx.Int("remaining", len(due)-sum.Attempted))
			break
		}
		sum.Attempted++

		body := d.Resolver.Resolve(ctx, t)
		msg := render.Render(render.Input{
			Title:   t.Title,
			Now:     now,
			Content: body,
			AtAll:   t.AtAll,
			Mobiles: t.AtMobiles,
			UserIDs: t.AtUserIDs,
		}, d.Template)

		err := d.Deliver.Send(ctx, msg, dingtalk.Mentions{
			AtAll:   t.AtAll,
			Mobiles: t.AtMobiles,
			UserIDs: t.AtUserIDs,
		})
		if err != nil {
			sum.Errors++
			log.Error("delivery failed", logx.String("task", t.Label()), logx.Err(err))
			continue
		}
		sum.Delivered++
		log.Info("task delivered", logx.String("task", t.Label()), logx.String("title", msg.Title))
	}

	log.Info("run complete",
		logx.Time("now", now),
		logx.Int("tasks", len(tasks)),
		logx.Int("attempted", sum.Attempted),
		logx.Int("delivered", sum.Delivered),
		logx.Int("skipped", sum.Skipped),
		logx.Int("errors", sum.Errors),
	)
	return sum
}

// Preview is the dry-run Deliverer: it renders everything and sends
// nothing.
type Preview struct {
	Log logx.Logger
}

func (p Preview) Send(_ context.Context, msg render.Message, at dingtalk.Mentions) error {
	p.Log.Info("dry-run: would deliver",
		logx.String("title", msg.Title),
		logx.Int("chars", len(msg.Text)),
		logx.Bool("at_all", at.AtAll),
		logx.Strings("at_mobiles", at.Mobiles),
	)
	return nil
}

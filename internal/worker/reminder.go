package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dom "taskflow/internal/domain"
	"taskflow/internal/logctx"
	"taskflow/internal/repo"
	"taskflow/internal/service"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultBatch = 200

// Reminder periodically sends TASK_DUE notifications for tasks whose due date
// falls inside the window and marks them reminded, so each task is reminded once
// per due date.
type Reminder struct {
	tasks    repo.TaskRepo
	notifier service.Notifier
	interval time.Duration
	window   time.Duration
	batch    int
	sent     prometheus.Counter
	now      func() time.Time
}

// NewReminder creates a Reminder. sent may be nil.
func NewReminder(tasks repo.TaskRepo, n service.Notifier, interval, window time.Duration, sent prometheus.Counter) *Reminder {
	return &Reminder{
		tasks:    tasks,
		notifier: n,
		interval: interval,
		window:   window,
		batch:    defaultBatch,
		sent:     sent,
		now:      time.Now,
	}
}

// Run ticks until ctx is done. The first pass runs immediately.
func (r *Reminder) Run(ctx context.Context) {
	const op = "worker.Reminder.Run"

	lg := logctx.From(ctx)
	lg.Info("reminder_start",
		slog.String("op", op),
		slog.Duration("interval", r.interval),
		slog.Duration("window", r.window),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			lg.Info("reminder_stop", slog.String("op", op))
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reminder) tick(ctx context.Context) {
	n, err := r.RunOnce(ctx)
	lg := logctx.From(ctx)
	if err != nil {
		lg.Warn("reminder_tick_error", slog.Int("sent", n), slog.String("err", err.Error()))
		return
	}
	if n > 0 {
		lg.Info("reminder_sent", slog.Int("sent", n))
	}
}

// RunOnce does one pass and returns how many reminders were sent. A failure on
// one task does not stop the others; the task is retried next pass.
func (r *Reminder) RunOnce(ctx context.Context) (int, error) {
	const op = "worker.Reminder.RunOnce"

	now := r.now().UTC()
	due, err := r.tasks.DueForReminder(ctx, now, now.Add(r.window), r.batch)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var (
		sent int
		errs []error
	)
	for _, t := range due {
		if _, err := r.notifier.Notify(ctx, reminderFor(t)); err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", t.ID, err))
			continue
		}
		if err := r.tasks.MarkReminded(ctx, t.ID, now); err != nil {
			errs = append(errs, fmt.Errorf("task %s: mark: %w", t.ID, err))
			continue
		}
		sent++
	}
	if r.sent != nil {
		r.sent.Add(float64(sent))
	}
	if len(errs) > 0 {
		return sent, fmt.Errorf("%s: %w", op, errors.Join(errs...))
	}
	return sent, nil
}

// reminderFor addresses the assignee, or the creator of an unassigned task.
func reminderFor(t dom.Task) dom.Notification {
	to := t.CreatorID
	if t.AssigneeID != nil {
		to = *t.AssigneeID
	}
	id := t.ID
	body := fmt.Sprintf("%q is due soon", t.Title)
	if t.DueDate != nil {
		body = fmt.Sprintf("%q is due %s", t.Title, t.DueDate.UTC().Format(time.RFC3339))
	}
	return dom.Notification{
		UserID: to,
		Type:   dom.NotificationTaskDue,
		Title:  "Task due soon",
		Body:   body,
		TaskID: &id,
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"volunteer-hub/internal/docstore"
	"volunteer-hub/internal/lib/logger/sl"
	"volunteer-hub/internal/status"
	"volunteer-hub/models"
	"volunteer-hub/monitoring"
)

const (
	OperationSignup = "signup"
	OperationCancel = "cancel"

	defaultAuditConcurrency = 8
)

type LedgerStore interface {
	docstore.Reader
	docstore.Transactor
}

// SignupLedger owns filledCount. Every change to a task's signups goes
// through one guarded transaction that reads the task and the caller's
// signup together, so the counter and the signup set move in lockstep.
type SignupLedger struct {
	store    LedgerStore
	notifier *TaskNotifier
	monitor  *monitoring.Monitor
	log      *slog.Logger
	now      func() time.Time

	auditConcurrency int
}

func NewSignupLedger(store LedgerStore, notifier *TaskNotifier, monitor *monitoring.Monitor, log *slog.Logger) *SignupLedger {
	return &SignupLedger{
		store:            store,
		notifier:         notifier,
		monitor:          monitor,
		log:              log.With(slog.String("component", "signup_ledger")),
		now:              time.Now,
		auditConcurrency: defaultAuditConcurrency,
	}
}

// SignUp claims a slot on the task for userID. Signing up twice is a no-op;
// a full task fails with status.ErrCapacityExhausted.
func (l *SignupLedger) SignUp(ctx context.Context, eventID, taskID, userID string) error {
	const op = "services.SignupLedger.SignUp"
	log := l.log.With(slog.String("op", op), slog.String("event_id", eventID), slog.String("task_id", taskID))
	start := time.Now()

	if userID == "" {
		l.finish(OperationSignup, eventID, start, status.ErrPermissionDenied, false)
		return fmt.Errorf("%s: %w: not signed in", op, status.ErrPermissionDenied)
	}

	taskPath := models.TaskPath(eventID, taskID)
	signupPath := models.SignupPath(eventID, taskID, userID)

	var changed bool
	err := l.store.Transact(ctx, []string{taskPath, signupPath}, func(tx docstore.Tx) error {
		changed = false

		task, err := readTask(tx, eventID, taskPath)
		if err != nil {
			return err
		}
		_, exists, err := tx.Get(signupPath)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if task.FilledCount >= task.Slots {
			return status.ErrCapacityExhausted
		}

		tx.Set(signupPath, models.SignupFields(l.now()))
		tx.Update(taskPath, models.FilledCountFields(task.FilledCount+1))
		changed = true
		return nil
	})
	l.finish(OperationSignup, eventID, start, err, changed)
	if err != nil {
		if !errors.Is(err, status.ErrCapacityExhausted) {
			log.Error("signup failed", slog.String("user_id", userID), sl.Err(err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if changed {
		log.Info("signed up", slog.String("user_id", userID))
		l.notifier.TaskUpdated(ctx, eventID, taskID, OperationSignup)
	}
	return nil
}

// Cancel releases userID's slot. Cancelling without a signup is a no-op.
func (l *SignupLedger) Cancel(ctx context.Context, eventID, taskID, userID string) error {
	const op = "services.SignupLedger.Cancel"
	log := l.log.With(slog.String("op", op), slog.String("event_id", eventID), slog.String("task_id", taskID))
	start := time.Now()

	if userID == "" {
		l.finish(OperationCancel, eventID, start, status.ErrPermissionDenied, false)
		return fmt.Errorf("%s: %w: not signed in", op, status.ErrPermissionDenied)
	}

	taskPath := models.TaskPath(eventID, taskID)
	signupPath := models.SignupPath(eventID, taskID, userID)

	var changed, floored bool
	err := l.store.Transact(ctx, []string{taskPath, signupPath}, func(tx docstore.Tx) error {
		changed, floored = false, false

		_, exists, err := tx.Get(signupPath)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		task, err := readTask(tx, eventID, taskPath)
		if err != nil {
			return err
		}

		filled := task.FilledCount - 1
		if filled < 0 {
			filled = 0
			floored = true
		}
		tx.Delete(signupPath)
		tx.Update(taskPath, models.FilledCountFields(filled))
		changed = true
		return nil
	})
	l.finish(OperationCancel, eventID, start, err, changed)
	if err != nil {
		log.Error("cancel failed", slog.String("user_id", userID), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if floored {
		l.monitor.TrackCounterDrift(eventID)
		log.Error("filledCount was already zero while a signup existed",
			slog.String("user_id", userID),
			sl.Err(status.ErrDataCorruption),
		)
	}
	if changed {
		log.Info("cancelled signup", slog.String("user_id", userID))
		l.notifier.TaskUpdated(ctx, eventID, taskID, OperationCancel)
	}
	return nil
}

func readTask(tx docstore.Tx, eventID, taskPath string) (models.VolunteerTask, error) {
	doc, ok, err := tx.Get(taskPath)
	if err != nil {
		return models.VolunteerTask{}, err
	}
	if !ok {
		return models.VolunteerTask{}, fmt.Errorf("%w: task %s", status.ErrNotFound, taskPath)
	}
	return models.TaskFromDocument(eventID, doc)
}

func (l *SignupLedger) finish(operation, eventID string, start time.Time, err error, changed bool) {
	l.monitor.ObserveSignupDuration(operation, time.Since(start))
	l.monitor.TrackSignupOperation(operation, eventID, outcome(err, changed))
}

func outcome(err error, changed bool) string {
	switch {
	case err == nil && changed:
		return "success"
	case err == nil:
		return "noop"
	case errors.Is(err, status.ErrCapacityExhausted):
		return "full"
	case errors.Is(err, status.ErrPermissionDenied):
		return "denied"
	case errors.Is(err, status.ErrNotFound):
		return "not_found"
	case errors.Is(err, status.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

// TaskAudit compares a task's counter with its signup documents.
type TaskAudit struct {
	EventID     string `json:"event_id"`
	TaskID      string `json:"task_id"`
	Title       string `json:"title"`
	Slots       int    `json:"slots"`
	FilledCount int    `json:"filled_count"`
	Remaining   int    `json:"remaining"`
	Signups     int    `json:"signups"`
	Drift       int    `json:"drift"`
	// MalformedSignups counts signup documents that still hold a slot but
	// carry no readable createdAt
	MalformedSignups int `json:"malformed_signups,omitempty"`
}

// Audit reports filledCount minus the number of signups for one task and
// records it on the drift gauge. It never repairs the counter.
func (l *SignupLedger) Audit(ctx context.Context, eventID, taskID string) (TaskAudit, error) {
	const op = "services.SignupLedger.Audit"

	doc, err := l.store.Get(ctx, models.TaskPath(eventID, taskID))
	if err != nil {
		return TaskAudit{}, fmt.Errorf("%s: %w", op, err)
	}
	task, err := models.TaskFromDocument(eventID, doc)
	if err != nil {
		return TaskAudit{}, fmt.Errorf("%s: %w", op, err)
	}
	return l.audit(ctx, task)
}

func (l *SignupLedger) audit(ctx context.Context, task models.VolunteerTask) (TaskAudit, error) {
	signups, err := l.store.List(ctx, docstore.Query{Collection: models.SignupsPath(task.EventID, task.ID)})
	if err != nil {
		return TaskAudit{}, fmt.Errorf("audit %s: %w", task.ID, err)
	}

	a := TaskAudit{
		EventID:     task.EventID,
		TaskID:      task.ID,
		Title:       task.Title,
		Slots:       task.Slots,
		FilledCount: task.FilledCount,
		Remaining:   task.Remaining(),
		Signups:     len(signups),
		Drift:       task.FilledCount - len(signups),
	}
	for _, doc := range signups {
		if _, err := models.SignupFromDocument(doc); err != nil {
			a.MalformedSignups++
			l.log.Warn("malformed signup document", slog.String("path", doc.Path), sl.Err(err))
		}
	}
	l.monitor.SetCounterDrift(a.EventID, a.TaskID, a.Drift)
	if a.Drift != 0 {
		l.log.Warn("signup counter drift",
			slog.String("event_id", a.EventID),
			slog.String("task_id", a.TaskID),
			slog.Int("filled_count", a.FilledCount),
			slog.Int("signups", a.Signups),
			sl.Err(status.ErrDataCorruption),
		)
	}
	return a, nil
}

// AuditEvent audits every task of an event concurrently. Malformed tasks
// are skipped.
func (l *SignupLedger) AuditEvent(ctx context.Context, eventID string) ([]TaskAudit, error) {
	const op = "services.SignupLedger.AuditEvent"

	docs, err := l.store.List(ctx, docstore.Query{Collection: models.TasksPath(eventID), OrderBy: models.FieldCreatedAt})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tasks := make([]models.VolunteerTask, 0, len(docs))
	for _, doc := range docs {
		task, err := models.TaskFromDocument(eventID, doc)
		if err != nil {
			l.log.Error("skipping malformed task", slog.String("op", op), sl.Err(err))
			continue
		}
		tasks = append(tasks, task)
	}

	results := make([]TaskAudit, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.auditConcurrency)
	for i, task := range tasks {
		g.Go(func() error {
			a, err := l.audit(gctx, task)
			if err != nil {
				return err
			}
			results[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return results, nil
}

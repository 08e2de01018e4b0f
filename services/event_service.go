package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"volunteer-hub/internal/docstore"
	"volunteer-hub/internal/lib/logger/sl"
	"volunteer-hub/internal/status"
	"volunteer-hub/models"
)

type EventService struct {
	store docstore.Store
	roles *RoleService
	log   *slog.Logger
	now   func() time.Time

	mu        sync.Mutex
	onDeleted []func(eventID string)
}

func NewEventService(store docstore.Store, roles *RoleService, log *slog.Logger) *EventService {
	return &EventService{
		store: store,
		roles: roles,
		log:   log.With(slog.String("component", "event_service")),
		now:   time.Now,
	}
}

// OnDeleted registers fn to run after an event and its tasks are deleted.
func (s *EventService) OnDeleted(fn func(eventID string)) {
	s.mu.Lock()
	s.onDeleted = append(s.onDeleted, fn)
	s.mu.Unlock()
}

func (s *EventService) CreateEvent(ctx context.Context, actorID string, in models.EventInput) (models.Event, error) {
	const op = "services.EventService.CreateEvent"

	if err := s.roles.RequireAdmin(ctx, actorID); err != nil {
		return models.Event{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := models.Validate(in); err != nil {
		return models.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	id, err := s.store.Add(ctx, models.EventsCollection, in.Fields(actorID, now))
	if err != nil {
		return models.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("event created", slog.String("event_id", id), slog.String("created_by", actorID))
	return models.Event{
		ID:        id,
		Title:     in.Title,
		Location:  in.Location,
		Details:   in.Details,
		StartAt:   in.StartAt,
		EndAt:     in.EndAt,
		CreatedAt: now,
		CreatedBy: actorID,
	}, nil
}

// CreateTask adds a task to an existing event. The task is written in one
// transaction with a bump of the event's task count, so it either lands
// under a live event or not at all. filledCount is not written; only the
// signup ledger ever sets it.
func (s *EventService) CreateTask(ctx context.Context, actorID, eventID string, in models.TaskInput) (models.VolunteerTask, error) {
	const op = "services.EventService.CreateTask"

	if err := s.roles.RequireAdmin(ctx, actorID); err != nil {
		return models.VolunteerTask{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := models.Validate(in); err != nil {
		return models.VolunteerTask{}, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	id := uuid.NewString()
	eventPath := models.EventPath(eventID)
	err := s.store.Transact(ctx, []string{eventPath}, func(tx docstore.Tx) error {
		doc, ok, err := tx.Get(eventPath)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: event %s", status.ErrNotFound, eventID)
		}
		ev, err := models.EventFromDocument(doc)
		if err != nil {
			return err
		}
		tx.Set(models.TaskPath(eventID, id), in.Fields(actorID, now))
		tx.Update(eventPath, models.TaskCountFields(ev.TaskCount+1))
		return nil
	})
	if err != nil {
		return models.VolunteerTask{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("task created", slog.String("event_id", eventID), slog.String("task_id", id), slog.Int("slots", in.Slots))
	return models.VolunteerTask{
		ID:        id,
		EventID:   eventID,
		Title:     in.Title,
		Details:   in.Details,
		Slots:     in.Slots,
		CreatedAt: now,
		CreatedBy: actorID,
	}, nil
}

// errTasksChanged aborts a delete whose task listing was overtaken by a new
// task; the delete starts over with a fresh listing.
var errTasksChanged = errors.New("event tasks changed")

const maxDeleteAttempts = 5

// DeleteEvent removes the event with all of its tasks and signups in one
// guarded transaction.
func (s *EventService) DeleteEvent(ctx context.Context, actorID, eventID string) error {
	const op = "services.EventService.DeleteEvent"

	if err := s.roles.RequireAdmin(ctx, actorID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var (
		tasks []docstore.Document
		err   error
	)
	for attempt := 1; ; attempt++ {
		tasks, err = s.deleteEvent(ctx, eventID)
		if !errors.Is(err, errTasksChanged) {
			break
		}
		if attempt == maxDeleteAttempts {
			err = fmt.Errorf("%w: tasks of event %s kept changing", status.ErrConflict, eventID)
			break
		}
		s.log.Debug("task added during delete, listing again", slog.String("event_id", eventID), slog.Int("attempt", attempt))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// a signup can land between the listing and the commit; once the task
	// is gone no further signup can succeed, so one sweep is enough
	for _, task := range tasks {
		s.sweepSignups(ctx, eventID, task.ID)
	}

	s.log.Info("event deleted", slog.String("event_id", eventID), slog.Int("tasks", len(tasks)), slog.String("deleted_by", actorID))

	s.mu.Lock()
	hooks := append([]func(string){}, s.onDeleted...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(eventID)
	}
	return nil
}

// deleteEvent lists the tasks of the event and deletes them with the event.
// The event's task count is read before the listing; a transaction that
// finds it changed returns errTasksChanged.
func (s *EventService) deleteEvent(ctx context.Context, eventID string) ([]docstore.Document, error) {
	eventPath := models.EventPath(eventID)
	doc, err := s.store.Get(ctx, eventPath)
	if err != nil {
		return nil, err
	}
	listedCount := doc.Fields[models.FieldTaskCount]

	tasks, err := s.store.List(ctx, docstore.Query{Collection: models.TasksPath(eventID)})
	if err != nil {
		return nil, err
	}
	signups := make(map[string][]string, len(tasks))
	readSet := []string{eventPath}
	for _, task := range tasks {
		docs, err := s.store.List(ctx, docstore.Query{Collection: models.SignupsPath(eventID, task.ID)})
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			signups[task.Path] = append(signups[task.Path], d.Path)
		}
		readSet = append(readSet, task.Path)
	}

	err = s.store.Transact(ctx, readSet, func(tx docstore.Tx) error {
		doc, ok, err := tx.Get(eventPath)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: event %s", status.ErrNotFound, eventID)
		}
		if doc.Fields[models.FieldTaskCount] != listedCount {
			return errTasksChanged
		}
		for _, task := range tasks {
			for _, p := range signups[task.Path] {
				tx.Delete(p)
			}
			tx.Delete(task.Path)
		}
		tx.Delete(eventPath)
		return nil
	})
	return tasks, err
}

func (s *EventService) sweepSignups(ctx context.Context, eventID, taskID string) {
	docs, err := s.store.List(ctx, docstore.Query{Collection: models.SignupsPath(eventID, taskID)})
	if err != nil {
		s.log.Warn("failed to sweep signups of deleted task", slog.String("task_id", taskID), sl.Err(err))
		return
	}
	for _, d := range docs {
		if err := s.store.Delete(ctx, d.Path); err != nil {
			s.log.Warn("failed to delete orphaned signup", slog.String("path", d.Path), sl.Err(err))
		}
	}
}

func (s *EventService) Event(ctx context.Context, eventID string) (models.Event, error) {
	doc, err := s.store.Get(ctx, models.EventPath(eventID))
	if err != nil {
		return models.Event{}, err
	}
	return models.EventFromDocument(doc)
}

func eventsQuery() docstore.Query {
	return docstore.Query{Collection: models.EventsCollection, OrderBy: models.FieldStartAt}
}

// ListEvents returns all events by start time, earliest first.
func (s *EventService) ListEvents(ctx context.Context) ([]models.Event, error) {
	docs, err := s.store.List(ctx, eventsQuery())
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return decodeAll(s.log, docs, models.EventFromDocument), nil
}

// ListenEvents streams the event list in the same order as ListEvents.
// Stream errors are passed to fn with a nil list.
func (s *EventService) ListenEvents(ctx context.Context, fn func([]models.Event, error)) (docstore.Subscription, error) {
	return s.store.Subscribe(ctx, eventsQuery(), func(snap docstore.Snapshot) {
		if snap.Err != nil {
			fn(nil, snap.Err)
			return
		}
		fn(decodeAll(s.log, snap.Docs, models.EventFromDocument), nil)
	})
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"volunteer-hub/internal/docstore"
	"volunteer-hub/internal/live"
	"volunteer-hub/models"
)

// BoardView is the task board of one event as seen by one user.
type BoardView struct {
	EventID              string                          `json:"event_id"`
	Tasks                []models.VolunteerTask          `json:"tasks"`
	SignedUpTaskIDs      []string                        `json:"signed_up_task_ids"`
	FullTaskIDs          []string                        `json:"full_task_ids"`
	RemainingByTask      map[string]int                  `json:"remaining_by_task"`
	ResolvedPeopleByTask map[string][]models.UserProfile `json:"resolved_people_by_task"`
	Loading              bool                            `json:"loading"`
	StreamError          string                          `json:"stream_error,omitempty"`
}

// RosterEntry is one signup of a task. Profile is nil while the user's
// profile has not arrived yet.
type RosterEntry struct {
	UserID  string              `json:"user_id"`
	Profile *models.UserProfile `json:"profile,omitempty"`
	Pending bool                `json:"pending"`
}

// TaskBoard keeps the tasks of an event, the signups of every task and the
// profiles of every signed-up user live. Tasks drive signup subscriptions;
// the union of signups drives profile subscriptions.
type TaskBoard struct {
	eventID  string
	tasks    *live.Multiplexer[[]string]
	profiles *live.Multiplexer[models.UserProfile]
	log      *slog.Logger

	// refresh serializes onTasksChange so a stale view never overwrites a
	// newer one
	refresh   sync.Mutex
	mu        sync.Mutex
	decoded   []models.VolunteerTask
	malformed map[string]string
	loaded    chan struct{}
	loadOnce  sync.Once
}

func NewTaskBoard(sub docstore.Subscriber, eventID string, tracker live.Tracker, log *slog.Logger) *TaskBoard {
	b := &TaskBoard{
		eventID:   eventID,
		log:       log.With(slog.String("component", "task_board"), slog.String("event_id", eventID)),
		malformed: make(map[string]string),
		loaded:    make(chan struct{}),
	}

	b.profiles = live.New(live.Config[models.UserProfile]{
		Name:    "profiles",
		Child:   live.DocumentChildren(sub, models.UserPath),
		Decode:  decodeProfile,
		Tracker: tracker,
		Logger:  b.log,
	})

	b.tasks = live.New(live.Config[[]string]{
		Name:   "signups",
		Parent: live.CollectionParent(sub, docstore.Query{Collection: models.TasksPath(eventID), OrderBy: models.FieldCreatedAt}),
		Child: live.CollectionChildren(sub, func(taskID string) string {
			return models.SignupsPath(eventID, taskID)
		}, models.FieldCreatedAt),
		Decode:   decodeSignupIDs,
		OnChange: b.onTasksChange,
		Tracker:  tracker,
		Logger:   b.log,
	})

	return b
}

func decodeSignupIDs(_ string, snap docstore.Snapshot) ([]string, bool, error) {
	ids := snap.IDs()
	slices.Sort(ids)
	return ids, true, nil
}

func decodeProfile(_ string, snap docstore.Snapshot) (models.UserProfile, bool, error) {
	if len(snap.Docs) == 0 {
		return models.UserProfile{}, false, nil
	}
	p, err := models.ProfileFromDocument(snap.Docs[0])
	if err != nil {
		return models.UserProfile{}, false, err
	}
	return p, true, nil
}

func (b *TaskBoard) EventID() string {
	return b.eventID
}

// Start opens the board's subscriptions. Values kept from before a Stop
// stay visible until fresh snapshots replace them.
func (b *TaskBoard) Start(ctx context.Context) error {
	if err := b.profiles.Start(ctx); err != nil {
		return fmt.Errorf("start profiles: %w", err)
	}
	if err := b.tasks.Start(ctx); err != nil {
		b.profiles.Stop()
		return fmt.Errorf("start tasks: %w", err)
	}
	return nil
}

// Stop releases all subscriptions and keeps the cached board.
func (b *TaskBoard) Stop() {
	b.tasks.Stop()
	b.profiles.Stop()
}

// Close releases all subscriptions and forgets the board.
func (b *TaskBoard) Close() {
	b.tasks.Close()
	b.profiles.Close()
	b.mu.Lock()
	b.decoded = nil
	clear(b.malformed)
	b.mu.Unlock()
}

func (b *TaskBoard) Live() bool {
	return b.tasks.State() != live.Unsubscribed
}

func (b *TaskBoard) onTasksChange() {
	b.refresh.Lock()
	defer b.refresh.Unlock()

	view := b.tasks.View()

	tasks := make([]models.VolunteerTask, 0, len(view.Parent))
	seen := make(map[string]string)
	for _, doc := range view.Parent {
		t, err := models.TaskFromDocument(b.eventID, doc)
		if err != nil {
			seen[doc.ID] = err.Error()
			continue
		}
		tasks = append(tasks, t)
	}

	b.mu.Lock()
	b.decoded = tasks
	for id, msg := range seen {
		if b.malformed[id] != msg {
			b.log.Error("excluding malformed task from board", slog.String("task_id", id), slog.String("error", msg))
		}
	}
	b.malformed = seen
	b.mu.Unlock()

	if view.State == live.Live && !slices.ContainsFunc(view.Keys, view.Pending) {
		b.loadOnce.Do(func() { close(b.loaded) })
	}

	var users []string
	for _, ids := range view.Values {
		users = append(users, ids...)
	}
	slices.Sort(users)
	b.profiles.ReconcileKeys(slices.Compact(users))
}

// WaitLoaded blocks until the board has seen its task list and the signups
// of every task once, or until ctx is done.
func (b *TaskBoard) WaitLoaded(ctx context.Context) error {
	select {
	case <-b.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *TaskBoard) taskList() []models.VolunteerTask {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.decoded)
}

// View returns the board for userID.
func (b *TaskBoard) View(userID string) BoardView {
	tasks := b.taskList()
	tv := b.tasks.View()
	pv := b.profiles.View()

	v := BoardView{
		EventID:              b.eventID,
		Tasks:                tasks,
		SignedUpTaskIDs:      []string{},
		FullTaskIDs:          []string{},
		RemainingByTask:      make(map[string]int, len(tasks)),
		ResolvedPeopleByTask: make(map[string][]models.UserProfile, len(tasks)),
		Loading:              tv.State == live.Subscribing,
	}
	if err := firstErr(tv.Err, pv.Err); err != nil {
		v.StreamError = err.Error()
	}

	for _, t := range tasks {
		v.RemainingByTask[t.ID] = t.Remaining()
		if t.IsFull() {
			v.FullTaskIDs = append(v.FullTaskIDs, t.ID)
		}
		signups := tv.Values[t.ID]
		if userID != "" && slices.Contains(signups, userID) {
			v.SignedUpTaskIDs = append(v.SignedUpTaskIDs, t.ID)
		}
		people := make([]models.UserProfile, 0, len(signups))
		for _, uid := range signups {
			if p, ok := pv.Values[uid]; ok {
				people = append(people, p)
			}
		}
		v.ResolvedPeopleByTask[t.ID] = people
	}
	return v
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// IsSignedUp answers from the latest signup snapshot of the task.
func (b *TaskBoard) IsSignedUp(taskID, userID string) bool {
	if userID == "" {
		return false
	}
	ids, _ := b.tasks.Value(taskID)
	return slices.Contains(ids, userID)
}

// MyTasks returns the tasks userID holds a slot on, in board order.
func (b *TaskBoard) MyTasks(userID string) []models.VolunteerTask {
	mine := []models.VolunteerTask{}
	if userID == "" {
		return mine
	}
	for _, t := range b.taskList() {
		if b.IsSignedUp(t.ID, userID) {
			mine = append(mine, t)
		}
	}
	return mine
}

// Roster lists the signups of a task by user id.
func (b *TaskBoard) Roster(taskID string) []RosterEntry {
	ids, _ := b.tasks.Value(taskID)
	roster := make([]RosterEntry, 0, len(ids))
	for _, uid := range ids {
		entry := RosterEntry{UserID: uid, Pending: true}
		if p, ok := b.profiles.Value(uid); ok {
			entry.Profile = &p
			entry.Pending = false
		}
		roster = append(roster, entry)
	}
	return roster
}

// ExportText renders the resolved people of a task as "Name - email"
// lines. Pending profiles are left out.
func (b *TaskBoard) ExportText(taskID string) string {
	var lines []string
	for _, entry := range b.Roster(taskID) {
		if entry.Profile == nil {
			continue
		}
		lines = append(lines, entry.Profile.DisplayName()+" - "+entry.Profile.Email)
	}
	return strings.Join(lines, "\n")
}

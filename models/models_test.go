package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volunteer-hub/internal/docstore"
	"volunteer-hub/internal/status"
)

func taskDoc(fields docstore.Fields) docstore.Document {
	return docstore.Document{ID: "t1", Path: TaskPath("e1", "t1"), Fields: fields}
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "events/e1", EventPath("e1"))
	assert.Equal(t, "events/e1/volunteerTasks", TasksPath("e1"))
	assert.Equal(t, "events/e1/volunteerTasks/t1", TaskPath("e1", "t1"))
	assert.Equal(t, "events/e1/volunteerTasks/t1/signups", SignupsPath("e1", "t1"))
	assert.Equal(t, "events/e1/volunteerTasks/t1/signups/u1", SignupPath("e1", "t1", "u1"))
	assert.Equal(t, "users/u1", UserPath("u1"))
	assert.Equal(t, "announcements/a1", AnnouncementPath("a1"))
}

func TestTaskFromDocument(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	task, err := TaskFromDocument("e1", taskDoc(docstore.Fields{
		FieldTitle:       "Setup tables",
		FieldSlots:       "3",
		FieldFilledCount: "1",
		FieldCreatedAt:   FormatTime(created),
	}))
	require.NoError(t, err)
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, "e1", task.EventID)
	assert.Equal(t, 3, task.Slots)
	assert.Equal(t, 1, task.FilledCount)
	assert.Equal(t, 2, task.Remaining())
	assert.False(t, task.IsFull())
	assert.True(t, created.Equal(task.CreatedAt))
}

func TestTaskFromDocument_DefaultsFilledCount(t *testing.T) {
	task, err := TaskFromDocument("e1", taskDoc(docstore.Fields{FieldTitle: "Cleanup", FieldSlots: "2"}))
	require.NoError(t, err)
	assert.Equal(t, 0, task.FilledCount)
}

func TestTaskFromDocument_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		fields docstore.Fields
	}{
		{"missing title", docstore.Fields{FieldSlots: "2"}},
		{"missing slots", docstore.Fields{FieldTitle: "x"}},
		{"non numeric slots", docstore.Fields{FieldTitle: "x", FieldSlots: "two"}},
		{"zero slots", docstore.Fields{FieldTitle: "x", FieldSlots: "0"}},
		{"negative filled count", docstore.Fields{FieldTitle: "x", FieldSlots: "2", FieldFilledCount: "-1"}},
		{"bad timestamp", docstore.Fields{FieldTitle: "x", FieldSlots: "2", FieldCreatedAt: "yesterday"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TaskFromDocument("e1", taskDoc(tt.fields))
			assert.ErrorIs(t, err, status.ErrMalformedDocument)
		})
	}
}

func TestTaskInput_FieldsOmitFilledCount(t *testing.T) {
	in := TaskInput{Title: "Greeters", Slots: 4}
	fields := in.Fields("admin1", time.Now())
	assert.NotContains(t, fields, FieldFilledCount)
	assert.Equal(t, "4", fields[FieldSlots])
	assert.Equal(t, "admin1", fields[FieldCreatedBy])
}

func TestEventFromDocument(t *testing.T) {
	start := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	in := EventInput{Title: "Spring Fair", Location: "Gym", StartAt: start, EndAt: start.Add(3 * time.Hour)}
	doc := docstore.Document{ID: "e1", Path: EventPath("e1"), Fields: in.Fields("admin1", start)}

	ev, err := EventFromDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, "Spring Fair", ev.Title)
	assert.Equal(t, "Gym", ev.Location)
	assert.True(t, start.Equal(ev.StartAt))
	assert.Equal(t, "admin1", ev.CreatedBy)
}

func TestEventFromDocument_EndBeforeStart(t *testing.T) {
	doc := docstore.Document{ID: "e1", Path: EventPath("e1"), Fields: docstore.Fields{
		FieldTitle:   "Backwards",
		FieldStartAt: "200",
		FieldEndAt:   "100",
	}}
	_, err := EventFromDocument(doc)
	assert.ErrorIs(t, err, status.ErrMalformedDocument)
}

func TestValidate_EventInput(t *testing.T) {
	start := time.Now()

	assert.NoError(t, Validate(EventInput{Title: "ok", StartAt: start, EndAt: start}))

	err := Validate(EventInput{Title: "bad", StartAt: start, EndAt: start.Add(-time.Minute)})
	assert.ErrorIs(t, err, status.ErrInvalidInput)
	assert.Contains(t, err.Error(), "EndAt")

	err = Validate(EventInput{StartAt: start, EndAt: start})
	assert.ErrorIs(t, err, status.ErrInvalidInput)
	assert.Contains(t, err.Error(), "Title")
}

func TestValidate_TaskInput(t *testing.T) {
	assert.NoError(t, Validate(TaskInput{Title: "x", Slots: 1}))
	assert.ErrorIs(t, Validate(TaskInput{Title: "x", Slots: 0}), status.ErrInvalidInput)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
	assert.Equal(t, RoleAdmin, ParseRole(" ADMIN "))
	assert.Equal(t, RoleParent, ParseRole("parent"))
	assert.Equal(t, RoleParent, ParseRole(""))
	assert.Equal(t, RoleParent, ParseRole("superuser"))
}

func TestProfileFromDocument(t *testing.T) {
	p, err := ProfileFromDocument(docstore.Document{ID: "u1", Path: UserPath("u1"), Fields: docstore.Fields{
		FieldName: "Ana", FieldEmail: "ana@example.com", FieldRole: "Admin",
	}})
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, p.Role)
	assert.Equal(t, "Ana", p.DisplayName())

	p, err = ProfileFromDocument(docstore.Document{ID: "u2", Path: UserPath("u2"), Fields: docstore.Fields{}})
	require.NoError(t, err)
	assert.Equal(t, RoleParent, p.Role)
	assert.Equal(t, "Unnamed", p.DisplayName())
}

func TestSignupFromDocument(t *testing.T) {
	now := time.Now()
	s, err := SignupFromDocument(docstore.Document{ID: "u1", Path: SignupPath("e1", "t1", "u1"), Fields: SignupFields(now)})
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)

	_, err = SignupFromDocument(docstore.Document{ID: "u1", Path: SignupPath("e1", "t1", "u1"), Fields: docstore.Fields{}})
	assert.ErrorIs(t, err, status.ErrMalformedDocument)
}

func TestAnnouncementFromDocument(t *testing.T) {
	in := AnnouncementInput{Title: "Thanks", Message: "Great turnout"}
	a, err := AnnouncementFromDocument(docstore.Document{ID: "a1", Path: AnnouncementPath("a1"), Fields: in.Fields("admin1", time.Now())})
	require.NoError(t, err)
	assert.Equal(t, "Great turnout", a.Message)

	_, err = AnnouncementFromDocument(docstore.Document{ID: "a2", Path: AnnouncementPath("a2"), Fields: docstore.Fields{FieldTitle: "no body"}})
	assert.ErrorIs(t, err, status.ErrMalformedDocument)
}

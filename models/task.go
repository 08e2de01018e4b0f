package models

import (
	"strconv"
	"time"

	"volunteer-hub/internal/docstore"
)

// VolunteerTask is a unit of work at an event with a fixed number of slots.
// FilledCount is maintained only by the signup ledger.
type VolunteerTask struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	Title       string    `json:"title" validate:"required"`
	Details     string    `json:"details"`
	Slots       int       `json:"slots" validate:"min=1"`
	FilledCount int       `json:"filled_count" validate:"min=0"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
}

type TaskInput struct {
	Title   string `json:"title" validate:"required"`
	Details string `json:"details"`
	Slots   int    `json:"slots" validate:"min=1"`
}

func (t VolunteerTask) Remaining() int {
	return max(0, t.Slots-t.FilledCount)
}

func (t VolunteerTask) IsFull() bool {
	return t.FilledCount >= t.Slots
}

// TaskFromDocument decodes a task. A missing filledCount means nobody has
// signed up yet.
func TaskFromDocument(eventID string, doc docstore.Document) (VolunteerTask, error) {
	r := newFieldReader(doc.Path, doc.Fields)
	t := VolunteerTask{
		ID:          doc.ID,
		EventID:     eventID,
		Title:       r.string(FieldTitle, true),
		Details:     r.string(FieldDetails, false),
		Slots:       r.int(FieldSlots, true, 0),
		FilledCount: r.int(FieldFilledCount, false, 0),
		CreatedAt:   r.time(FieldCreatedAt, false),
		CreatedBy:   r.string(FieldCreatedBy, false),
	}
	if err := r.check(t); err != nil {
		return VolunteerTask{}, err
	}
	return t, nil
}

// Fields leaves filledCount out on purpose: a new task starts at the
// decoder default of zero.
func (in TaskInput) Fields(createdBy string, now time.Time) docstore.Fields {
	return docstore.Fields{
		FieldTitle:     in.Title,
		FieldDetails:   in.Details,
		FieldSlots:     strconv.Itoa(in.Slots),
		FieldCreatedAt: FormatTime(now),
		FieldCreatedBy: createdBy,
	}
}

func FilledCountFields(n int) docstore.Fields {
	return docstore.Fields{FieldFilledCount: strconv.Itoa(n)}
}

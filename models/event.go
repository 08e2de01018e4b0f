package models

import (
	"strconv"
	"time"

	"volunteer-hub/internal/docstore"
)

type Event struct {
	ID        string    `json:"id"`
	Title     string    `json:"title" validate:"required"`
	Location  string    `json:"location"`
	Details   string    `json:"details"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at" validate:"gtefield=StartAt"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
	TaskCount int       `json:"task_count"`
}

// EventInput is what an admin submits to create an event.
type EventInput struct {
	Title    string    `json:"title" validate:"required"`
	Location string    `json:"location"`
	Details  string    `json:"details"`
	StartAt  time.Time `json:"start_at" validate:"required"`
	EndAt    time.Time `json:"end_at" validate:"required,gtefield=StartAt"`
}

func EventFromDocument(doc docstore.Document) (Event, error) {
	r := newFieldReader(doc.Path, doc.Fields)
	e := Event{
		ID:        doc.ID,
		Title:     r.string(FieldTitle, true),
		Location:  r.string(FieldLocation, false),
		Details:   r.string(FieldDetails, false),
		StartAt:   r.time(FieldStartAt, true),
		EndAt:     r.time(FieldEndAt, true),
		CreatedAt: r.time(FieldCreatedAt, false),
		CreatedBy: r.string(FieldCreatedBy, false),
		TaskCount: r.int(FieldTaskCount, false, 0),
	}
	if err := r.check(e); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (in EventInput) Fields(createdBy string, now time.Time) docstore.Fields {
	return docstore.Fields{
		FieldTitle:     in.Title,
		FieldLocation:  in.Location,
		FieldDetails:   in.Details,
		FieldStartAt:   FormatTime(in.StartAt),
		FieldEndAt:     FormatTime(in.EndAt),
		FieldCreatedAt: FormatTime(now),
		FieldCreatedBy: createdBy,
	}
}

// TaskCountFields records how many tasks were ever added to an event. Every
// new task bumps it in the same transaction, so a delete that read the event
// can tell whether its task listing went stale.
func TaskCountFields(n int) docstore.Fields {
	return docstore.Fields{FieldTaskCount: strconv.Itoa(n)}
}

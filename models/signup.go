package models

import (
	"time"

	"volunteer-hub/internal/docstore"
)

// Signup exists exactly while its user holds a slot on the task. The
// document id is the user id.
type Signup struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func SignupFromDocument(doc docstore.Document) (Signup, error) {
	r := newFieldReader(doc.Path, doc.Fields)
	s := Signup{
		UserID:    doc.ID,
		CreatedAt: r.time(FieldCreatedAt, true),
	}
	if err := r.check(s); err != nil {
		return Signup{}, err
	}
	return s, nil
}

func SignupFields(now time.Time) docstore.Fields {
	return docstore.Fields{FieldCreatedAt: FormatTime(now)}
}

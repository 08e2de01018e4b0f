package models

import (
	"time"

	"volunteer-hub/internal/docstore"
)

type Announcement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title" validate:"required"`
	Message   string    `json:"message" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
}

type AnnouncementInput struct {
	Title   string `json:"title" validate:"required"`
	Message string `json:"message" validate:"required"`
}

func AnnouncementFromDocument(doc docstore.Document) (Announcement, error) {
	r := newFieldReader(doc.Path, doc.Fields)
	a := Announcement{
		ID:        doc.ID,
		Title:     r.string(FieldTitle, true),
		Message:   r.string(FieldMessage, true),
		CreatedAt: r.time(FieldCreatedAt, false),
		CreatedBy: r.string(FieldCreatedBy, false),
	}
	if err := r.check(a); err != nil {
		return Announcement{}, err
	}
	return a, nil
}

func (in AnnouncementInput) Fields(createdBy string, now time.Time) docstore.Fields {
	return docstore.Fields{
		FieldTitle:     in.Title,
		FieldMessage:   in.Message,
		FieldCreatedAt: FormatTime(now),
		FieldCreatedBy: createdBy,
	}
}

package models

import "volunteer-hub/internal/docstore"

const (
	EventsCollection        = "events"
	UsersCollection         = "users"
	AnnouncementsCollection = "announcements"

	tasksSegment   = "volunteerTasks"
	signupsSegment = "signups"
)

// Field names as stored in documents.
const (
	FieldTitle       = "title"
	FieldLocation    = "location"
	FieldDetails     = "details"
	FieldStartAt     = "startAt"
	FieldEndAt       = "endAt"
	FieldCreatedAt   = "createdAt"
	FieldCreatedBy   = "createdBy"
	FieldSlots       = "slots"
	FieldFilledCount = "filledCount"
	FieldName        = "name"
	FieldEmail       = "email"
	FieldRole        = "role"
	FieldMessage     = "message"
	FieldTaskCount   = "taskCount"
)

func EventPath(eventID string) string {
	return docstore.Join(EventsCollection, eventID)
}

func TasksPath(eventID string) string {
	return docstore.Join(EventsCollection, eventID, tasksSegment)
}

func TaskPath(eventID, taskID string) string {
	return docstore.Join(TasksPath(eventID), taskID)
}

func SignupsPath(eventID, taskID string) string {
	return docstore.Join(TaskPath(eventID, taskID), signupsSegment)
}

func SignupPath(eventID, taskID, userID string) string {
	return docstore.Join(SignupsPath(eventID, taskID), userID)
}

func UserPath(userID string) string {
	return docstore.Join(UsersCollection, userID)
}

func AnnouncementPath(id string) string {
	return docstore.Join(AnnouncementsCollection, id)
}

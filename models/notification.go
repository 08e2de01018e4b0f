package models

import "time"

const TaskUpdateType = "task_update"

// TaskUpdate is pushed to event-{eventId} after a signup or cancellation
// commits.
type TaskUpdate struct {
	Type      string    `json:"type"`
	EventID   string    `json:"event_id"`
	TaskID    string    `json:"task_id"`
	Operation string    `json:"operation"` // signup, cancel
	Timestamp time.Time `json:"timestamp"`
}

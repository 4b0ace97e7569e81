package agenda

import (
	"time"

	"github.com/google/uuid"
)

// Kind tags where a notification comes from.
type Kind string

const (
	KindDeadline Kind = "deadline"
	KindEvent    Kind = "event"
	KindFiling   Kind = "filing"
	KindTask     Kind = "task"
)

// Priority is the urgency tier of a notification.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityNormal   Priority = "normal"
)

// Notification is one entry of the dashboard feed. IDs are derived from the
// source records, so the same record always yields the same ID.
type Notification struct {
	ID       string     `json:"id"`
	Kind     Kind       `json:"kind"`
	Title    string     `json:"title"`
	Message  string     `json:"message"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	DaysLeft *int       `json:"days_left,omitempty"`
	Priority Priority   `json:"priority"`
	CaseID   *uuid.UUID `json:"case_id,omitempty"`
}

func notificationID(kind Kind, ids ...uuid.UUID) string {
	id := string(kind)
	for _, part := range ids {
		id += "-" + part.String()
	}
	return id
}

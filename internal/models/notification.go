package models

import "time"

// Well-known notification type tags produced by the workflow managers.
const (
	NotificationTypeTitleSubmitted  = "title_submitted"
	NotificationTypeTitleApproved   = "title_approved"
	NotificationTypeTitleRejected   = "title_rejected"
	NotificationTypeEvaluation      = "evaluation_recorded"
	NotificationTypeAdvisorAssigned = "advisor_assigned"
	NotificationTypeAdvisorRemoved  = "advisor_removed"
	NotificationTypeAnnouncement    = "announcement"
)

// Notification is an asynchronous notice to a single user. The engine only
// creates rows; after creation it is mutated by read-status toggles alone.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	Type      string    `db:"type" json:"type"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

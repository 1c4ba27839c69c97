package models

import "time"

// Message is a direct message between two users. Deletion is soft and
// per-party; a row disappears for a participant without affecting the other.
type Message struct {
	ID                string    `db:"id" json:"id"`
	SenderID          string    `db:"sender_id" json:"sender_id"`
	ReceiverID        string    `db:"receiver_id" json:"receiver_id"`
	Subject           string    `db:"subject" json:"subject"`
	Body              string    `db:"body" json:"body"`
	ParentMessageID   *string   `db:"parent_message_id" json:"parent_message_id,omitempty"`
	IsRead            bool      `db:"is_read" json:"is_read"`
	DeletedBySender   bool      `db:"deleted_by_sender" json:"-"`
	DeletedByReceiver bool      `db:"deleted_by_receiver" json:"-"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// MessageDetail enriches a message with participant display names.
type MessageDetail struct {
	Message
	SenderName   string `db:"sender_name" json:"sender_name"`
	ReceiverName string `db:"receiver_name" json:"receiver_name"`
}

// MessageablePeer is a user the caller is allowed to message.
type MessageablePeer struct {
	ID           string   `db:"id" json:"id"`
	FullName     string   `db:"full_name" json:"full_name"`
	Email        string   `db:"email" json:"email"`
	Role         UserRole `db:"role" json:"role"`
	DepartmentID *string  `db:"department_id" json:"department_id,omitempty"`
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gradlink/gradlink-api/internal/models"
)

// ErrNotParticipant signals a soft delete attempted by a non-participant.
var ErrNotParticipant = errors.New("not a participant of this message")

// MessageRepository handles persistence of direct messages.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository constructs the repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create persists a new message.
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO messages (id, sender_id, receiver_id, subject, body, parent_message_id, is_read, deleted_by_sender, deleted_by_receiver, created_at)
        VALUES (:id, :sender_id, :receiver_id, :subject, :body, :parent_message_id, :is_read, :deleted_by_sender, :deleted_by_receiver, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// FindByID returns a message by its ID.
func (r *MessageRepository) FindByID(ctx context.Context, id string) (*models.Message, error) {
	const query = `SELECT id, sender_id, receiver_id, subject, body, parent_message_id, is_read, deleted_by_sender, deleted_by_receiver, created_at
        FROM messages WHERE id = $1`
	var message models.Message
	if err := r.db.GetContext(ctx, &message, query, id); err != nil {
		return nil, err
	}
	return &message, nil
}

// ListConversation returns the exchange between two users as seen by the
// viewer, oldest first. Rows the viewer soft-deleted are hidden.
func (r *MessageRepository) ListConversation(ctx context.Context, viewerID, otherID string) ([]models.MessageDetail, error) {
	const query = `SELECT m.id, m.sender_id, m.receiver_id, m.subject, m.body, m.parent_message_id,
        m.is_read, m.deleted_by_sender, m.deleted_by_receiver, m.created_at,
        s.full_name AS sender_name, rc.full_name AS receiver_name
        FROM messages m
        JOIN users s ON s.id = m.sender_id
        JOIN users rc ON rc.id = m.receiver_id
        WHERE ((m.sender_id = $1 AND m.receiver_id = $2 AND m.deleted_by_sender = FALSE)
            OR (m.sender_id = $2 AND m.receiver_id = $1 AND m.deleted_by_receiver = FALSE))
        ORDER BY m.created_at ASC`
	var messages []models.MessageDetail
	if err := r.db.SelectContext(ctx, &messages, query, viewerID, otherID); err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	return messages, nil
}

// MarkRead marks a message as read; only the receiver may do so.
func (r *MessageRepository) MarkRead(ctx context.Context, id, receiverID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE WHERE id = $1 AND receiver_id = $2`, id, receiverID)
	if err != nil {
		return false, fmt.Errorf("mark message read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark message read result: %w", err)
	}
	return affected > 0, nil
}

// SoftDelete hides the message for one participant without touching the
// other's copy.
func (r *MessageRepository) SoftDelete(ctx context.Context, id, userID string) error {
	message, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	var query string
	switch userID {
	case message.SenderID:
		query = `UPDATE messages SET deleted_by_sender = TRUE WHERE id = $1`
	case message.ReceiverID:
		query = `UPDATE messages SET deleted_by_receiver = TRUE WHERE id = $1`
	default:
		return ErrNotParticipant
	}
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("soft delete message: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gradlink/gradlink-api/internal/models"
	"github.com/gradlink/gradlink-api/internal/policy"
	"github.com/gradlink/gradlink-api/internal/repository"
	appErrors "github.com/gradlink/gradlink-api/pkg/errors"
)

type messageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	FindByID(ctx context.Context, id string) (*models.Message, error)
	ListConversation(ctx context.Context, viewerID, otherID string) ([]models.MessageDetail, error)
	MarkRead(ctx context.Context, id, receiverID string) (bool, error)
	SoftDelete(ctx context.Context, id, userID string) error
}

type messageUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListActivePeers(ctx context.Context, departmentID, excludeID string, roles []models.UserRole) ([]models.MessageablePeer, error)
	ListActiveNonAdmin(ctx context.Context, excludeID string) ([]models.MessageablePeer, error)
}

// SendMessageRequest describes a message payload.
type SendMessageRequest struct {
	ReceiverID      string  `json:"receiver_id" validate:"required"`
	Subject         string  `json:"subject" validate:"required,max=255"`
	Body            string  `json:"body" validate:"required"`
	ParentMessageID *string `json:"parent_message_id,omitempty"`
}

// MessageService applies the messaging authorization policy at send and view
// time. Storage is plain CRUD; the policy decision is the engine's concern.
type MessageService struct {
	repo      messageRepository
	users     messageUserReader
	redis     *redis.Client
	peerTTL   time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMessageService constructs MessageService.
func NewMessageService(repo messageRepository, users messageUserReader, redisClient *redis.Client, peerTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *MessageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if peerTTL <= 0 {
		peerTTL = 5 * time.Minute
	}
	return &MessageService{repo: repo, users: users, redis: redisClient, peerTTL: peerTTL, validator: validate, logger: logger}
}

// Send delivers a message after the policy allows the sender-receiver pair.
func (s *MessageService) Send(ctx context.Context, senderID string, req SendMessageRequest) (*models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}

	sender, err := s.loadActor(ctx, senderID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.loadActor(ctx, req.ReceiverID)
	if err != nil {
		return nil, err
	}

	if !policy.CanMessage(sender, receiver) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "messaging this user is not allowed")
	}

	if req.ParentMessageID != nil {
		parent, err := s.repo.FindByID(ctx, *req.ParentMessageID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "parent message not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent message")
		}
		if parent.SenderID != senderID && parent.ReceiverID != senderID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot reply to a conversation you are not part of")
		}
	}

	message := &models.Message{
		SenderID:        senderID,
		ReceiverID:      req.ReceiverID,
		Subject:         req.Subject,
		Body:            req.Body,
		ParentMessageID: req.ParentMessageID,
	}
	if err := s.repo.Create(ctx, message); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create message")
	}
	return message, nil
}

// ListConversation returns the exchange between the viewer and another user,
// provided the pair may message at all.
func (s *MessageService) ListConversation(ctx context.Context, viewerID, otherID string) ([]models.MessageDetail, error) {
	viewer, err := s.loadActor(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	other, err := s.loadActor(ctx, otherID)
	if err != nil {
		return nil, err
	}
	if !policy.CanMessage(viewer, other) && !policy.CanMessage(other, viewer) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "viewing this conversation is not allowed")
	}

	messages, err := s.repo.ListConversation(ctx, viewerID, otherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conversation")
	}
	return messages, nil
}

// GetMessageableUsers enumerates exactly the users the caller may message,
// excluding admin tiers from the listing. Served from redis when fresh.
func (s *MessageService) GetMessageableUsers(ctx context.Context, userID string) ([]models.MessageablePeer, error) {
	key := messageablePeersKey(userID)
	if s.redis != nil {
		if raw, err := s.redis.Get(ctx, key).Bytes(); err == nil {
			var cached []models.MessageablePeer
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	caller, err := s.loadActor(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !caller.Active {
		return []models.MessageablePeer{}, nil
	}

	var peers []models.MessageablePeer
	if caller.Role.IsAdminTier() {
		// Admin tiers can reach any non-admin user; admin accounts
		// themselves stay unlisted.
		peers, err = s.users.ListActiveNonAdmin(ctx, userID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messageable users")
		}
	} else {
		if caller.DepartmentID == nil {
			return []models.MessageablePeer{}, nil
		}
		roles := policy.MessageablePeerRoles(caller.Role)
		peers, err = s.users.ListActivePeers(ctx, *caller.DepartmentID, userID, roles)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messageable users")
		}
	}

	if s.redis != nil {
		if raw, err := json.Marshal(peers); err == nil {
			if err := s.redis.Set(ctx, key, raw, s.peerTTL).Err(); err != nil {
				s.logger.Warn("failed to cache messageable peers", zap.Error(err), zap.String("user_id", userID))
			}
		}
	}
	return peers, nil
}

// MarkRead flags a message as read for its receiver.
func (s *MessageService) MarkRead(ctx context.Context, id, userID string) error {
	updated, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark message read")
	}
	if !updated {
		return appErrors.Clone(appErrors.ErrNotFound, "message not found")
	}
	return nil
}

// Delete soft-deletes the caller's copy of a message.
func (s *MessageService) Delete(ctx context.Context, id, userID string) error {
	if err := s.repo.SoftDelete(ctx, id, userID); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "message not found")
		case errors.Is(err, repository.ErrNotParticipant):
			return appErrors.Clone(appErrors.ErrForbidden, "not a participant of this message")
		default:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete message")
		}
	}
	return nil
}

func (s *MessageService) loadActor(ctx context.Context, userID string) (models.Actor, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Actor{}, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return models.Actor{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user.Actor(), nil
}

func messageablePeersKey(userID string) string {
	return fmt.Sprintf("messages:peers:%s", userID)
}

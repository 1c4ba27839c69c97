package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gradlink/gradlink-api/internal/models"
	appErrors "github.com/gradlink/gradlink-api/pkg/errors"
	"github.com/gradlink/gradlink-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) error
}

type departmentRoster interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListActiveIDsByDepartment(ctx context.Context, departmentID string, role *models.UserRole) ([]string, error)
}

// fanoutPayload is the job body for department-wide notices.
type fanoutPayload struct {
	UserID  string
	Title   string
	Message string
	Type    string
}

// NotificationService creates fire-and-forget notices and serves read views.
// Unread counts are cached in redis and invalidated on every write.
type NotificationService struct {
	repo   notificationRepository
	users  departmentRoster
	redis  *redis.Client
	queue  *jobs.Queue
	ttl    time.Duration
	logger *zap.Logger
}

// NewNotificationService constructs NotificationService. The fan-out queue is
// created here and must be started by the caller.
func NewNotificationService(repo notificationRepository, users departmentRoster, redisClient *redis.Client, queueCfg jobs.QueueConfig, unreadTTL time.Duration, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if unreadTTL <= 0 {
		unreadTTL = time.Minute
	}
	s := &NotificationService{repo: repo, users: users, redis: redisClient, ttl: unreadTTL, logger: logger}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("notification-fanout", s.handleFanoutJob, queueCfg)
	return s
}

// Queue exposes the fan-out queue for lifecycle management.
func (s *NotificationService) Queue() *jobs.Queue {
	return s.queue
}

// Notify inserts a notice for a single user. At-least-once: retried requests
// at the HTTP layer may create duplicates, which is acceptable.
func (s *NotificationService) Notify(ctx context.Context, userID, title, message, notificationType string) error {
	notification := &models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    notificationType,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

// NotifyDepartment fans a notice out to every active member of the head's
// department, optionally restricted to one role, through the worker queue.
func (s *NotificationService) NotifyDepartment(ctx context.Context, headID string, role *models.UserRole, title, message string) (int, error) {
	head, err := s.users.FindByID(ctx, headID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sender")
	}
	if head.DepartmentID == nil {
		return 0, appErrors.Clone(appErrors.ErrForbidden, "caller has no department")
	}

	ids, err := s.users.ListActiveIDsByDepartment(ctx, *head.DepartmentID, role)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list department members")
	}

	enqueued := 0
	for _, id := range ids {
		if id == headID {
			continue
		}
		job := jobs.Job{
			ID:   uuid.NewString(),
			Type: models.NotificationTypeAnnouncement,
			Payload: fanoutPayload{
				UserID:  id,
				Title:   title,
				Message: message,
				Type:    models.NotificationTypeAnnouncement,
			},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue fan-out notification", zap.Error(err), zap.String("user_id", id))
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

func (s *NotificationService) handleFanoutJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(fanoutPayload)
	if !ok {
		return fmt.Errorf("unexpected fan-out payload %T", job.Payload)
	}
	notification := &models.Notification{
		UserID:  payload.UserID,
		Title:   payload.Title,
		Message: payload.Message,
		Type:    payload.Type,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}
	s.invalidateUnread(ctx, payload.UserID)
	return nil
}

// List returns a user's notifications with pagination metadata.
func (s *NotificationService) List(ctx context.Context, userID string, page, pageSize int) ([]models.Notification, *models.Pagination, error) {
	notifications, total, err := s.repo.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return notifications, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// UnreadCount returns the unread notification count, served from redis when
// fresh.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	key := unreadCountKey(userID)
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, key).Int(); err == nil {
			return cached, nil
		}
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	if s.redis != nil {
		if err := s.redis.Set(ctx, key, count, s.ttl).Err(); err != nil {
			s.logger.Warn("failed to cache unread count", zap.Error(err), zap.String("user_id", userID))
		}
	}
	return count, nil
}

// MarkRead flags one notification read for its owner.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	updated, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if !updated {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

// MarkAllRead flags all of a user's notifications read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

func (s *NotificationService) invalidateUnread(ctx context.Context, userID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, unreadCountKey(userID)).Err(); err != nil {
		s.logger.Warn("failed to invalidate unread count cache", zap.Error(err), zap.String("user_id", userID))
	}
}

func unreadCountKey(userID string) string {
	return fmt.Sprintf("notifications:unread:%s", userID)
}

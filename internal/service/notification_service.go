package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tazhate/onlinebot/internal/domain"
	"github.com/tazhate/onlinebot/internal/storage"
)

// NotificationService is the Notifier backed by the sqlite store. A chat must
// be a subscriber with notifications enabled before anything is armed for it.
type NotificationService struct {
	storage *storage.Storage
	clock   Clock
}

func NewNotificationService(s *storage.Storage, clock Clock) *NotificationService {
	return &NotificationService{
		storage: s,
		clock:   clock,
	}
}

func (s *NotificationService) Arm(ctx context.Context, n domain.Notification) (string, error) {
	sub, err := s.storage.GetSubscriber(ctx, n.ChatID)
	if err != nil {
		return "", fmt.Errorf("%w: load subscriber: %w", domain.ErrSchedulingFailed, err)
	}
	if !sub.CanNotify() {
		return "", domain.ErrPermissionDenied
	}

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.Status = domain.NotificationPending
	n.Attempts = 0
	n.CreatedAt = s.clock.Now()

	if err := s.storage.CreateNotification(ctx, &n); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrSchedulingFailed, err)
	}
	return n.ID, nil
}

func (s *NotificationService) Cancel(ctx context.Context, id string) error {
	changed, err := s.storage.CancelNotification(ctx, id)
	if err != nil {
		return err
	}
	if !changed {
		slog.Debug("notification_cancel_noop", "id", id)
	}
	return nil
}

func (s *NotificationService) ListPending(ctx context.Context, chatID int64) ([]*domain.Notification, error) {
	return s.storage.ListPendingNotifications(ctx, chatID)
}

// Due returns pending notifications whose fire time has been reached.
func (s *NotificationService) Due(ctx context.Context) ([]*domain.Notification, error) {
	return s.storage.ListDueNotifications(ctx, s.clock.Now())
}

func (s *NotificationService) MarkDelivered(ctx context.Context, n *domain.Notification) error {
	now := s.clock.Now()
	n.Status = domain.NotificationDelivered
	n.Attempts++
	n.DeliveredAt = &now
	return s.storage.UpdateNotificationState(ctx, n)
}

// MarkFailed records a failed attempt. The notification stays pending until
// domain.MaxDeliveryAttempts is reached.
func (s *NotificationService) MarkFailed(ctx context.Context, n *domain.Notification, cause error) error {
	n.MarkAttemptFailed(cause)
	return s.storage.UpdateNotificationState(ctx, n)
}

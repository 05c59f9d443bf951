package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tazhate/onlinebot/internal/domain"
)

const ReminderBody = "Registration is starting soon!"

// Notifier arms and revokes one-shot notification triggers. It owns the set
// of pending notifications; callers never keep their own copy.
type Notifier interface {
	Arm(ctx context.Context, n domain.Notification) (string, error)
	Cancel(ctx context.Context, id string) error
	ListPending(ctx context.Context, chatID int64) ([]*domain.Notification, error)
}

// ComputeFireTime returns registrationStart minus lead. The result must be
// strictly after now.
func ComputeFireTime(registrationStart string, lead domain.LeadTime, now time.Time) (time.Time, error) {
	start, err := domain.ParseTimestamp(registrationStart)
	if err != nil {
		return time.Time{}, err
	}
	return fireTime(start, lead, now)
}

func fireTime(start time.Time, lead domain.LeadTime, now time.Time) (time.Time, error) {
	fireAt := start.Add(-lead.Duration())
	if !fireAt.After(now) {
		return time.Time{}, fmt.Errorf("fire time %s is not after %s: %w",
			fireAt.Format(time.RFC3339), now.Format(time.RFC3339), domain.ErrPastTrigger)
	}
	return fireAt, nil
}

func ReminderTitle(eventTitle string) string {
	return fmt.Sprintf("Reminder for %s", eventTitle)
}

type ReminderService struct {
	notifier Notifier
	clock    Clock
	newID    func() string
}

func NewReminderService(notifier Notifier, clock Clock) *ReminderService {
	return &ReminderService{
		notifier: notifier,
		clock:    clock,
		newID:    func() string { return uuid.New().String() },
	}
}

// Schedule arms a reminder for the registration start of event. A rejected
// request leaves no pending notification behind.
func (s *ReminderService) Schedule(ctx context.Context, chatID int64, event *domain.Event, lead domain.LeadTime) (*domain.ReminderRequest, error) {
	if !lead.Valid() {
		return nil, fmt.Errorf("%s: %w", time.Duration(lead), domain.ErrUnknownLeadTime)
	}

	start := event.RegistrationStart()
	if start.IsZero() {
		return nil, fmt.Errorf("event %d: %w: %w", event.ID, domain.ErrNoRegistration, domain.ErrUnparsableTimestamp)
	}

	fireAt, err := fireTime(start, lead, s.clock.Now())
	if err != nil {
		slog.Info("reminder_rejected", "chat_id", chatID, "event_id", event.ID, "lead", lead.Code(), "error", err)
		return nil, err
	}

	req := &domain.ReminderRequest{
		ID:       s.newID(),
		EventID:  event.ID,
		ChatID:   chatID,
		LeadTime: lead,
		FireAt:   fireAt,
		Title:    ReminderTitle(event.Title),
		Body:     ReminderBody,
	}

	id, err := s.notifier.Arm(ctx, domain.Notification{
		ID:      req.ID,
		ChatID:  chatID,
		EventID: event.ID,
		FireAt:  fireAt,
		Title:   req.Title,
		Body:    req.Body,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrPermissionDenied) && !errors.Is(err, domain.ErrSchedulingFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrSchedulingFailed, err)
		}
		slog.Info("reminder_rejected", "chat_id", chatID, "event_id", event.ID, "lead", lead.Code(), "error", err)
		return nil, err
	}
	req.ID = id

	slog.Info("reminder_scheduled", "id", req.ID, "chat_id", chatID, "event_id", event.ID,
		"lead", lead.Code(), "fire_at", fireAt.Format(time.RFC3339))
	return req, nil
}

// Cancel revokes a pending reminder. Unknown or already fired ids are not an error.
func (s *ReminderService) Cancel(ctx context.Context, id string) error {
	if err := s.notifier.Cancel(ctx, id); err != nil {
		return fmt.Errorf("cancel reminder: %w", err)
	}
	slog.Info("reminder_cancelled", "id", id)
	return nil
}

func (s *ReminderService) Pending(ctx context.Context, chatID int64) ([]*domain.Notification, error) {
	return s.notifier.ListPending(ctx, chatID)
}

// RejectionMessage maps scheduling errors to the text shown to the user.
func RejectionMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrPastTrigger):
		return "The selected reminder time has already passed."
	case errors.Is(err, domain.ErrPermissionDenied):
		return "Please enable notifications to set a reminder. Use /unmute."
	case errors.Is(err, domain.ErrNoRegistration):
		return "This event has no registration start."
	case errors.Is(err, domain.ErrUnparsableTimestamp):
		return "The registration time of this event could not be read."
	case errors.Is(err, domain.ErrUnknownLeadTime):
		return "Pick one of: 15 minutes, 30 minutes, 1 day."
	default:
		return "Could not schedule the reminder, try again later."
	}
}

func FormatPendingList(pending []*domain.Notification, loc *time.Location) string {
	if len(pending) == 0 {
		return "No pending reminders"
	}

	var sb strings.Builder
	for _, n := range pending {
		sb.WriteString(fmt.Sprintf("🔔 %s\n    %s\n", n.Title, n.FireAt.In(loc).Format("Mon 02.01.2006 15:04")))
	}
	return sb.String()
}

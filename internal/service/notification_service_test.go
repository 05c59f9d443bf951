package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tazhate/onlinebot/internal/domain"
	"github.com/tazhate/onlinebot/internal/storage"
)

func newTestStore(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(filepath.Join(t.TempDir(), "onlinebot.db"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNotificationService_ArmRequiresPermission(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
	svc := NewNotificationService(store, clock)

	n := domain.Notification{ChatID: 5, EventID: 1, FireAt: clock.Now().Add(time.Hour), Title: "Reminder for X"}

	if _, err := svc.Arm(ctx, n); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("Arm for unknown chat error = %v", err)
	}

	if err := store.UpsertSubscriber(ctx, &domain.Subscriber{ChatID: 5, NotificationsEnabled: false}); err != nil {
		t.Fatalf("UpsertSubscriber: %v", err)
	}
	if _, err := svc.Arm(ctx, n); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("Arm for muted chat error = %v", err)
	}

	if err := store.SetNotificationsEnabled(ctx, 5, true); err != nil {
		t.Fatalf("SetNotificationsEnabled: %v", err)
	}
	id, err := svc.Arm(ctx, n)
	if err != nil || id == "" {
		t.Fatalf("Arm = %q, %v", id, err)
	}

	pending, err := svc.ListPending(ctx, 5)
	if err != nil || len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("ListPending = %v, %v", pending, err)
	}
}

func TestNotificationService_DuplicateIDFailsScheduling(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	svc := NewNotificationService(store, &fixedClock{now: time.Now()})
	_ = store.UpsertSubscriber(ctx, &domain.Subscriber{ChatID: 1, NotificationsEnabled: true})

	n := domain.Notification{ID: "same", ChatID: 1, FireAt: time.Now().Add(time.Hour), Title: "t"}
	if _, err := svc.Arm(ctx, n); err != nil {
		t.Fatalf("first Arm: %v", err)
	}
	if _, err := svc.Arm(ctx, n); !errors.Is(err, domain.ErrSchedulingFailed) {
		t.Fatalf("duplicate Arm error = %v", err)
	}
}

func TestNotificationService_DueDeliveredAndFailed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
	svc := NewNotificationService(store, clock)
	_ = store.UpsertSubscriber(ctx, &domain.Subscriber{ChatID: 1, NotificationsEnabled: true})

	for _, id := range []string{"ok", "flaky"} {
		n := domain.Notification{ID: id, ChatID: 1, FireAt: clock.Now().Add(15 * time.Minute), Title: id}
		if _, err := svc.Arm(ctx, n); err != nil {
			t.Fatalf("Arm(%s): %v", id, err)
		}
	}

	if due, _ := svc.Due(ctx); len(due) != 0 {
		t.Fatalf("nothing should be due yet, got %d", len(due))
	}

	clock.Set(clock.Now().Add(20 * time.Minute))
	due, err := svc.Due(ctx)
	if err != nil || len(due) != 2 {
		t.Fatalf("Due = %v, %v", due, err)
	}

	for _, n := range due {
		if n.ID == "ok" {
			if err := svc.MarkDelivered(ctx, n); err != nil {
				t.Fatalf("MarkDelivered: %v", err)
			}
			continue
		}
		for i := 0; i < domain.MaxDeliveryAttempts; i++ {
			if err := svc.MarkFailed(ctx, n, errors.New("blocked by user")); err != nil {
				t.Fatalf("MarkFailed: %v", err)
			}
		}
	}

	if due, _ := svc.Due(ctx); len(due) != 0 {
		t.Fatalf("terminal notifications still due: %d", len(due))
	}
	flaky, _ := store.GetNotification(ctx, "flaky")
	if flaky.Status != domain.NotificationFailed || flaky.Attempts != domain.MaxDeliveryAttempts {
		t.Fatalf("flaky = %+v", flaky)
	}

	// Cancelling a delivered notification is a no-op, not an error.
	if err := svc.Cancel(ctx, "ok"); err != nil {
		t.Fatalf("Cancel(delivered): %v", err)
	}
}

func TestReminderService_WithSQLiteNotifier(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
	_ = store.UpsertSubscriber(ctx, &domain.Subscriber{ChatID: 3, NotificationsEnabled: true})

	reminders := NewReminderService(NewNotificationService(store, clock), clock)
	req, err := reminders.Schedule(ctx, 3, newEventWithRegistration(10, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)), domain.LeadTime15Minutes)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	pending, _ := reminders.Pending(ctx, 3)
	if len(pending) != 1 || pending[0].ID != req.ID || !pending[0].FireAt.Equal(req.FireAt) {
		t.Fatalf("pending = %+v", pending)
	}

	if err := reminders.Cancel(ctx, req.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := reminders.Cancel(ctx, req.ID); err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
	pending, _ = reminders.Pending(ctx, 3)
	if len(pending) != 0 {
		t.Fatalf("pending after cancel = %d", len(pending))
	}
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tazhate/onlinebot/config"
	"github.com/tazhate/onlinebot/internal/domain"
	"github.com/tazhate/onlinebot/internal/email"
	"github.com/tazhate/onlinebot/internal/service"
	"github.com/tazhate/onlinebot/internal/storage"
)

const (
	refreshSpec  = "*/15 * * * *"
	dispatchSpec = "* * * * *"
	jobTimeout   = 2 * time.Minute
	digestWindow = 24 * time.Hour
)

type MessageSender interface {
	SendMessage(chatID int64, text string) error
}

type Scheduler struct {
	cron          *cron.Cron
	cfg           *config.Config
	storage       *storage.Storage
	clock         service.Clock
	events        *service.EventService
	notifications *service.NotificationService
	sender        MessageSender
	mailer        email.Sender
	eventURL      func(int) string
}

func New(cfg *config.Config, store *storage.Storage, clock service.Clock, events *service.EventService,
	notifications *service.NotificationService, mailer email.Sender, eventURL func(int) string) *Scheduler {
	return &Scheduler{
		cron:          cron.New(cron.WithLocation(cfg.Timezone)),
		cfg:           cfg,
		storage:       store,
		clock:         clock,
		events:        events,
		notifications: notifications,
		mailer:        mailer,
		eventURL:      eventURL,
	}
}

func (s *Scheduler) SetSender(sender MessageSender) {
	s.sender = sender
}

// Start registers the jobs and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	digestSpec, err := config.DailySpec(s.cfg.DigestTime)
	if err != nil {
		return fmt.Errorf("digest schedule: %w", err)
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"dispatch", dispatchSpec, s.DispatchDue},
		{"refresh", refreshSpec, s.events.Refresh},
		{"digest", digestSpec, s.SendDigest},
	}
	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.spec, s.wrap(ctx, job.name, job.run)); err != nil {
			return fmt.Errorf("add %s job: %w", job.name, err)
		}
	}

	s.cron.Start()
	slog.Info("scheduler_started", "timezone", s.cfg.Timezone.String(), "digest", s.cfg.DigestTime)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler_stopped")
}

func (s *Scheduler) wrap(ctx context.Context, name string, run func(context.Context) error) func() {
	return func() {
		jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
		defer cancel()
		if err := run(jobCtx); err != nil {
			slog.Error("scheduler_job_failed", "job", name, "error", err)
		}
	}
}

// DispatchDue delivers every pending notification whose fire time has passed.
// A notification for a chat that has since muted the bot is cancelled.
func (s *Scheduler) DispatchDue(ctx context.Context) error {
	if s.sender == nil {
		return nil
	}

	due, err := s.notifications.Due(ctx)
	if err != nil {
		return fmt.Errorf("list due notifications: %w", err)
	}

	var errs []error
	for _, n := range due {
		sub, err := s.storage.GetSubscriber(ctx, n.ChatID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !sub.CanNotify() {
			slog.Info("notification_dropped", "id", n.ID, "chat_id", n.ChatID)
			if err := s.notifications.Cancel(ctx, n.ID); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		if err := s.sender.SendMessage(n.ChatID, s.reminderText(n)); err != nil {
			slog.Warn("notification_send_failed", "id", n.ID, "chat_id", n.ChatID, "attempt", n.Attempts+1, "error", err)
			if err := s.notifications.MarkFailed(ctx, n, err); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if err := s.notifications.MarkDelivered(ctx, n); err != nil {
			errs = append(errs, err)
		}
		slog.Info("notification_delivered", "id", n.ID, "chat_id", n.ChatID, "event_id", n.EventID)

		if sub.Email != "" {
			s.emailReminder(ctx, sub.Email, n)
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) reminderText(n *domain.Notification) string {
	text := fmt.Sprintf("🔔 <b>%s</b>\n\n%s", n.Title, n.Body)
	if n.EventID > 0 && s.eventURL != nil {
		text += "\n" + s.eventURL(n.EventID)
	}
	return text
}

// Email is best effort: the Telegram delivery already counted.
func (s *Scheduler) emailReminder(ctx context.Context, to string, n *domain.Notification) {
	if s.mailer == nil {
		return
	}
	var url string
	if n.EventID > 0 && s.eventURL != nil {
		url = s.eventURL(n.EventID)
	}
	subject, body := email.RenderReminder(n.Title, n.Body, url)
	if _, err := s.mailer.Send(ctx, email.SendRequest{To: []string{to}, Subject: subject, HTML: body}); err != nil {
		slog.Warn("reminder_email_failed", "id", n.ID, "error", err)
	}
}

// SendDigest tells every enabled subscriber about registrations opening in
// the next 24 hours. Nothing is sent when there are none.
func (s *Scheduler) SendDigest(ctx context.Context) error {
	if s.sender == nil {
		return nil
	}

	now := s.clock.Now()
	var opening []domain.Event
	for _, e := range s.events.NextRegistrations(-1) {
		if e.RegistrationStart().Sub(now) > digestWindow {
			break
		}
		opening = append(opening, e)
	}
	if len(opening) == 0 {
		return nil
	}

	subs, err := s.storage.ListSubscribers(ctx, true)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}

	text := "☀️ <b>Registrations opening today</b>\n\n" + service.FormatRegistrationList(opening, s.cfg.Timezone)

	var mails []email.SendRequest
	subject, body := email.RenderDigest(digestLines(opening, s.cfg.Timezone))
	for _, sub := range subs {
		if err := s.sender.SendMessage(sub.ChatID, text); err != nil {
			slog.Warn("digest_send_failed", "chat_id", sub.ChatID, "error", err)
		}
		if sub.Email != "" {
			mails = append(mails, email.SendRequest{To: []string{sub.Email}, Subject: subject, HTML: body})
		}
	}

	if len(mails) > 0 && s.mailer != nil {
		if _, err := s.mailer.SendBatch(ctx, mails); err != nil {
			slog.Warn("digest_email_failed", "error", err)
		}
	}

	slog.Info("digest_sent", "events", len(opening), "subscribers", len(subs))
	return nil
}

func digestLines(events []domain.Event, loc *time.Location) []string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		title := strings.NewReplacer("*", `\*`, "_", `\_`).Replace(e.Title)
		lines = append(lines, fmt.Sprintf("**%s** opens %s", title, e.RegistrationStart().In(loc).Format("15:04")))
	}
	return lines
}

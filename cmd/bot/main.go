package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tazhate/onlinebot/config"
	"github.com/tazhate/onlinebot/internal/bot"
	"github.com/tazhate/onlinebot/internal/clients/caldav"
	"github.com/tazhate/onlinebot/internal/clients/online"
	"github.com/tazhate/onlinebot/internal/email"
	"github.com/tazhate/onlinebot/internal/scheduler"
	"github.com/tazhate/onlinebot/internal/service"
	"github.com/tazhate/onlinebot/internal/storage"
)

const careerCacheTTL = 30 * time.Minute

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("storage_init_failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	clock := service.SystemClock{Location: cfg.Timezone}

	// Event sources
	onlineClient := online.NewClient(cfg.EventsAPIURL, cfg.CareerAPIURL, cfg.EventsPageSize, cfg.EventsMaxPages)
	sources := []service.EventSource{onlineClient}
	calClient := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalDAVCalendarPath, cfg.Timezone)
	if calClient.IsConfigured() {
		sources = append(sources, calClient)
		slog.Info("caldav_source_enabled", "url", cfg.CalDAVURL)
	}

	// Services
	eventSvc := service.NewEventService(clock, sources...)
	calendarSvc := service.NewCalendarService(eventSvc, clock, cfg.WeekStart, cfg.AllowPastMonths)
	careerSvc := service.NewCareerService(onlineClient, clock, careerCacheTTL)
	notificationSvc := service.NewNotificationService(store, clock)
	reminderSvc := service.NewReminderService(notificationSvc, clock)

	var mailer email.Sender = email.NewNoopSender()
	if cfg.ResendAPIKey != "" {
		mailer = email.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom)
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), time.Minute)
	if err := eventSvc.Refresh(startupCtx); err != nil {
		// The scheduler retries every 15 minutes
		slog.Warn("initial_refresh_failed", "error", err)
	}
	startupCancel()

	tgBot, err := bot.New(cfg, store, clock, eventSvc, calendarSvc, careerSvc, reminderSvc)
	if err != nil {
		slog.Error("bot_init_failed", "error", err)
		os.Exit(1)
	}

	if err := tgBot.SetupWebhook(); err != nil {
		slog.Error("webhook_setup_failed", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(cfg, store, clock, eventSvc, notificationSvc, mailer, online.EventURL)
	sched.SetSender(tgBot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			slog.Error("scheduler_failed", "error", err)
		}
	}()

	go func() {
		if err := tgBot.Start(ctx); err != nil {
			slog.Error("bot_failed", "error", err)
		}
	}()

	slog.Info("onlinebot_started", "version", cfg.AppVersion, "timezone", cfg.Timezone.String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting_down")

	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := tgBot.Stop(shutdownCtx); err != nil {
		slog.Error("bot_stop_failed", "error", err)
	}

	slog.Info("onlinebot_stopped")
}

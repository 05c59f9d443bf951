package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tazhate/onlinebot/config"
	"github.com/tazhate/onlinebot/internal/clients/online"
	"github.com/tazhate/onlinebot/internal/service"
	"github.com/tazhate/onlinebot/internal/storage"
)

const updateTimeout = 30 * time.Second

type Bot struct {
	api       *tgbotapi.BotAPI
	cfg       *config.Config
	storage   *storage.Storage
	clock     service.Clock
	events    *service.EventService
	calendar  *service.CalendarService
	careers   *service.CareerService
	reminders *service.ReminderService
	eventURL  func(int) string
	mux       *http.ServeMux
	server    *http.Server
}

func New(cfg *config.Config, store *storage.Storage, clock service.Clock, events *service.EventService,
	calendar *service.CalendarService, careers *service.CareerService, reminders *service.ReminderService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	slog.Info("telegram_authorized", "username", api.Self.UserName)

	bot := newBot(cfg, store, clock, events, calendar, careers, reminders)
	bot.api = api
	bot.setCommands()

	return bot, nil
}

// newBot wires everything except the Telegram client.
func newBot(cfg *config.Config, store *storage.Storage, clock service.Clock, events *service.EventService,
	calendar *service.CalendarService, careers *service.CareerService, reminders *service.ReminderService) *Bot {
	b := &Bot{
		cfg:       cfg,
		storage:   store,
		clock:     clock,
		events:    events,
		calendar:  calendar,
		careers:   careers,
		reminders: reminders,
		eventURL:  online.EventURL,
		mux:       http.NewServeMux(),
	}

	b.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	b.SetupAPI()

	return b
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "events", Description: "📅 Upcoming events"},
		{Command: "registrations", Description: "📝 Upcoming registrations"},
		{Command: "calendar", Description: "🗓 Month calendar"},
		{Command: "reminders", Description: "🔔 My reminders"},
		{Command: "careers", Description: "💼 Career opportunities"},
		{Command: "help", Description: "❓ Help"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		slog.Warn("set_commands_failed", "error", err)
	}
}

// SetupWebhook registers WebhookURL with Telegram. Without a webhook URL the
// bot falls back to long polling and any stale webhook is removed.
func (b *Bot) SetupWebhook() error {
	if b.cfg.WebhookURL == "" {
		if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			return fmt.Errorf("delete webhook: %w", err)
		}
		return nil
	}

	webhookURL := b.cfg.WebhookURL + "/bot"

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}

	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}
	if info.LastErrorDate != 0 {
		slog.Warn("webhook_last_error", "message", info.LastErrorMessage)
	}

	slog.Info("webhook_set", "url", webhookURL)
	return nil
}

// Start serves HTTP and consumes updates until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	var updates tgbotapi.UpdatesChannel
	if b.cfg.WebhookURL != "" {
		ch := make(chan tgbotapi.Update, b.api.Buffer)
		b.mux.HandleFunc("/bot", func(w http.ResponseWriter, r *http.Request) {
			update, err := b.api.HandleUpdate(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			ch <- *update
		})
		updates = ch
	} else {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates = b.api.GetUpdatesChan(u)
		defer b.api.StopReceivingUpdates()
	}

	b.server = &http.Server{
		Addr:              ":" + b.cfg.ServerPort,
		Handler:           b.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("http_server_started", "port", b.cfg.ServerPort, "webhook", b.cfg.WebhookURL != "")
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http_server_failed", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) Stop(ctx context.Context) error {
	if b.server != nil {
		return b.server.Shutdown(ctx)
	}
	return nil
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

// editMessage replaces text and keyboard of a message sent earlier.
func (b *Bot) editMessage(chatID int64, msgID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	edit.ReplyMarkup = keyboard
	if _, err := b.api.Send(edit); err != nil {
		slog.Warn("edit_message_failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		slog.Debug("callback_answer_failed", "error", err)
	}
}

// Handler exposes the HTTP routes (health, webhook and REST API).
func (b *Bot) Handler() http.Handler {
	return b.mux
}

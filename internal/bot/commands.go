package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tazhate/onlinebot/internal/clients/online"
	"github.com/tazhate/onlinebot/internal/domain"
	"github.com/tazhate/onlinebot/internal/service"
)

const listSize = 3

const welcomeText = `👋 <b>Welcome!</b>

I keep track of Online events and can remind you before registration opens.

/events — upcoming events
/registrations — upcoming registrations
/calendar — month calendar
/help — all commands`

const whatsNewText = `✨ <b>What's new in %s</b>

• Reminders can also be sent by email: /email you@example.com
• Daily digest of registrations opening within 24 hours
• Your reminders are available as a calendar feed`

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, sub *domain.Subscriber) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.cmdStart(ctx, chatID, sub)
	case "help":
		b.cmdHelp(chatID)
	case "events":
		b.cmdEvents(chatID)
	case "registrations":
		b.cmdRegistrations(chatID)
	case "calendar":
		b.cmdCalendar(chatID)
	case "careers":
		b.cmdCareers(ctx, chatID)
	case "reminders":
		b.cmdReminders(ctx, chatID)
	case "remind":
		b.cmdRemind(chatID, args)
	case "email":
		b.cmdEmail(ctx, chatID, args)
	case "mute":
		b.cmdNotifications(ctx, chatID, false)
	case "unmute":
		b.cmdNotifications(ctx, chatID, true)
	default:
		b.SendMessage(chatID, "Unknown command. /help lists them all")
	}
}

// cmdStart shows the welcome text once and the release notes whenever the
// subscriber has not seen the running version yet.
func (b *Bot) cmdStart(ctx context.Context, chatID int64, sub *domain.Subscriber) {
	if sub.WelcomeShown && sub.ViewedVersion == b.cfg.AppVersion {
		b.SendMessage(chatID, "👋 Welcome back! /help lists the commands")
		return
	}

	if !sub.WelcomeShown {
		b.SendMessage(chatID, welcomeText)
	}
	if sub.ViewedVersion != b.cfg.AppVersion {
		b.SendMessage(chatID, fmt.Sprintf(whatsNewText, b.cfg.AppVersion))
	}

	if err := b.storage.MarkWelcomeShown(ctx, chatID, b.cfg.AppVersion); err != nil {
		slog.Error("mark_welcome_failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) cmdHelp(chatID int64) {
	text := `<b>Commands:</b>

<b>Events</b>
/events — next events
/registrations — next registrations
/calendar — month calendar
/careers — career opportunities

<b>Reminders</b>
/remind ID — remind me before registration opens
/reminders — pending reminders
/email address — also send reminders by email (/email off to stop)
/mute, /unmute — turn notifications off or on`

	b.SendMessage(chatID, text)
}

func (b *Bot) cmdEvents(chatID int64) {
	events := b.events.NextEvents(listSize)
	b.SendMessage(chatID, "<b>Upcoming events</b>\n\n"+service.FormatEventList(events, b.cfg.Timezone, b.eventURL))
}

func (b *Bot) cmdRegistrations(chatID int64) {
	events := b.events.NextRegistrations(listSize)
	text := "<b>Upcoming registrations</b>\n\n" + service.FormatRegistrationList(events, b.cfg.Timezone)

	if kb := registrationsKeyboard(events); kb != nil {
		b.SendMessageWithKeyboard(chatID, text, *kb)
		return
	}
	b.SendMessage(chatID, text)
}

func (b *Bot) cmdCalendar(chatID int64) {
	text, kb := b.renderCalendar(b.calendar.CurrentMonth(), 0, nil)
	b.SendMessageWithKeyboard(chatID, text, kb)
}

func (b *Bot) cmdCareers(ctx context.Context, chatID int64) {
	careers, err := b.careers.List(ctx)
	if err != nil {
		slog.Error("list_careers_failed", "error", err)
		b.SendMessage(chatID, "❌ Could not load career opportunities")
		return
	}
	if len(careers) == 0 {
		b.SendMessage(chatID, "No career opportunities right now")
		return
	}

	var sb strings.Builder
	sb.WriteString("<b>Career opportunities</b>\n\n")
	for _, c := range careers {
		sb.WriteString(fmt.Sprintf("💼 <b>%s</b> — %s\n    %s\n", escapeHTML(c.Title), escapeHTML(c.Company), online.CareerURL(c.ID)))
	}
	b.SendMessage(chatID, sb.String())
}

func (b *Bot) cmdReminders(ctx context.Context, chatID int64) {
	pending, err := b.reminders.Pending(ctx, chatID)
	if err != nil {
		slog.Error("list_reminders_failed", "chat_id", chatID, "error", err)
		b.SendMessage(chatID, "❌ Could not load your reminders")
		return
	}

	text := "<b>Your reminders</b>\n\n" + service.FormatPendingList(pending, b.cfg.Timezone)
	if kb := remindersKeyboard(pending); kb != nil {
		b.SendMessageWithKeyboard(chatID, text, *kb)
		return
	}
	b.SendMessage(chatID, text)
}

func (b *Bot) cmdRemind(chatID int64, args string) {
	if args == "" {
		b.cmdRegistrations(chatID)
		return
	}

	id, err := strconv.Atoi(strings.TrimPrefix(args, "#"))
	if err != nil {
		b.SendMessage(chatID, "Usage: /remind 1234")
		return
	}

	event, err := b.events.Find(id)
	if err != nil {
		b.SendMessage(chatID, "Event not found")
		return
	}
	if !event.HasRegistration() {
		b.SendMessage(chatID, service.RejectionMessage(domain.ErrNoRegistration))
		return
	}

	text := fmt.Sprintf("🔔 <b>%s</b>\nRegistration opens %s\n\nHow long before?",
		escapeHTML(event.Title), event.RegistrationStart().In(b.cfg.Timezone).Format("Mon 02.01.2006 15:04"))
	b.SendMessageWithKeyboard(chatID, text, leadTimeKeyboard(event.ID))
}

func (b *Bot) cmdEmail(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.SendMessage(chatID, "Usage: /email you@example.com or /email off")
		return
	}

	address := ""
	if !strings.EqualFold(args, "off") {
		parsed, err := mail.ParseAddress(args)
		if err != nil {
			b.SendMessage(chatID, "That does not look like an email address")
			return
		}
		address = parsed.Address
	}

	if err := b.storage.SetSubscriberEmail(ctx, chatID, address); err != nil {
		slog.Error("set_email_failed", "chat_id", chatID, "error", err)
		b.SendMessage(chatID, "❌ Could not save the address")
		return
	}

	if address == "" {
		b.SendMessage(chatID, "📭 Email reminders turned off")
		return
	}
	b.SendMessage(chatID, "📬 Reminders will also go to "+escapeHTML(address))
}

func (b *Bot) cmdNotifications(ctx context.Context, chatID int64, enabled bool) {
	if err := b.storage.SetNotificationsEnabled(ctx, chatID, enabled); err != nil {
		slog.Error("set_notifications_failed", "chat_id", chatID, "error", err)
		b.SendMessage(chatID, "❌ Could not update notification settings")
		return
	}

	if enabled {
		b.SendMessage(chatID, "🔔 Notifications enabled")
		return
	}
	b.SendMessage(chatID, "🔕 Notifications disabled. Pending reminders will not be delivered")
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tazhate/onlinebot/internal/domain"
	"github.com/tazhate/onlinebot/internal/service"
)

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if !b.cfg.IsAllowedChat(chatID) {
		b.SendMessage(chatID, "⛔ Access denied")
		return
	}

	if !msg.IsCommand() {
		b.SendMessage(chatID, "/help lists what I can do")
		return
	}

	sub, err := b.ensureSubscriber(ctx, chatID, displayName(msg.From))
	if err != nil {
		slog.Error("subscriber_register_failed", "chat_id", chatID, "error", err)
		b.SendMessage(chatID, "❌ Something went wrong, try again later")
		return
	}

	b.handleCommand(ctx, msg, sub)
}

// ensureSubscriber registers chats on first contact with notifications on.
func (b *Bot) ensureSubscriber(ctx context.Context, chatID int64, name string) (*domain.Subscriber, error) {
	sub, err := b.storage.GetSubscriber(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		return sub, nil
	}

	sub = &domain.Subscriber{
		ChatID:               chatID,
		Name:                 name,
		NotificationsEnabled: true,
	}
	if err := b.storage.UpsertSubscriber(ctx, sub); err != nil {
		return nil, err
	}

	slog.Info("subscriber_registered", "chat_id", chatID, "name", name)
	return sub, nil
}

func displayName(from *tgbotapi.User) string {
	if from == nil {
		return ""
	}
	name := from.FirstName
	if from.LastName != "" {
		name += " " + from.LastName
	}
	return name
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	msgID := callback.Message.MessageID

	if !b.cfg.IsAllowedChat(chatID) {
		b.answer(callback.ID, "⛔ Access denied")
		return
	}

	parts := strings.SplitN(callback.Data, ":", 3)

	switch parts[0] {
	case noopData:
		b.answer(callback.ID, "")

	case "cal":
		// cal:YYYY-MM
		month, err := domain.ParseMonth(arg(parts, 1))
		if err != nil {
			b.answer(callback.ID, "")
			return
		}
		if current := b.calendar.CurrentMonth(); month.Before(current) && !b.cfg.AllowPastMonths {
			month = current
		}
		text, kb := b.renderCalendar(month, 0, nil)
		b.answer(callback.ID, "")
		b.editMessage(chatID, msgID, text, &kb)

	case "day":
		// day:YYYY-MM-DD
		day, err := time.ParseInLocation("2006-01-02", arg(parts, 1), b.cfg.Timezone)
		if err != nil {
			b.answer(callback.ID, "")
			return
		}
		events, ok := b.calendar.DayEvents(day)
		if !ok {
			b.answer(callback.ID, "That day has passed")
			return
		}
		text, kb := b.renderCalendar(domain.MonthOf(day), day.Day(), events)
		b.answer(callback.ID, "")
		b.editMessage(chatID, msgID, text, &kb)

	case "rem":
		// rem:eventID
		event, ok := b.callbackEvent(callback, arg(parts, 1))
		if !ok {
			return
		}
		b.answer(callback.ID, "")
		text := fmt.Sprintf("🔔 <b>%s</b>\nRegistration opens %s\n\nHow long before?",
			escapeHTML(event.Title), event.RegistrationStart().In(b.cfg.Timezone).Format("Mon 02.01.2006 15:04"))
		kb := leadTimeKeyboard(event.ID)
		b.editMessage(chatID, msgID, text, &kb)

	case "lead":
		// lead:eventID:code
		event, ok := b.callbackEvent(callback, arg(parts, 1))
		if !ok {
			return
		}
		lead, err := domain.ParseLeadTime(arg(parts, 2))
		if err != nil {
			b.answer(callback.ID, service.RejectionMessage(err))
			return
		}
		if _, err := b.ensureSubscriber(ctx, chatID, displayName(callback.From)); err != nil {
			slog.Error("subscriber_register_failed", "chat_id", chatID, "error", err)
		}

		req, err := b.reminders.Schedule(ctx, chatID, event, lead)
		if err != nil {
			b.answer(callback.ID, "")
			b.editMessage(chatID, msgID, "❌ "+service.RejectionMessage(err), nil)
			return
		}
		b.answer(callback.ID, "✅ Reminder set")
		b.editMessage(chatID, msgID, fmt.Sprintf("✅ I will remind you about <b>%s</b> at %s",
			escapeHTML(event.Title), req.FireAt.In(b.cfg.Timezone).Format("Mon 02.01.2006 15:04")), nil)

	case "cancel":
		// cancel:notificationID
		if err := b.reminders.Cancel(ctx, arg(parts, 1)); err != nil {
			slog.Error("cancel_reminder_failed", "chat_id", chatID, "error", err)
			b.answer(callback.ID, "❌ Could not cancel")
			return
		}
		b.answer(callback.ID, "Reminder cancelled")

		pending, err := b.reminders.Pending(ctx, chatID)
		if err != nil {
			return
		}
		b.editMessage(chatID, msgID, "<b>Your reminders</b>\n\n"+service.FormatPendingList(pending, b.cfg.Timezone),
			remindersKeyboard(pending))

	default:
		b.answer(callback.ID, "")
	}
}

func (b *Bot) callbackEvent(callback *tgbotapi.CallbackQuery, raw string) (*domain.Event, bool) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		b.answer(callback.ID, "")
		return nil, false
	}
	event, err := b.events.Find(id)
	if err != nil {
		b.answer(callback.ID, "Event not found")
		return nil, false
	}
	return event, true
}

// renderCalendar returns the calendar message. When selectedDay is set the
// events of that day are listed under the header.
func (b *Bot) renderCalendar(month domain.Month, selectedDay int, dayEvents []domain.Event) (string, tgbotapi.InlineKeyboardMarkup) {
	cells := b.calendar.Grid(month, selectedDay)
	kb := calendarKeyboard(month, cells, b.calendar.FirstWeekday(),
		b.calendar.CanNavigate(month, -1), b.calendar.CanNavigate(month, 1))

	text := "🗓 <b>" + month.Label() + "</b>\nDays marked • have events."
	if selectedDay > 0 {
		day := month.FirstDay(b.cfg.Timezone).AddDate(0, 0, selectedDay-1)
		text += "\n\n<b>" + day.Format("Monday 02.01") + "</b>\n"
		if len(dayEvents) == 0 {
			text += "No events"
		}
		for _, e := range dayEvents {
			text += fmt.Sprintf("• %s %s\n", e.FormatTime(b.cfg.Timezone), escapeHTML(e.Title))
		}
	}
	return text, kb
}

func arg(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

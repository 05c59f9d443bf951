package bot

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tazhate/onlinebot/internal/domain"
)

const noopData = "noop"

// calendarKeyboard renders a month grid. Past days and padding are inert;
// arrows appear only when the month can actually change in that direction.
func calendarKeyboard(month domain.Month, cells []domain.DayCell, firstWeekday time.Weekday, canPrev, canNext bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	var nav []tgbotapi.InlineKeyboardButton
	if canPrev {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("◀️", "cal:"+month.AddMonths(-1).String()))
	}
	nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(month.Label(), noopData))
	if canNext {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("▶️", "cal:"+month.AddMonths(1).String()))
	}
	rows = append(rows, nav)

	var header []tgbotapi.InlineKeyboardButton
	for i := 0; i < 7; i++ {
		wd := time.Weekday((int(firstWeekday) + i) % 7)
		header = append(header, tgbotapi.NewInlineKeyboardButtonData(wd.String()[:2], noopData))
	}
	rows = append(rows, header)

	var week []tgbotapi.InlineKeyboardButton
	for _, c := range cells {
		week = append(week, dayButton(c))
		if len(week) == 7 {
			rows = append(rows, week)
			week = nil
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, tgbotapi.NewInlineKeyboardButtonData(" ", noopData))
		}
		rows = append(rows, week)
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func dayButton(c domain.DayCell) tgbotapi.InlineKeyboardButton {
	if c.IsPadding() {
		return tgbotapi.NewInlineKeyboardButtonData(" ", noopData)
	}

	label := strconv.Itoa(c.Day)
	switch {
	case c.IsSelected:
		label = "[" + label + "]"
	case c.IsToday:
		label = "(" + label + ")"
	}
	if c.HasEvent {
		label += "•"
	}

	if c.IsPast {
		return tgbotapi.NewInlineKeyboardButtonData(label, noopData)
	}
	return tgbotapi.NewInlineKeyboardButtonData(label, "day:"+c.Date.Format("2006-01-02"))
}

func leadTimeKeyboard(eventID int) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, lead := range domain.LeadTimes() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			"⏰ "+lead.String(),
			fmt.Sprintf("lead:%d:%s", eventID, lead.Code()),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// Registrations list with a remind button per event
func registrationsKeyboard(events []domain.Event) *tgbotapi.InlineKeyboardMarkup {
	if len(events) == 0 {
		return nil
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, e := range events {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔔 "+truncate(e.Title, 30), fmt.Sprintf("rem:%d", e.ID)),
		))
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &keyboard
}

func remindersKeyboard(pending []*domain.Notification) *tgbotapi.InlineKeyboardMarkup {
	if len(pending) == 0 {
		return nil
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, n := range pending {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ "+truncate(n.Title, 30), "cancel:"+n.ID),
		))
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &keyboard
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}

package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/tazhate/onlinebot/internal/domain"
	"github.com/tazhate/onlinebot/internal/service"
)

func TestCalendarKeyboard(t *testing.T) {
	t.Parallel()

	month := domain.Month{Year: 2024, Month: time.February}
	today := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	events := []domain.Event{{ID: 1, EventStart: time.Date(2024, 2, 14, 18, 0, 0, 0, time.UTC)}}
	cells := service.BuildMonthGrid(month, events, 20, today, time.Monday)

	kb := calendarKeyboard(month, cells, time.Monday, false, true)
	rows := kb.InlineKeyboard

	nav := rows[0]
	if len(nav) != 2 || nav[0].Text != "February 2024" || *nav[1].CallbackData != "cal:2024-03" {
		t.Fatalf("nav row = %+v", nav)
	}
	if rows[1][0].Text != "Mo" || rows[1][6].Text != "Su" {
		t.Fatalf("header = %s..%s", rows[1][0].Text, rows[1][6].Text)
	}

	// 3 padding cells + 29 days = 32 cells, five weeks.
	if len(rows) != 2+5 {
		t.Fatalf("rows = %d", len(rows))
	}
	for _, row := range rows[2:] {
		if len(row) != 7 {
			t.Fatalf("week row has %d buttons", len(row))
		}
	}

	byLabel := map[string]string{}
	for _, row := range rows[2:] {
		for _, btn := range row {
			byLabel[btn.Text] = *btn.CallbackData
		}
	}
	if byLabel["5"] != noopData {
		t.Fatalf("past day must be inert, got %q", byLabel["5"])
	}
	if byLabel["(10)"] != "day:2024-02-10" {
		t.Fatalf("today = %q", byLabel["(10)"])
	}
	if byLabel["14•"] != "day:2024-02-14" {
		t.Fatalf("event day = %q", byLabel["14•"])
	}
	if byLabel["[20]"] != "day:2024-02-20" {
		t.Fatalf("selected day = %q", byLabel["[20]"])
	}
}

func TestCalendarKeyboard_SundayFirstBothArrows(t *testing.T) {
	t.Parallel()

	month := domain.Month{Year: 2024, Month: time.September}
	today := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cells := service.BuildMonthGrid(month, nil, 0, today, time.Sunday)

	kb := calendarKeyboard(month, cells, time.Sunday, true, true)
	nav := kb.InlineKeyboard[0]
	if len(nav) != 3 || *nav[0].CallbackData != "cal:2024-08" {
		t.Fatalf("nav = %+v", nav)
	}
	if kb.InlineKeyboard[1][0].Text != "Su" {
		t.Fatalf("first header = %s", kb.InlineKeyboard[1][0].Text)
	}
	// September 1st 2024 is a Sunday.
	if kb.InlineKeyboard[2][0].Text != "1" {
		t.Fatalf("first cell = %q", kb.InlineKeyboard[2][0].Text)
	}
}

func TestLeadTimeKeyboard(t *testing.T) {
	t.Parallel()

	kb := leadTimeKeyboard(42)
	row := kb.InlineKeyboard[0]
	want := []string{"lead:42:15m", "lead:42:30m", "lead:42:1d"}
	if len(row) != len(want) {
		t.Fatalf("buttons = %d", len(row))
	}
	for i, w := range want {
		if *row[i].CallbackData != w {
			t.Fatalf("button %d = %q, want %q", i, *row[i].CallbackData, w)
		}
	}
}

func TestRemindersKeyboard(t *testing.T) {
	t.Parallel()

	if remindersKeyboard(nil) != nil {
		t.Fatal("expected no keyboard without reminders")
	}
	kb := remindersKeyboard([]*domain.Notification{{ID: "abc", Title: strings.Repeat("x", 50)}})
	btn := kb.InlineKeyboard[0][0]
	if *btn.CallbackData != "cancel:abc" || !strings.HasSuffix(btn.Text, "…") {
		t.Fatalf("button = %+v", btn)
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrUnparsableTimestamp, 400},
		{domain.ErrNoRegistration, 400},
		{domain.ErrUnknownLeadTime, 400},
		{domain.ErrPermissionDenied, 403},
		{domain.ErrEventNotFound, 404},
		{domain.ErrPastTrigger, 422},
		{domain.ErrSchedulingFailed, 502},
	}
	for _, tc := range tests {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

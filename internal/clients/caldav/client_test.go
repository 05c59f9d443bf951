package caldav

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tazhate/onlinebot/internal/domain"
)

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly@example.org\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"SUMMARY:Board meeting\r\n" +
	"LOCATION:A4\r\n" +
	"DTSTART:20240108T170000Z\r\n" +
	"DTEND:20240108T180000Z\r\n" +
	"RRULE:FREQ=WEEKLY;COUNT=4\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly@example.org\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"RECURRENCE-ID:20240115T170000Z\r\n" +
	"SUMMARY:Board meeting (moved)\r\n" +
	"DTSTART:20240116T170000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:allday@example.org\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"SUMMARY:Exam period\r\n" +
	"DTSTART;VALUE=DATE:20240120\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func decode(t *testing.T, s string) *ical.Calendar {
	t.Helper()
	cal, err := ical.NewDecoder(strings.NewReader(s)).Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return cal
}

func TestParseCalendar(t *testing.T) {
	t.Parallel()

	events := parseCalendar(decode(t, sampleICS), time.UTC)
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2 (override skipped)", len(events))
	}

	weekly := events[0]
	if weekly.Summary != "Board meeting" || weekly.Location != "A4" || weekly.RRule != "FREQ=WEEKLY;COUNT=4" {
		t.Fatalf("weekly = %+v", weekly)
	}
	if !weekly.StartTime.Equal(time.Date(2024, 1, 8, 17, 0, 0, 0, time.UTC)) {
		t.Fatalf("StartTime = %s", weekly.StartTime)
	}

	allDay := events[1]
	if !allDay.AllDay || allDay.StartTime.Day() != 20 {
		t.Fatalf("allDay = %+v", allDay)
	}
}

func TestExpand(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 8, 17, 0, 0, 0, time.UTC)
	ev := Event{UID: "w", StartTime: start, EndTime: start.Add(time.Hour), RRule: "RRULE:FREQ=WEEKLY;COUNT=4"}

	tests := []struct {
		name     string
		from, to time.Time
		want     int
	}{
		{"whole_series", start.Add(-time.Hour), start.AddDate(0, 2, 0), 4},
		{"window_cuts_series", start.Add(time.Hour), start.AddDate(0, 0, 15), 2},
		{"before_series", start.AddDate(0, -2, 0), start.AddDate(0, -1, 0), 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Expand(ev, tc.from, tc.to)
			if err != nil {
				t.Fatalf("Expand: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("len = %d, want %d", len(got), tc.want)
			}
			for _, occ := range got {
				if occ.RRule != "" || occ.EndTime.Sub(occ.StartTime) != time.Hour {
					t.Fatalf("occurrence = %+v", occ)
				}
			}
		})
	}
}

func TestExpand_SingleAndInvalid(t *testing.T) {
	t.Parallel()

	single := Event{UID: "s", StartTime: time.Date(2024, 1, 8, 17, 0, 0, 0, time.UTC)}
	got, err := Expand(single, time.Time{}, time.Time{})
	if err != nil || len(got) != 1 {
		t.Fatalf("Expand(single) = %v, %v", got, err)
	}

	if _, err := Expand(Event{UID: "b", StartTime: single.StartTime, RRule: "FREQ=NEVER"}, time.Time{}, time.Now()); err == nil {
		t.Fatal("expected error for invalid rule")
	}
	if _, err := Expand(Event{UID: "z", RRule: "FREQ=DAILY"}, time.Time{}, time.Now()); err == nil {
		t.Fatal("expected error for missing start")
	}
}

func TestToDomainEvent(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 8, 17, 0, 0, 0, time.UTC)
	a := toDomainEvent(Event{UID: "x", Summary: "Meet", StartTime: start})
	b := toDomainEvent(Event{UID: "x", Summary: "Meet", StartTime: start.AddDate(0, 0, 7)})

	if a.ID >= 0 || b.ID >= 0 {
		t.Fatalf("ids must be negative: %d %d", a.ID, b.ID)
	}
	if a.ID == b.ID {
		t.Fatal("occurrences must get distinct ids")
	}
	if a.Source != domain.SourceCalendar || a.UID != "x" || a.Title != "Meet" || a.HasRegistration() {
		t.Fatalf("event = %+v", a)
	}
	if again := toDomainEvent(Event{UID: "x", StartTime: start}); again.ID != a.ID {
		t.Fatal("ids must be stable across refreshes")
	}
}

func TestIsConfigured(t *testing.T) {
	t.Parallel()

	if NewClient("", "", "", "", nil).IsConfigured() {
		t.Fatal("client without credentials reported configured")
	}
	c := NewClient("", "user", "pass", "/cal/", time.UTC)
	if !c.IsConfigured() || c.baseURL != DefaultiCloudURL {
		t.Fatalf("client = %+v", c)
	}
}

package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tazhate/onlinebot/config"
	"github.com/tazhate/onlinebot/internal/domain"
	"github.com/tazhate/onlinebot/internal/service"
	"github.com/tazhate/onlinebot/internal/storage"
)

var testNow = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type staticSource []domain.Event

func (s staticSource) Fetch(context.Context) ([]domain.Event, error) { return s, nil }

type staticCareers []domain.Career

func (s staticCareers) FetchCareers(context.Context) ([]domain.Career, error) { return s, nil }

func testEvents() []domain.Event {
	return []domain.Event{
		{ID: 1, Source: domain.SourceOnline, Title: "Bedpres", EventStart: testNow.Add(5 * 24 * time.Hour),
			Attendance: &domain.Attendance{RegistrationStart: testNow.Add(48 * time.Hour)}},
		{ID: 2, Source: domain.SourceOnline, Title: "Kurs", EventStart: testNow.Add(3 * 24 * time.Hour),
			Attendance: &domain.Attendance{RegistrationStart: testNow.Add(10 * time.Minute)}},
		{ID: 3, Source: domain.SourceOnline, Title: "Quiz", EventStart: time.Date(2024, 1, 20, 18, 0, 0, 0, time.UTC)},
	}
}

func newTestBot(t *testing.T, withAPI bool) (*Bot, *storage.Storage) {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "onlinebot.db"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Timezone:        time.UTC,
		WeekStart:       time.Monday,
		DefaultLeadTime: domain.LeadTime15Minutes,
		AppVersion:      config.AppVersion,
	}
	if withAPI {
		cfg.APIUsername, cfg.APIPassword = "admin", "secret"
	}

	clock := fixedClock{now: testNow}
	events := service.NewEventService(clock, staticSource(testEvents()))
	if err := events.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	calendar := service.NewCalendarService(events, clock, cfg.WeekStart, false)
	careers := service.NewCareerService(staticCareers{{ID: 9, Title: "Intern", Company: "Acme"}}, clock, time.Hour)
	reminders := service.NewReminderService(service.NewNotificationService(store, clock), clock)

	return newBot(cfg, store, clock, events, calendar, careers, reminders), store
}

func doRequest(t *testing.T, b *Bot, method, target string, body any) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.SetBasicAuth("admin", "secret")

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, req)

	var resp APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func subscribe(t *testing.T, store *storage.Storage, chatID int64) {
	t.Helper()
	if err := store.UpsertSubscriber(context.Background(), &domain.Subscriber{ChatID: chatID, NotificationsEnabled: true}); err != nil {
		t.Fatalf("UpsertSubscriber: %v", err)
	}
}

func TestAPI_RequiresBasicAuth(t *testing.T) {
	b, _ := newTestBot(t, true)

	for _, creds := range [][2]string{{"", ""}, {"admin", "wrong"}, {"Admin", "secret"}} {
		req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
		if creds[0] != "" {
			req.SetBasicAuth(creds[0], creds[1])
		}
		rec := httptest.NewRecorder()
		b.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("creds %v: status = %d", creds, rec.Code)
		}
	}
}

func TestAPI_DisabledWithoutCredentials(t *testing.T) {
	b, _ := newTestBot(t, false)

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestAPI_Events(t *testing.T) {
	b, _ := newTestBot(t, true)

	rec, resp := doRequest(t, b, http.MethodGet, "/api/events", nil)
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d, resp = %+v", rec.Code, resp)
	}
	if list, ok := resp.Data.([]any); !ok || len(list) != 3 {
		t.Fatalf("data = %+v", resp.Data)
	}

	rec, resp = doRequest(t, b, http.MethodGet, "/api/events/next?n=1", nil)
	data := resp.Data.(map[string]any)
	next := data["events"].([]any)[0].(map[string]any)
	reg := data["registrations"].([]any)[0].(map[string]any)
	if rec.Code != http.StatusOK || next["title"] != "Kurs" || reg["title"] != "Kurs" {
		t.Fatalf("next = %+v", data)
	}

	rec, resp = doRequest(t, b, http.MethodGet, "/api/event/1", nil)
	event := resp.Data.(map[string]any)
	if rec.Code != http.StatusOK || event["url"] != "https://online.ntnu.no/events/1" || event["registration_start"] == nil {
		t.Fatalf("event = %+v", event)
	}

	rec, _ = doRequest(t, b, http.MethodGet, "/api/event/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown event status = %d", rec.Code)
	}
	rec, _ = doRequest(t, b, http.MethodGet, "/api/event/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rec.Code)
	}
}

func TestAPI_ScheduleReminderErrors(t *testing.T) {
	b, store := newTestBot(t, true)

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"not_subscribed", map[string]any{"chat_id": 42, "event_id": 1, "lead": "15m"}, http.StatusForbidden},
		{"unknown_event", map[string]any{"chat_id": 7, "event_id": 999}, http.StatusNotFound},
		{"unknown_lead", map[string]any{"chat_id": 7, "event_id": 1, "lead": "2h"}, http.StatusBadRequest},
		{"no_registration", map[string]any{"chat_id": 7, "event_id": 3}, http.StatusBadRequest},
		{"trigger_in_past", map[string]any{"chat_id": 7, "event_id": 2, "lead": "30m"}, http.StatusUnprocessableEntity},
		{"missing_fields", map[string]any{"chat_id": 7}, http.StatusBadRequest},
	}

	subscribe(t, store, 7)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, resp := doRequest(t, b, http.MethodPost, "/api/reminders", tc.body)
			if rec.Code != tc.status || resp.Success {
				t.Fatalf("status = %d (%s), want %d", rec.Code, resp.Error, tc.status)
			}
		})
	}

	pending, _ := store.ListPendingNotifications(context.Background(), 0)
	if len(pending) != 0 {
		t.Fatalf("rejected requests left %d pending notifications", len(pending))
	}
}

func TestAPI_ReminderLifecycle(t *testing.T) {
	b, store := newTestBot(t, true)
	subscribe(t, store, 7)

	rec, resp := doRequest(t, b, http.MethodPost, "/api/reminders", map[string]any{"chat_id": 7, "event_id": 1, "lead": "1d"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rec.Code, resp.Error)
	}
	created := resp.Data.(map[string]any)
	if created["fire_at"] != testNow.Add(24*time.Hour).Format(time.RFC3339) || created["title"] != "Reminder for Bedpres" {
		t.Fatalf("created = %+v", created)
	}
	id := created["id"].(string)

	_, resp = doRequest(t, b, http.MethodGet, "/api/reminders?chat_id=7", nil)
	if list := resp.Data.([]any); len(list) != 1 {
		t.Fatalf("pending = %+v", list)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/calendar.ics?chat_id=7", nil)
	req.SetBasicAuth("admin", "secret")
	b.Handler().ServeHTTP(rec, req)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("content type = %q", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "BEGIN:VCALENDAR") || !strings.Contains(body, "BEGIN:VALARM") {
		t.Fatalf("ics = %s", body)
	}

	rec, _ = doRequest(t, b, http.MethodDelete, "/api/reminder/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec, _ = doRequest(t, b, http.MethodDelete, "/api/reminder/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second delete status = %d", rec.Code)
	}

	_, resp = doRequest(t, b, http.MethodGet, "/api/reminders?chat_id=7", nil)
	if list := resp.Data.([]any); len(list) != 0 {
		t.Fatalf("pending after cancel = %+v", list)
	}
}

func TestAPI_Calendar(t *testing.T) {
	b, _ := newTestBot(t, true)

	rec, resp := doRequest(t, b, http.MethodGet, "/api/calendar?month=2024-01&selected=20", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, resp.Error)
	}
	cal := resp.Data.(map[string]any)
	if cal["label"] != "January 2024" || cal["can_prev"] != false || cal["can_next"] != true {
		t.Fatalf("calendar = %+v", cal)
	}
	if cells := cal["cells"].([]any); len(cells) != 31 {
		t.Fatalf("cells = %d", len(cells))
	}
	dayEvents := cal["day_events"].([]any)
	if len(dayEvents) != 1 || dayEvents[0].(map[string]any)["title"] != "Quiz" {
		t.Fatalf("day events = %+v", dayEvents)
	}

	for _, target := range []string{"/api/calendar?month=13-2024", "/api/calendar?month=2024-02&selected=30"} {
		if rec, _ := doRequest(t, b, http.MethodGet, target, nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s status = %d", target, rec.Code)
		}
	}
}

func TestAPI_Careers(t *testing.T) {
	b, _ := newTestBot(t, true)

	_, resp := doRequest(t, b, http.MethodGet, "/api/careers", nil)
	list := resp.Data.([]any)
	if len(list) != 1 || list[0].(map[string]any)["company"] != "Acme" {
		t.Fatalf("careers = %+v", list)
	}
}

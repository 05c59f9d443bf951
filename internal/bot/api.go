package bot

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tazhate/onlinebot/internal/domain"
	"github.com/tazhate/onlinebot/internal/ics"
)

type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type EventResponse struct {
	ID                int     `json:"id"`
	Source            string  `json:"source"`
	Title             string  `json:"title"`
	Description       string  `json:"description,omitempty"`
	Location          string  `json:"location,omitempty"`
	URL               string  `json:"url,omitempty"`
	EventStart        *string `json:"event_start,omitempty"`
	EventEnd          *string `json:"event_end,omitempty"`
	RegistrationStart *string `json:"registration_start,omitempty"`
	Seats             string  `json:"seats,omitempty"`
}

type DayCellResponse struct {
	Day        int    `json:"day"` // 0 for padding
	Date       string `json:"date,omitempty"`
	HasEvent   bool   `json:"has_event"`
	IsToday    bool   `json:"is_today"`
	IsPast     bool   `json:"is_past"`
	IsSelected bool   `json:"is_selected"`
}

type CalendarResponse struct {
	Month        string            `json:"month"`
	Label        string            `json:"label"`
	FirstWeekday string            `json:"first_weekday"`
	CanPrev      bool              `json:"can_prev"`
	CanNext      bool              `json:"can_next"`
	Cells        []DayCellResponse `json:"cells"`
	DayEvents    []EventResponse   `json:"day_events,omitempty"`
}

type CareerResponse struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Company  string `json:"company"`
	ImageURL string `json:"image_url,omitempty"`
}

type ReminderResponse struct {
	ID      string `json:"id"`
	ChatID  int64  `json:"chat_id"`
	EventID int    `json:"event_id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	FireAt  string `json:"fire_at"`
	Status  string `json:"status"`
}

// SetupAPI registers the REST routes. The API stays off without credentials.
func (b *Bot) SetupAPI() {
	if !b.cfg.APIEnabled() {
		return
	}

	b.mux.HandleFunc("/api/events", b.basicAuth(b.apiEvents))
	b.mux.HandleFunc("/api/events/next", b.basicAuth(b.apiEventsNext))
	b.mux.HandleFunc("/api/event/", b.basicAuth(b.apiEvent))
	b.mux.HandleFunc("/api/calendar", b.basicAuth(b.apiCalendar))
	b.mux.HandleFunc("/api/calendar.ics", b.basicAuth(b.apiCalendarICS))
	b.mux.HandleFunc("/api/careers", b.basicAuth(b.apiCareers))
	b.mux.HandleFunc("/api/reminders", b.basicAuth(b.apiReminders))
	b.mux.HandleFunc("/api/reminder/", b.basicAuth(b.apiReminder))
}

func (b *Bot) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(username), []byte(b.cfg.APIUsername)) != 1 ||
			subtle.ConstantTimeCompare([]byte(password), []byte(b.cfg.APIPassword)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="OnlineBot API"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (b *Bot) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func (b *Bot) jsonError(w http.ResponseWriter, err string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPastTrigger):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUnparsableTimestamp),
		errors.Is(err, domain.ErrNoRegistration),
		errors.Is(err, domain.ErrUnknownLeadTime):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSchedulingFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (b *Bot) apiFail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("api_internal_error", "error", err)
		b.jsonError(w, "internal server error", status)
		return
	}
	b.jsonError(w, err.Error(), status)
}

// GET /api/events - upcoming events
func (b *Bot) apiEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	b.jsonResponse(w, http.StatusOK, b.eventsToResponse(b.events.Upcoming()))
}

// GET /api/events/next?n=3 - next events and next registrations
func (b *Bot) apiEventsNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	n := listSize
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			b.jsonError(w, "n must be a positive number", http.StatusBadRequest)
			return
		}
		n = parsed
	}

	b.jsonResponse(w, http.StatusOK, map[string]any{
		"events":        b.eventsToResponse(b.events.NextEvents(n)),
		"registrations": b.eventsToResponse(b.events.NextRegistrations(n)),
	})
}

// GET /api/event/{id}
func (b *Bot) apiEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/api/event/"))
	if err != nil {
		b.jsonError(w, "Invalid event ID", http.StatusBadRequest)
		return
	}

	event, err := b.events.Find(id)
	if err != nil {
		b.apiFail(w, err)
		return
	}
	b.jsonResponse(w, http.StatusOK, b.eventToResponse(event))
}

// GET /api/calendar?month=YYYY-MM&selected=D
func (b *Bot) apiCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	month := b.calendar.CurrentMonth()
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := domain.ParseMonth(raw)
		if err != nil {
			b.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		month = parsed
	}

	selected := 0
	if raw := r.URL.Query().Get("selected"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > month.DaysIn() {
			b.jsonError(w, "selected must be a day of the month", http.StatusBadRequest)
			return
		}
		selected = parsed
	}

	resp := CalendarResponse{
		Month:        month.String(),
		Label:        month.Label(),
		FirstWeekday: b.calendar.FirstWeekday().String(),
		CanPrev:      b.calendar.CanNavigate(month, -1),
		CanNext:      b.calendar.CanNavigate(month, 1),
	}
	for _, c := range b.calendar.Grid(month, selected) {
		cell := DayCellResponse{Day: c.Day, HasEvent: c.HasEvent, IsToday: c.IsToday, IsPast: c.IsPast, IsSelected: c.IsSelected}
		if !c.IsPadding() {
			cell.Date = c.Date.Format("2006-01-02")
		}
		resp.Cells = append(resp.Cells, cell)
	}
	if selected > 0 {
		day := month.FirstDay(b.cfg.Timezone).AddDate(0, 0, selected-1)
		if events, ok := b.calendar.DayEvents(day); ok {
			resp.DayEvents = b.eventsToResponse(events)
		}
	}

	b.jsonResponse(w, http.StatusOK, resp)
}

// GET /api/careers
func (b *Bot) apiCareers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	careers, err := b.careers.List(r.Context())
	if err != nil {
		slog.Error("api_careers_failed", "error", err)
		b.jsonError(w, "career feed unavailable", http.StatusBadGateway)
		return
	}

	resp := make([]CareerResponse, 0, len(careers))
	for _, c := range careers {
		resp = append(resp, CareerResponse{ID: c.ID, Title: c.Title, Company: c.Company, ImageURL: c.ImageURL})
	}
	b.jsonResponse(w, http.StatusOK, resp)
}

// GET /api/reminders?chat_id= - pending reminders
// POST /api/reminders - schedule a reminder
func (b *Bot) apiReminders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		chatID, err := chatIDParam(r)
		if err != nil {
			b.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		pending, err := b.reminders.Pending(r.Context(), chatID)
		if err != nil {
			b.apiFail(w, err)
			return
		}
		b.jsonResponse(w, http.StatusOK, remindersToResponse(pending))

	case http.MethodPost:
		var req struct {
			ChatID  int64  `json:"chat_id"`
			EventID int    `json:"event_id"`
			Lead    string `json:"lead"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			b.jsonError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if req.ChatID == 0 || req.EventID == 0 {
			b.jsonError(w, "chat_id and event_id are required", http.StatusBadRequest)
			return
		}

		lead := b.cfg.DefaultLeadTime
		if req.Lead != "" {
			parsed, err := domain.ParseLeadTime(req.Lead)
			if err != nil {
				b.apiFail(w, err)
				return
			}
			lead = parsed
		}

		event, err := b.events.Find(req.EventID)
		if err != nil {
			b.apiFail(w, err)
			return
		}

		scheduled, err := b.reminders.Schedule(r.Context(), req.ChatID, event, lead)
		if err != nil {
			b.apiFail(w, err)
			return
		}

		b.jsonResponse(w, http.StatusCreated, map[string]any{
			"id":       scheduled.ID,
			"event_id": scheduled.EventID,
			"chat_id":  scheduled.ChatID,
			"lead":     scheduled.LeadTime.Code(),
			"fire_at":  scheduled.FireAt.Format(time.RFC3339),
			"title":    scheduled.Title,
			"body":     scheduled.Body,
		})

	default:
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// DELETE /api/reminder/{id}
func (b *Bot) apiReminder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/reminder/")
	if id == "" {
		b.jsonError(w, "Reminder ID required", http.StatusBadRequest)
		return
	}

	if err := b.reminders.Cancel(r.Context(), id); err != nil {
		b.apiFail(w, err)
		return
	}
	b.jsonResponse(w, http.StatusOK, map[string]string{"message": "Reminder cancelled"})
}

// GET /api/calendar.ics?chat_id= - upcoming events with the chat's reminders as alarms
func (b *Bot) apiCalendarICS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	chatID, err := chatIDParam(r)
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var pending []*domain.Notification
	if chatID != 0 {
		pending, err = b.reminders.Pending(r.Context(), chatID)
		if err != nil {
			b.apiFail(w, err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="online-events.ics"`)
	if err := ics.Encode(w, b.events.Upcoming(), pending, b.eventURL); err != nil {
		slog.Error("ics_encode_failed", "error", err)
	}
}

// chatIDParam reads the optional chat_id query parameter; 0 when absent.
func chatIDParam(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("chat_id")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid chat_id")
	}
	return id, nil
}

func (b *Bot) eventsToResponse(events []domain.Event) []EventResponse {
	result := make([]EventResponse, 0, len(events))
	for i := range events {
		result = append(result, b.eventToResponse(&events[i]))
	}
	return result
}

func (b *Bot) eventToResponse(e *domain.Event) EventResponse {
	resp := EventResponse{
		ID:                e.ID,
		Source:            e.Source,
		Title:             e.Title,
		Description:       e.Description,
		Location:          e.Location,
		EventStart:        formatOptional(e.EventStart),
		EventEnd:          formatOptional(e.EventEnd),
		RegistrationStart: formatOptional(e.RegistrationStart()),
		Seats:             e.SeatsLabel(),
	}
	if e.ID > 0 && b.eventURL != nil {
		resp.URL = b.eventURL(e.ID)
	}
	return resp
}

func remindersToResponse(pending []*domain.Notification) []ReminderResponse {
	result := make([]ReminderResponse, 0, len(pending))
	for _, n := range pending {
		result = append(result, ReminderResponse{
			ID:      n.ID,
			ChatID:  n.ChatID,
			EventID: n.EventID,
			Title:   n.Title,
			Body:    n.Body,
			FireAt:  n.FireAt.Format(time.RFC3339),
			Status:  string(n.Status),
		})
	}
	return result
}

func formatOptional(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

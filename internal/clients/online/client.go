package online

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tazhate/onlinebot/internal/domain"
)

const (
	DefaultEventsURL = "https://old.online.ntnu.no/api/v1/events/"
	DefaultCareerURL = "https://old.online.ntnu.no/api/v1/career/"
	SiteURL          = "https://online.ntnu.no"
)

// Client reads the public events and career endpoints.
type Client struct {
	eventsURL  string
	careerURL  string
	pageSize   int
	maxPages   int
	httpClient *http.Client
}

// NewClient creates a client. Empty URLs fall back to the public API.
func NewClient(eventsURL, careerURL string, pageSize, maxPages int) *Client {
	if eventsURL == "" {
		eventsURL = DefaultEventsURL
	}
	if careerURL == "" {
		careerURL = DefaultCareerURL
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if maxPages <= 0 {
		maxPages = 1
	}
	return &Client{
		eventsURL: eventsURL,
		careerURL: careerURL,
		pageSize:  pageSize,
		maxPages:  maxPages,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func EventURL(id int) string {
	return SiteURL + "/events/" + strconv.Itoa(id)
}

func CareerURL(id int) string {
	return SiteURL + "/career/" + strconv.Itoa(id)
}

// doRequest performs a GET and returns the body
func (c *Client) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// Fetch returns events across at most maxPages pages, following "next".
func (c *Client) Fetch(ctx context.Context) ([]domain.Event, error) {
	next, err := withPageSize(c.eventsURL, c.pageSize)
	if err != nil {
		return nil, err
	}

	var events []domain.Event
	for page := 0; page < c.maxPages && next != ""; page++ {
		data, err := c.doRequest(ctx, next)
		if err != nil {
			return nil, err
		}

		var resp EventResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("unmarshal events: %w", err)
		}

		for _, e := range resp.Results {
			events = append(events, toDomainEvent(e))
		}

		next = ""
		if resp.Next != nil {
			next = *resp.Next
		}
	}

	return events, nil
}

func (c *Client) FetchCareers(ctx context.Context) ([]domain.Career, error) {
	data, err := c.doRequest(ctx, c.careerURL)
	if err != nil {
		return nil, err
	}

	var resp CareerResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal careers: %w", err)
	}

	careers := make([]domain.Career, 0, len(resp.Results))
	for _, r := range resp.Results {
		career := domain.Career{
			ID:      r.ID,
			Title:   r.Title,
			Company: r.Company.Name,
		}
		if r.Company.Image != nil {
			career.ImageURL = r.Company.Image.XS
		}
		careers = append(careers, career)
	}
	return careers, nil
}

// toDomainEvent normalizes timestamps. A malformed start is kept as zero
// rather than dropping the event.
func toDomainEvent(e Event) domain.Event {
	out := domain.Event{
		ID:          e.ID,
		Source:      domain.SourceOnline,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		Slug:        e.Slug,
		EventType:   e.EventType,
		EventStart:  parseOrZero(e.EventStart, e.ID, "event_start"),
		EventEnd:    parseOrZero(e.EventEnd, e.ID, "event_end"),
	}
	if out.Description == "" {
		out.Description = e.Ingress
	}
	if e.Image != nil {
		out.ImageURL = e.Image.Original
		out.ThumbURL = e.Image.Thumb
	}
	if a := e.AttendanceEvent; a != nil {
		out.Attendance = &domain.Attendance{
			MaxCapacity: a.MaxCapacity,
			SeatsTaken:  a.NumberOfSeatsTaken,
		}
		if a.RegistrationStart != nil && *a.RegistrationStart != "" {
			out.Attendance.RegistrationStart = parseOrZero(*a.RegistrationStart, e.ID, "registration_start")
		}
		if a.RegistrationEnd != nil && *a.RegistrationEnd != "" {
			out.Attendance.RegistrationEnd = parseOrZero(*a.RegistrationEnd, e.ID, "registration_end")
		}
	}
	return out
}

func parseOrZero(s string, eventID int, field string) time.Time {
	t, err := domain.ParseTimestamp(s)
	if err != nil {
		slog.Debug("event_timestamp_unparsable", "event_id", eventID, "field", field, "value", s)
		return time.Time{}
	}
	return t
}

func withPageSize(rawURL string, pageSize int) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse events url: %w", err)
	}
	q := u.Query()
	q.Set("page_size", strconv.Itoa(pageSize))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

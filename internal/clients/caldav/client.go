package caldav

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/http"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/tazhate/onlinebot/internal/domain"
)

const (
	// Apple iCloud CalDAV endpoint
	DefaultiCloudURL = "https://caldav.icloud.com"

	defaultLookback  = 31 * 24 * time.Hour
	defaultLookahead = 180 * 24 * time.Hour
)

// Client reads events from a CalDAV calendar and acts as an event source
type Client struct {
	baseURL      string
	username     string
	password     string
	calendarPath string
	location     *time.Location
	now          func() time.Time
	client       *caldav.Client
}

// NewClient creates a new CalDAV client
func NewClient(baseURL, username, password, calendarPath string, loc *time.Location) *Client {
	if baseURL == "" {
		baseURL = DefaultiCloudURL
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		baseURL:      baseURL,
		username:     username,
		password:     password,
		calendarPath: calendarPath,
		location:     loc,
		now:          time.Now,
	}
}

// IsConfigured returns true if the client has credentials
func (c *Client) IsConfigured() bool {
	return c.username != "" && c.password != ""
}

// connect establishes connection to CalDAV server
func (c *Client) connect() (*caldav.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: c.username,
			password: c.password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

// basicAuthTransport adds Basic Auth to HTTP requests
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// DiscoverCalendars returns all calendars for the user
func (c *Client) DiscoverCalendars(ctx context.Context) ([]Calendar, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find home set: %w", err)
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	var result []Calendar
	for _, cal := range cals {
		result = append(result, Calendar{
			ID:          cal.Path,
			DisplayName: cal.Name,
			URL:         cal.Path,
		})
	}

	return result, nil
}

// Fetch returns expanded events around now. Without a configured calendar
// path the first discovered calendar is used.
func (c *Client) Fetch(ctx context.Context) ([]domain.Event, error) {
	if c.calendarPath == "" {
		cals, err := c.DiscoverCalendars(ctx)
		if err != nil {
			return nil, err
		}
		if len(cals) == 0 {
			return nil, fmt.Errorf("no calendars found")
		}
		c.calendarPath = cals[0].URL
		slog.Info("caldav_calendar_selected", "path", c.calendarPath, "name", cals[0].DisplayName)
	}

	now := c.now()
	from, to := now.Add(-defaultLookback), now.Add(defaultLookahead)

	events, err := c.GetEvents(ctx, c.calendarPath, from, to)
	if err != nil {
		return nil, err
	}

	var out []domain.Event
	for _, ev := range events {
		occurrences, err := Expand(ev, from, to)
		if err != nil {
			slog.Warn("caldav_expand_failed", "uid", ev.UID, "error", err)
			continue
		}
		for _, occ := range occurrences {
			out = append(out, toDomainEvent(occ))
		}
	}
	return out, nil
}

// GetEvents returns events in the specified time range
func (c *Client) GetEvents(ctx context.Context, calendarPath string, from, to time.Time) ([]Event, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	if calendarPath == "" {
		return nil, fmt.Errorf("calendar path not specified")
	}

	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  "VEVENT",
					Start: from,
					End:   to,
				},
			},
		},
	}

	objects, err := client.QueryCalendar(ctx, calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}

	var events []Event
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		events = append(events, parseCalendar(obj.Data, c.location)...)
	}

	return events, nil
}

// parseCalendar extracts every VEVENT of a calendar object
func parseCalendar(cal *ical.Calendar, loc *time.Location) []Event {
	var events []Event
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		// Overridden instances share the UID of their master
		if comp.Props.Get(ical.PropRecurrenceID) != nil {
			continue
		}

		event := Event{}
		if prop := comp.Props.Get(ical.PropUID); prop != nil {
			event.UID = prop.Value
		}
		if prop := comp.Props.Get(ical.PropSummary); prop != nil {
			event.Summary = prop.Value
		}
		if prop := comp.Props.Get(ical.PropDescription); prop != nil {
			event.Description = prop.Value
		}
		if prop := comp.Props.Get(ical.PropLocation); prop != nil {
			event.Location = prop.Value
		}
		if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
			if t, err := prop.DateTime(loc); err == nil {
				event.StartTime = t
			}
			if valueType := prop.Params.Get(ical.ParamValue); valueType == string(ical.ValueDate) {
				event.AllDay = true
			}
		}
		if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
			if t, err := prop.DateTime(loc); err == nil {
				event.EndTime = t
			}
		}
		if prop := comp.Props.Get(ical.PropRecurrenceRule); prop != nil {
			event.RRule = prop.Value
		}

		events = append(events, event)
	}
	return events
}

// toDomainEvent maps an occurrence to an event. Ids are negative so they
// never collide with ids of the events API.
func toDomainEvent(ev Event) domain.Event {
	return domain.Event{
		ID:          syntheticID(ev.UID, ev.StartTime),
		UID:         ev.UID,
		Source:      domain.SourceCalendar,
		Title:       ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		EventStart:  ev.StartTime,
		EventEnd:    ev.EndTime,
	}
}

func syntheticID(uid string, start time.Time) int {
	h := fnv.New32a()
	h.Write([]byte(uid))
	h.Write([]byte(start.UTC().Format(time.RFC3339)))
	return -int(h.Sum32()&0x7fffffff) - 1
}

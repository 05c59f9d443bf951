package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tazhate/onlinebot/internal/domain"
	"golang.org/x/sync/errgroup"
)

// EventSource fetches and decodes events from somewhere remote.
type EventSource interface {
	Fetch(ctx context.Context) ([]domain.Event, error)
}

// EventService keeps the last successfully fetched set of events.
type EventService struct {
	sources []EventSource
	clock   Clock

	mu          sync.RWMutex
	events      []domain.Event
	refreshedAt time.Time
}

func NewEventService(clock Clock, sources ...EventSource) *EventService {
	return &EventService{
		sources: sources,
		clock:   clock,
	}
}

// Refresh fetches every source concurrently. Sources that fail are skipped;
// if all of them fail the previous snapshot is kept and an error returned.
func (s *EventService) Refresh(ctx context.Context) error {
	if len(s.sources) == 0 {
		return nil
	}

	results := make([][]domain.Event, len(s.sources))
	errs := make([]error, len(s.sources))

	var g errgroup.Group
	for i, src := range s.sources {
		g.Go(func() error {
			events, err := src.Fetch(ctx)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = events
			return nil
		})
	}
	_ = g.Wait()

	var merged []domain.Event
	failed := 0
	for i := range s.sources {
		if errs[i] != nil {
			failed++
			slog.Warn("event_source_failed", "source", i, "error", errs[i])
			continue
		}
		merged = append(merged, results[i]...)
	}
	if failed == len(s.sources) {
		return fmt.Errorf("refresh events: %w", errors.Join(errs...))
	}

	sortByStart(merged)

	s.mu.Lock()
	s.events = merged
	s.refreshedAt = s.clock.Now()
	s.mu.Unlock()

	slog.Info("events_refreshed", "count", len(merged), "failed_sources", failed)
	return nil
}

// Events returns a copy of the current snapshot.
func (s *EventService) Events() []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *EventService) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}

func (s *EventService) Upcoming() []domain.Event {
	return UpcomingEvents(s.Events(), s.clock.Now())
}

func (s *EventService) NextEvents(n int) []domain.Event {
	return firstN(s.Upcoming(), n)
}

func (s *EventService) NextRegistrations(n int) []domain.Event {
	return NextRegistrations(s.Events(), s.clock.Now(), n)
}

func (s *EventService) Find(id int) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.events {
		if s.events[i].ID == id {
			e := s.events[i]
			return &e, nil
		}
	}
	return nil, fmt.Errorf("event %d: %w", id, domain.ErrEventNotFound)
}

// UpcomingEvents returns events starting after now, earliest first.
func UpcomingEvents(events []domain.Event, now time.Time) []domain.Event {
	var out []domain.Event
	for _, e := range events {
		if e.EventStart.After(now) {
			out = append(out, e)
		}
	}
	sortByStart(out)
	return out
}

// NextRegistrations returns up to n events whose registration opens after
// now, ordered by registration start.
func NextRegistrations(events []domain.Event, now time.Time, n int) []domain.Event {
	var out []domain.Event
	for _, e := range events {
		if e.RegistrationStart().After(now) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RegistrationStart().Before(out[j].RegistrationStart())
	})
	return firstN(out, n)
}

func FormatEventList(events []domain.Event, loc *time.Location, eventURL func(int) string) string {
	if len(events) == 0 {
		return "No upcoming events"
	}

	var sb strings.Builder
	for _, e := range events {
		sb.WriteString(fmt.Sprintf("📅 <b>%s</b>\n", escapeHTML(e.Title)))
		sb.WriteString("    " + e.FormatDateTime(loc))
		if e.Location != "" {
			sb.WriteString(" 📍" + escapeHTML(e.Location))
		}
		sb.WriteString("\n")
		if seats := e.SeatsLabel(); seats != "" {
			sb.WriteString("    👥 " + seats + "\n")
		}
		if e.ID > 0 && eventURL != nil {
			sb.WriteString("    " + eventURL(e.ID) + "\n")
		}
	}
	return sb.String()
}

func FormatRegistrationList(events []domain.Event, loc *time.Location) string {
	if len(events) == 0 {
		return "No upcoming registrations"
	}

	var sb strings.Builder
	for _, e := range events {
		sb.WriteString(fmt.Sprintf("📝 <b>%s</b> #%d\n", escapeHTML(e.Title), e.ID))
		sb.WriteString("    opens " + e.RegistrationStart().In(loc).Format("Mon 02.01.2006 15:04") + "\n")
	}
	return sb.String()
}

func sortByStart(events []domain.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].EventStart, events[j].EventStart
		if a.IsZero() != b.IsZero() {
			return !a.IsZero()
		}
		return a.Before(b)
	})
}

func firstN(events []domain.Event, n int) []domain.Event {
	if n >= 0 && len(events) > n {
		return events[:n]
	}
	return events
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

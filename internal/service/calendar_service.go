package service

import (
	"time"

	"github.com/tazhate/onlinebot/internal/domain"
)

// CalendarService builds month views over the current event snapshot.
type CalendarService struct {
	events       *EventService
	clock        Clock
	firstWeekday time.Weekday
	allowPast    bool
}

func NewCalendarService(events *EventService, clock Clock, firstWeekday time.Weekday, allowPast bool) *CalendarService {
	return &CalendarService{
		events:       events,
		clock:        clock,
		firstWeekday: firstWeekday,
		allowPast:    allowPast,
	}
}

func (s *CalendarService) FirstWeekday() time.Weekday {
	return s.firstWeekday
}

func (s *CalendarService) CurrentMonth() domain.Month {
	return domain.MonthOf(s.clock.Now())
}

// Grid returns the cells for month with selectedDay highlighted.
func (s *CalendarService) Grid(month domain.Month, selectedDay int) []domain.DayCell {
	return BuildMonthGrid(month, s.events.Events(), selectedDay, s.clock.Now(), s.firstWeekday)
}

// Navigate applies the configured past-month policy.
func (s *CalendarService) Navigate(current domain.Month, delta int) domain.Month {
	return ChangeMonth(current, delta, s.clock.Now(), s.allowPast)
}

// CanNavigate reports whether a move by delta would change the month.
func (s *CalendarService) CanNavigate(current domain.Month, delta int) bool {
	return s.Navigate(current, delta) != current
}

// DayEvents lists the events of a day. ok is false for past days.
func (s *CalendarService) DayEvents(day time.Time) (events []domain.Event, ok bool) {
	now := s.clock.Now()
	if !DayIsSelectable(day, now) {
		return nil, false
	}
	return EventsForDay(s.events.Events(), day.In(now.Location())), true
}

package service

import (
	"sort"
	"time"

	"github.com/tazhate/onlinebot/internal/domain"
)

// dayKey identifies a calendar day independent of time of day.
type dayKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time) dayKey {
	y, m, d := t.Date()
	return dayKey{y, m, d}
}

func (k dayKey) before(other dayKey) bool {
	if k.year != other.year {
		return k.year < other.year
	}
	if k.month != other.month {
		return k.month < other.month
	}
	return k.day < other.day
}

// BuildMonthGrid lays out month as leading padding cells followed by one cell
// per day. Calendar days are compared in today's location. Events without a
// parsable start never mark a day. selectedDay 0 selects nothing.
func BuildMonthGrid(month domain.Month, events []domain.Event, selectedDay int, today time.Time, firstWeekday time.Weekday) []domain.DayCell {
	loc := today.Location()
	first := month.FirstDay(loc)
	days := month.DaysIn()
	padding := (int(first.Weekday()) - int(firstWeekday) + 7) % 7

	eventDays := make(map[dayKey]bool, len(events))
	for _, e := range events {
		if e.EventStart.IsZero() {
			continue
		}
		eventDays[keyOf(e.EventStart.In(loc))] = true
	}

	todayKey := keyOf(today)
	cells := make([]domain.DayCell, padding, padding+days)
	for d := 1; d <= days; d++ {
		date := time.Date(month.Year, month.Month, d, 0, 0, 0, 0, loc)
		k := keyOf(date)
		cells = append(cells, domain.DayCell{
			Day:        d,
			Date:       date,
			HasEvent:   eventDays[k],
			IsToday:    k == todayKey,
			IsPast:     k.before(todayKey),
			IsSelected: d == selectedDay,
		})
	}
	return cells
}

// ChangeMonth moves current by delta months. Without allowPast a move to a
// month before today's month is refused and current is returned.
func ChangeMonth(current domain.Month, delta int, today time.Time, allowPast bool) domain.Month {
	next := current.AddMonths(delta)
	if !allowPast && next.Before(domain.MonthOf(today)) {
		return current
	}
	return next
}

// DayIsSelectable reports whether day is today or later.
func DayIsSelectable(day, today time.Time) bool {
	return !keyOf(day.In(today.Location())).before(keyOf(today))
}

// EventsForDay returns the events starting on day's calendar day, by start.
func EventsForDay(events []domain.Event, day time.Time) []domain.Event {
	loc := day.Location()
	want := keyOf(day)

	var out []domain.Event
	for _, e := range events {
		if e.EventStart.IsZero() {
			continue
		}
		if keyOf(e.EventStart.In(loc)) == want {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EventStart.Before(out[j].EventStart)
	})
	return out
}

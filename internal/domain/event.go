package domain

import (
	"fmt"
	"time"
)

const (
	SourceOnline   = "online"
	SourceCalendar = "caldav"
)

// Event is a club event normalized from one of the event sources.
// Zero EventStart/EventEnd mean the wire value was missing or malformed.
type Event struct {
	ID          int
	UID         string // set for external calendar events
	Source      string
	Title       string
	Description string
	Location    string
	Slug        string
	EventType   int
	ImageURL    string
	ThumbURL    string
	EventStart  time.Time
	EventEnd    time.Time
	Attendance  *Attendance
}

type Attendance struct {
	RegistrationStart time.Time // zero when absent
	RegistrationEnd   time.Time
	MaxCapacity       *int
	SeatsTaken        *int
}

// RegistrationStart returns the registration opening instant, zero if none.
func (e *Event) RegistrationStart() time.Time {
	if e.Attendance == nil {
		return time.Time{}
	}
	return e.Attendance.RegistrationStart
}

// HasRegistration reports whether the event carries a registration start.
func (e *Event) HasRegistration() bool {
	return !e.RegistrationStart().IsZero()
}

// SeatsLabel renders "12/40" style capacity, empty when unknown.
func (e *Event) SeatsLabel() string {
	if e.Attendance == nil || e.Attendance.MaxCapacity == nil {
		return ""
	}
	taken := 0
	if e.Attendance.SeatsTaken != nil {
		taken = *e.Attendance.SeatsTaken
	}
	return fmt.Sprintf("%d/%d", taken, *e.Attendance.MaxCapacity)
}

// FormatTime returns the start/end clock range in loc.
func (e *Event) FormatTime(loc *time.Location) string {
	if e.EventStart.IsZero() {
		return "?"
	}
	start := e.EventStart.In(loc).Format("15:04")
	if e.EventEnd.IsZero() {
		return start
	}
	return start + "-" + e.EventEnd.In(loc).Format("15:04")
}

// FormatDateTime returns date and start time in loc.
func (e *Event) FormatDateTime(loc *time.Location) string {
	if e.EventStart.IsZero() {
		return "unknown date"
	}
	return e.EventStart.In(loc).Format("Mon 02.01.2006 15:04")
}

// Career is a job posting from the career feed.
type Career struct {
	ID       int
	Title    string
	Company  string
	ImageURL string
}

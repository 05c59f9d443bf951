package caldav

import "time"

// Calendar represents a calendar collection on the server
type Calendar struct {
	ID          string // Calendar path/URL
	DisplayName string
	URL         string
}

// Event represents a VEVENT before recurrence expansion
type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	AllDay      bool
	RRule       string // Recurrence rule (e.g., "FREQ=WEEKLY;BYDAY=MO")
}

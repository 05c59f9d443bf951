package online

// Wire shapes of the events and career endpoints.

type EventResponse struct {
	Count   int     `json:"count,omitempty"`
	Next    *string `json:"next"`
	Results []Event `json:"results"`
}

type Event struct {
	ID              int              `json:"id"`
	Title           string           `json:"title"`
	Slug            string           `json:"slug,omitempty"`
	Description     string           `json:"description"`
	Ingress         string           `json:"ingress,omitempty"`
	EventStart      string           `json:"event_start"`
	EventEnd        string           `json:"event_end"`
	Location        string           `json:"location"`
	EventType       int              `json:"event_type,omitempty"`
	Image           *Image           `json:"image,omitempty"`
	AttendanceEvent *AttendanceEvent `json:"attendance_event,omitempty"`
}

type Image struct {
	Thumb    string `json:"thumb,omitempty"`
	Original string `json:"original,omitempty"`
	XS       string `json:"xs,omitempty"`
}

type AttendanceEvent struct {
	RegistrationStart  *string `json:"registration_start"`
	RegistrationEnd    *string `json:"registration_end"`
	MaxCapacity        *int    `json:"max_capacity"`
	NumberOfSeatsTaken *int    `json:"number_of_seats_taken"`
}

type CareerResponse struct {
	Next    *string  `json:"next"`
	Results []Career `json:"results"`
}

type Career struct {
	ID      int     `json:"id"`
	Title   string  `json:"title"`
	Company Company `json:"company"`
}

type Company struct {
	Name  string `json:"name,omitempty"`
	Image *Image `json:"image,omitempty"`
}

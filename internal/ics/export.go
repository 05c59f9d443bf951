package ics

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tazhate/onlinebot/internal/domain"
)

const productID = "-//OnlineBot//Events//EN"

// Encode writes events as a VCALENDAR. Pending reminders are attached to
// their event as VALARMs with an absolute trigger. Events without a start
// time are left out.
func Encode(w io.Writer, events []domain.Event, pending []*domain.Notification, eventURL func(int) string) error {
	byEvent := make(map[int][]*domain.Notification)
	for _, n := range pending {
		if n.Status == domain.NotificationPending {
			byEvent[n.EventID] = append(byEvent[n.EventID], n)
		}
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	stamp := time.Now().UTC()
	for i := range events {
		e := &events[i]
		if e.EventStart.IsZero() {
			continue
		}

		vevent := ical.NewEvent()
		vevent.Props.SetText(ical.PropUID, uid(e))
		vevent.Props.SetText(ical.PropSummary, e.Title)
		vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		vevent.Props.SetDateTime(ical.PropDateTimeStart, e.EventStart.UTC())
		if !e.EventEnd.IsZero() {
			vevent.Props.SetDateTime(ical.PropDateTimeEnd, e.EventEnd.UTC())
		}
		if e.Description != "" {
			vevent.Props.SetText(ical.PropDescription, e.Description)
		}
		if e.Location != "" {
			vevent.Props.SetText(ical.PropLocation, e.Location)
		}
		if e.ID > 0 && eventURL != nil {
			vevent.Props.SetText(ical.PropURL, eventURL(e.ID))
		}

		for _, n := range byEvent[e.ID] {
			vevent.Children = append(vevent.Children, alarm(n))
		}

		cal.Children = append(cal.Children, vevent.Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func alarm(n *domain.Notification) *ical.Component {
	valarm := ical.NewComponent(ical.CompAlarm)
	valarm.Props.SetText(ical.PropAction, "DISPLAY")
	valarm.Props.SetText(ical.PropDescription, n.Title)

	trigger := ical.NewProp(ical.PropTrigger)
	trigger.SetDateTime(n.FireAt.UTC())
	trigger.Params.Set(ical.ParamValue, string(ical.ValueDateTime))
	valarm.Props.Set(trigger)

	return valarm
}

func uid(e *domain.Event) string {
	if e.UID != "" {
		return e.UID
	}
	return fmt.Sprintf("event-%d@online.ntnu.no", e.ID)
}

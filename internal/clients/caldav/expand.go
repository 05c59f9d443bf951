package caldav

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// maxOccurrences caps expansion of a single recurring event.
const maxOccurrences = 500

// Expand turns a recurring event into its occurrences within [from, to].
// Non-recurring events are returned as is.
func Expand(ev Event, from, to time.Time) ([]Event, error) {
	if ev.RRule == "" {
		return []Event{ev}, nil
	}
	if ev.StartTime.IsZero() {
		return nil, fmt.Errorf("recurring event %s has no start", ev.UID)
	}

	opt, err := rrule.StrToROption(strings.TrimPrefix(ev.RRule, "RRULE:"))
	if err != nil {
		return nil, fmt.Errorf("parse rrule: %w", err)
	}
	opt.Dtstart = ev.StartTime

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule: %w", err)
	}

	var duration time.Duration
	if !ev.EndTime.IsZero() {
		duration = ev.EndTime.Sub(ev.StartTime)
	}

	starts := rule.Between(from, to, true)
	if len(starts) > maxOccurrences {
		starts = starts[:maxOccurrences]
	}

	out := make([]Event, 0, len(starts))
	for _, start := range starts {
		occ := ev
		occ.RRule = ""
		occ.StartTime = start
		if duration > 0 {
			occ.EndTime = start.Add(duration)
		}
		out = append(out, occ)
	}
	return out, nil
}

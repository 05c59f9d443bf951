package domain

import (
	"fmt"
	"strings"
	"time"
)

// LeadTime is how long before registration opens a reminder fires.
type LeadTime time.Duration

const (
	LeadTime15Minutes = LeadTime(15 * time.Minute)
	LeadTime30Minutes = LeadTime(30 * time.Minute)
	LeadTime1Day      = LeadTime(24 * time.Hour)
)

// LeadTimes returns the selectable lead times in menu order.
func LeadTimes() []LeadTime {
	return []LeadTime{LeadTime15Minutes, LeadTime30Minutes, LeadTime1Day}
}

func ParseLeadTime(s string) (LeadTime, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "15m", "15min", "15":
		return LeadTime15Minutes, nil
	case "30m", "30min", "30":
		return LeadTime30Minutes, nil
	case "1d", "1day", "24h", "1440":
		return LeadTime1Day, nil
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnknownLeadTime)
}

func (l LeadTime) Duration() time.Duration {
	return time.Duration(l)
}

// Valid reports whether l is one of LeadTimes.
func (l LeadTime) Valid() bool {
	for _, v := range LeadTimes() {
		if v == l {
			return true
		}
	}
	return false
}

func (l LeadTime) Code() string {
	switch l {
	case LeadTime15Minutes:
		return "15m"
	case LeadTime30Minutes:
		return "30m"
	case LeadTime1Day:
		return "1d"
	}
	return time.Duration(l).String()
}

func (l LeadTime) String() string {
	switch l {
	case LeadTime15Minutes:
		return "15 minutes"
	case LeadTime30Minutes:
		return "30 minutes"
	case LeadTime1Day:
		return "1 day"
	}
	return time.Duration(l).String()
}

// ReminderRequest is the result of a successful schedule call.
type ReminderRequest struct {
	ID       string // opaque identifier used for cancellation
	EventID  int
	ChatID   int64
	LeadTime LeadTime
	FireAt   time.Time
	Title    string
	Body     string
}

type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationDelivered NotificationStatus = "delivered"
	NotificationFailed    NotificationStatus = "failed"
	NotificationCancelled NotificationStatus = "cancelled"
)

// MaxDeliveryAttempts bounds redelivery of a due notification.
const MaxDeliveryAttempts = 3

// Notification is an armed one-shot trigger owned by the notifier.
type Notification struct {
	ID          string
	ChatID      int64
	EventID     int
	FireAt      time.Time
	Title       string
	Body        string
	Status      NotificationStatus
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	DeliveredAt *time.Time
}

// IsTerminal reports whether the notification left the pending state.
func (n *Notification) IsTerminal() bool {
	return n.Status != NotificationPending
}

// MarkAttemptFailed records a failed delivery and gives up after
// MaxDeliveryAttempts.
func (n *Notification) MarkAttemptFailed(err error) {
	n.Attempts++
	n.LastError = err.Error()
	if n.Attempts >= MaxDeliveryAttempts {
		n.Status = NotificationFailed
	}
}

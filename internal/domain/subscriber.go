package domain

import "time"

// Subscriber is a Telegram chat that talks to the bot.
type Subscriber struct {
	ChatID               int64
	Name                 string
	Email                string
	NotificationsEnabled bool
	WelcomeShown         bool
	ViewedVersion        string
	CreatedAt            time.Time
}

// CanNotify is the notification permission check used before arming.
func (s *Subscriber) CanNotify() bool {
	return s != nil && s.NotificationsEnabled
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/tazhate/onlinebot/internal/domain"
)

const AppVersion = "1.2.0"

type Config struct {
	TelegramToken  string
	AllowedChatIDs []int64
	DatabasePath   string
	Timezone       *time.Location
	WeekStart      time.Weekday

	AllowPastMonths bool
	DefaultLeadTime domain.LeadTime
	DigestTime      string

	EventsAPIURL   string
	CareerAPIURL   string
	EventsPageSize int
	EventsMaxPages int

	CalDAVURL          string
	CalDAVUsername     string
	CalDAVPassword     string
	CalDAVCalendarPath string

	ResendAPIKey string
	EmailFrom    string

	WebhookURL  string
	ServerPort  string
	APIUsername string
	APIPassword string

	AppVersion string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	allowed, err := parseChatIDs(os.Getenv("ALLOWED_CHAT_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid ALLOWED_CHAT_IDS: %w", err)
	}

	tz, err := time.LoadLocation(getEnvOrDefault("TIMEZONE", "Europe/Oslo"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	weekStart, err := domain.ParseWeekStart(getEnvOrDefault("WEEK_START", "monday"))
	if err != nil {
		return nil, fmt.Errorf("invalid WEEK_START: %w", err)
	}

	lead, err := domain.ParseLeadTime(getEnvOrDefault("DEFAULT_LEAD_TIME", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_LEAD_TIME: %w", err)
	}

	digest := getEnvOrDefault("DIGEST_TIME", "09:00")
	if _, err := DailySpec(digest); err != nil {
		return nil, fmt.Errorf("invalid DIGEST_TIME: %w", err)
	}

	pageSize, err := strconv.Atoi(getEnvOrDefault("EVENTS_PAGE_SIZE", "20"))
	if err != nil || pageSize <= 0 {
		return nil, fmt.Errorf("EVENTS_PAGE_SIZE must be a positive number")
	}
	maxPages, err := strconv.Atoi(getEnvOrDefault("EVENTS_MAX_PAGES", "3"))
	if err != nil || maxPages <= 0 {
		return nil, fmt.Errorf("EVENTS_MAX_PAGES must be a positive number")
	}

	return &Config{
		TelegramToken:   token,
		AllowedChatIDs:  allowed,
		DatabasePath:    getEnvOrDefault("DATABASE_PATH", "./data/onlinebot.db"),
		Timezone:        tz,
		WeekStart:       weekStart,
		AllowPastMonths: getEnvOrDefault("ALLOW_PAST_MONTHS", "false") == "true",
		DefaultLeadTime: lead,
		DigestTime:      digest,

		EventsAPIURL:   getEnvOrDefault("EVENTS_API_URL", "https://old.online.ntnu.no/api/v1/events/"),
		CareerAPIURL:   getEnvOrDefault("CAREER_API_URL", "https://old.online.ntnu.no/api/v1/career/"),
		EventsPageSize: pageSize,
		EventsMaxPages: maxPages,

		CalDAVURL:          os.Getenv("CALDAV_URL"),
		CalDAVUsername:     os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword:     os.Getenv("CALDAV_PASSWORD"),
		CalDAVCalendarPath: os.Getenv("CALDAV_CALENDAR_PATH"),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		EmailFrom:    getEnvOrDefault("EMAIL_FROM", "Online Events <noreply@online.ntnu.no>"),

		WebhookURL:  os.Getenv("WEBHOOK_URL"),
		ServerPort:  getEnvOrDefault("SERVER_PORT", "8080"),
		APIUsername: os.Getenv("API_USERNAME"),
		APIPassword: os.Getenv("API_PASSWORD"),

		AppVersion: getEnvOrDefault("APP_VERSION", AppVersion),
	}, nil
}

// IsAllowedChat returns true when no allow list is configured or chatID is on it.
func (c *Config) IsAllowedChat(chatID int64) bool {
	if len(c.AllowedChatIDs) == 0 {
		return true
	}
	for _, id := range c.AllowedChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// APIEnabled reports whether REST API credentials are set.
func (c *Config) APIEnabled() bool {
	return c.APIUsername != "" && c.APIPassword != ""
}

// DailySpec converts "HH:MM" into a five-field cron spec and validates it.
func DailySpec(hhmm string) (string, error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format: %s", hhmm)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", fmt.Errorf("invalid hour in %s", hhmm)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", fmt.Errorf("invalid minute in %s", hhmm)
	}
	spec := fmt.Sprintf("%d %d * * *", minute, hour)

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(spec); err != nil {
		return "", fmt.Errorf("parse schedule: %w", err)
	}
	return spec, nil
}

func parseChatIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

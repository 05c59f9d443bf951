package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tazhate/onlinebot/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// Times are stored as unix seconds so that due queries compare integers.
func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS subscribers (
			chat_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			notifications_enabled INTEGER NOT NULL DEFAULT 1,
			welcome_shown INTEGER NOT NULL DEFAULT 0,
			viewed_version TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			chat_id INTEGER NOT NULL,
			event_id INTEGER NOT NULL,
			fire_at INTEGER NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (chat_id) REFERENCES subscribers(chat_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_due ON notifications(status, fire_at)`,
		`ALTER TABLE notifications ADD COLUMN last_error TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE notifications ADD COLUMN delivered_at INTEGER`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// === Subscribers ===

// UpsertSubscriber inserts a subscriber or refreshes its display name.
func (s *Storage) UpsertSubscriber(ctx context.Context, sub *domain.Subscriber) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers (chat_id, name, email, notifications_enabled, welcome_shown, viewed_version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET name = excluded.name`,
		sub.ChatID, sub.Name, sub.Email, sub.NotificationsEnabled, sub.WelcomeShown, sub.ViewedVersion, sub.CreatedAt.Unix(),
	)
	return err
}

func (s *Storage) GetSubscriber(ctx context.Context, chatID int64) (*domain.Subscriber, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT chat_id, name, email, notifications_enabled, welcome_shown, viewed_version, created_at
		 FROM subscribers WHERE chat_id = ?`,
		chatID,
	)
	sub, err := scanSubscriber(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sub, err
}

func (s *Storage) ListSubscribers(ctx context.Context, enabledOnly bool) ([]*domain.Subscriber, error) {
	query := `SELECT chat_id, name, email, notifications_enabled, welcome_shown, viewed_version, created_at
		 FROM subscribers`
	if enabledOnly {
		query += ` WHERE notifications_enabled = 1`
	}
	query += ` ORDER BY chat_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*domain.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Storage) SetNotificationsEnabled(ctx context.Context, chatID int64, enabled bool) error {
	return s.updateSubscriber(ctx, `UPDATE subscribers SET notifications_enabled = ? WHERE chat_id = ?`, enabled, chatID)
}

func (s *Storage) SetSubscriberEmail(ctx context.Context, chatID int64, email string) error {
	return s.updateSubscriber(ctx, `UPDATE subscribers SET email = ? WHERE chat_id = ?`, email, chatID)
}

// MarkWelcomeShown records that onboarding and the notes for version were shown.
func (s *Storage) MarkWelcomeShown(ctx context.Context, chatID int64, version string) error {
	return s.updateSubscriber(ctx, `UPDATE subscribers SET welcome_shown = 1, viewed_version = ? WHERE chat_id = ?`, version, chatID)
}

func (s *Storage) updateSubscriber(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("subscriber not found")
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(sc scanner) (*domain.Subscriber, error) {
	sub := &domain.Subscriber{}
	var createdAt int64
	if err := sc.Scan(&sub.ChatID, &sub.Name, &sub.Email, &sub.NotificationsEnabled, &sub.WelcomeShown, &sub.ViewedVersion, &createdAt); err != nil {
		return nil, err
	}
	sub.CreatedAt = time.Unix(createdAt, 0)
	return sub, nil
}

// === Notifications ===

const notificationColumns = `id, chat_id, event_id, fire_at, title, body, status, attempts, last_error, created_at, delivered_at`

func (s *Storage) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Status == "" {
		n.Status = domain.NotificationPending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, chat_id, event_id, fire_at, title, body, status, attempts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.ChatID, n.EventID, n.FireAt.Unix(), n.Title, n.Body, n.Status, n.Attempts, n.CreatedAt.Unix(),
	)
	return err
}

func (s *Storage) GetNotification(ctx context.Context, id string) (*domain.Notification, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

// ListPendingNotifications returns pending notifications ordered by fire time.
// chatID 0 lists every chat.
func (s *Storage) ListPendingNotifications(ctx context.Context, chatID int64) ([]*domain.Notification, error) {
	if chatID == 0 {
		return s.queryNotifications(ctx,
			`SELECT `+notificationColumns+` FROM notifications WHERE status = ? ORDER BY fire_at ASC`,
			domain.NotificationPending)
	}
	return s.queryNotifications(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE status = ? AND chat_id = ? ORDER BY fire_at ASC`,
		domain.NotificationPending, chatID)
}

func (s *Storage) ListDueNotifications(ctx context.Context, now time.Time) ([]*domain.Notification, error) {
	return s.queryNotifications(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE status = ? AND fire_at <= ? ORDER BY fire_at ASC`,
		domain.NotificationPending, now.Unix())
}

// UpdateNotificationState persists status, attempts, last error and delivery time.
func (s *Storage) UpdateNotificationState(ctx context.Context, n *domain.Notification) error {
	var deliveredAt any
	if n.DeliveredAt != nil {
		deliveredAt = n.DeliveredAt.Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = ?, attempts = ?, last_error = ?, delivered_at = ? WHERE id = ?`,
		n.Status, n.Attempts, n.LastError, deliveredAt, n.ID,
	)
	return err
}

// CancelNotification moves a pending notification to cancelled.
// It reports whether a row changed.
func (s *Storage) CancelNotification(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = ? WHERE id = ? AND status = ?`,
		domain.NotificationCancelled, id, domain.NotificationPending,
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Storage) queryNotifications(ctx context.Context, query string, args ...any) ([]*domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNotification(sc scanner) (*domain.Notification, error) {
	n := &domain.Notification{}
	var fireAt, createdAt int64
	var deliveredAt sql.NullInt64
	if err := sc.Scan(&n.ID, &n.ChatID, &n.EventID, &fireAt, &n.Title, &n.Body, &n.Status, &n.Attempts, &n.LastError, &createdAt, &deliveredAt); err != nil {
		return nil, err
	}
	n.FireAt = time.Unix(fireAt, 0)
	n.CreatedAt = time.Unix(createdAt, 0)
	if deliveredAt.Valid {
		t := time.Unix(deliveredAt.Int64, 0)
		n.DeliveredAt = &t
	}
	return n, nil
}

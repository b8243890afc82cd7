package notifications

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantumlife/hearth/internal/clock"
	"github.com/quantumlife/hearth/internal/core"
	"github.com/quantumlife/hearth/internal/notify"
	"github.com/quantumlife/hearth/internal/storage"
)

// Subscriber receives notifications in real-time
type Subscriber interface {
	Send(notification Notification) error
	ID() string
}

// Service manages notifications. It implements notify.Notifier.
type Service struct {
	db          *storage.DB
	clock       clock.Clock
	subscribers map[string]Subscriber
	mu          sync.RWMutex
}

var _ notify.Notifier = (*Service)(nil)

// NewService creates a new notification service
func NewService(db *storage.DB, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{
		db:          db,
		clock:       clk,
		subscribers: make(map[string]Subscriber),
	}
}

// Subscribe adds a subscriber for real-time notifications
func (s *Service) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[sub.ID()] = sub
}

// Unsubscribe removes a subscriber
func (s *Service) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, id)
}

// Notify stores t and sends it to subscribers.
func (s *Service) Notify(ctx context.Context, t notify.Toast) error {
	_, err := s.Create(ctx, t)
	return err
}

// Create creates and sends a new notification
func (s *Service) Create(ctx context.Context, t notify.Toast) (*Notification, error) {
	if t.Title == "" {
		return nil, fmt.Errorf("%w: title", core.ErrMissingRequired)
	}
	if !t.Severity.Valid() {
		t.Severity = notify.SeverityInfo
	}

	now := s.clock.Now().UTC()
	n := &Notification{
		ID:          uuid.New().String(),
		Title:       t.Title,
		Description: t.Description,
		Severity:    t.Severity,
		CreatedAt:   now,
	}
	if d := t.Severity.Duration(); d > 0 {
		expires := now.Add(d)
		n.ExpiresAt = &expires
	}

	if err := s.save(ctx, n); err != nil {
		return nil, fmt.Errorf("save notification: %w", err)
	}

	s.broadcast(*n)

	return n, nil
}

// save persists a notification to the database
func (s *Service) save(ctx context.Context, n *Notification) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO toasts (id, title, description, severity, dismissed, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.Title, n.Description, string(n.Severity), n.Dismissed, n.CreatedAt.UnixNano(), nullTime(n.ExpiresAt))

	return err
}

// broadcast sends notification to all subscribers
func (s *Service) broadcast(n Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscribers {
		go func(subscriber Subscriber) {
			subscriber.Send(n)
		}(sub)
	}
}

const selectColumns = `SELECT id, title, description, severity, dismissed, created_at, expires_at, dismissed_at FROM toasts`

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(row scanner) (*Notification, error) {
	n := &Notification{}
	var severity string
	var createdAt int64
	var expiresAt, dismissedAt sql.NullInt64

	if err := row.Scan(&n.ID, &n.Title, &n.Description, &severity, &n.Dismissed, &createdAt, &expiresAt, &dismissedAt); err != nil {
		return nil, err
	}

	n.Severity = notify.Severity(severity)
	n.CreatedAt = time.Unix(0, createdAt).UTC()
	n.ExpiresAt = fromNull(expiresAt)
	n.DismissedAt = fromNull(dismissedAt)
	return n, nil
}

// Get retrieves a notification by ID
func (s *Service) Get(ctx context.Context, id string) (*Notification, error) {
	n, err := scanNotification(s.db.Conn().QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, core.ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// List retrieves notifications with optional filters, newest first
func (s *Service) List(ctx context.Context, filter NotificationFilter) ([]*Notification, error) {
	query := selectColumns + ` WHERE 1=1`
	args := []any{}

	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(filter.Severity))
	}
	if filter.ActiveOnly {
		query += " AND dismissed = FALSE AND (expires_at IS NULL OR expires_at > ?)"
		args = append(args, s.clock.Now().UnixNano())
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 50"
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// GetActive retrieves toasts that are neither dismissed nor expired
func (s *Service) GetActive(ctx context.Context) ([]*Notification, error) {
	return s.List(ctx, NotificationFilter{ActiveOnly: true, Limit: 100})
}

// Dismiss dismisses a notification
func (s *Service) Dismiss(ctx context.Context, id string) error {
	now := s.clock.Now().UnixNano()
	result, err := s.db.Conn().ExecContext(ctx, `
		UPDATE toasts SET dismissed = TRUE, dismissed_at = ? WHERE id = ? AND dismissed = FALSE
	`, now, id)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// DismissAll dismisses every active notification
func (s *Service) DismissAll(ctx context.Context) (int, error) {
	now := s.clock.Now().UnixNano()
	result, err := s.db.Conn().ExecContext(ctx, `
		UPDATE toasts SET dismissed = TRUE, dismissed_at = ? WHERE dismissed = FALSE
	`, now)
	if err != nil {
		return 0, err
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

// ActiveCount returns the count of active notifications
func (s *Service) ActiveCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM toasts WHERE dismissed = FALSE AND (expires_at IS NULL OR expires_at > ?)
	`, s.clock.Now().UnixNano()).Scan(&count)
	return count, err
}

// Stats returns notification statistics
func (s *Service) Stats(ctx context.Context) (*NotificationStats, error) {
	stats := &NotificationStats{
		BySeverity: make(map[string]int),
	}

	err := s.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM toasts`).Scan(&stats.Total)
	if err != nil {
		return nil, err
	}

	if stats.Active, err = s.ActiveCount(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.Conn().QueryContext(ctx, `SELECT severity, COUNT(*) FROM toasts GROUP BY severity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sev string
		var count int
		if err := rows.Scan(&sev, &count); err == nil {
			stats.BySeverity[sev] = count
		}
	}

	var lastCreated sql.NullInt64
	s.db.Conn().QueryRowContext(ctx, `SELECT MAX(created_at) FROM toasts`).Scan(&lastCreated)
	stats.LastCreated = fromNull(lastCreated)

	return stats, nil
}

// Cleanup removes old notifications that are no longer shown
func (s *Service) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	now := s.clock.Now()
	cutoff := now.Add(-olderThan).UnixNano()
	result, err := s.db.Conn().ExecContext(ctx, `
		DELETE FROM toasts
		WHERE created_at < ? AND (dismissed = TRUE OR (expires_at IS NOT NULL AND expires_at <= ?))
	`, cutoff, now.UnixNano())
	if err != nil {
		return 0, err
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}

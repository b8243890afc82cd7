// Package notifications keeps the toast history and pushes new toasts to
// live subscribers such as WebSocket clients.
package notifications

import (
	"time"

	"github.com/quantumlife/hearth/internal/notify"
)

// Notification is a toast as stored and delivered to subscribers.
type Notification struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Severity    notify.Severity `json:"severity"`
	Dismissed   bool            `json:"dismissed"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"` // nil for sticky toasts
	DismissedAt *time.Time      `json:"dismissed_at,omitempty"`
}

// Toast returns the user-visible part of n.
func (n Notification) Toast() notify.Toast {
	return notify.Toast{Title: n.Title, Description: n.Description, Severity: n.Severity}
}

// Active reports whether n should still be shown at now.
func (n Notification) Active(now time.Time) bool {
	if n.Dismissed {
		return false
	}
	return n.ExpiresAt == nil || n.ExpiresAt.After(now)
}

// NotificationFilter for querying notifications
type NotificationFilter struct {
	Severity notify.Severity
	// ActiveOnly drops dismissed and expired toasts.
	ActiveOnly bool
	Limit      int
	Offset     int
}

// NotificationStats represents notification statistics
type NotificationStats struct {
	Total       int            `json:"total"`
	Active      int            `json:"active"`
	BySeverity  map[string]int `json:"by_severity"`
	LastCreated *time.Time     `json:"last_created,omitempty"`
}

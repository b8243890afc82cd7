// Package notify defines the toast surface that the store and the error
// handler push user-visible messages through. The store never renders toasts
// itself; hosts decide where they go.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/quantumlife/hearth/internal/logging"
)

// Severity of a toast.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Duration returns how long a toast of this severity stays visible.
// Zero means it is not dismissed automatically.
func (s Severity) Duration() time.Duration {
	switch s {
	case SeverityInfo, SeverityWarning:
		return 3 * time.Second
	case SeverityError:
		return 10 * time.Second
	case SeverityCritical:
		return 0
	}
	return 5 * time.Second
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// Toast is a user-visible message.
type Toast struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// Notifier delivers toasts.
type Notifier interface {
	Notify(ctx context.Context, t Toast) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, t Toast) error

// Notify calls f.
func (f Func) Notify(ctx context.Context, t Toast) error { return f(ctx, t) }

// Log writes toasts to a logger at a level matching their severity.
type Log struct {
	Logger *logging.Logger
}

// Notify logs t.
func (n Log) Notify(_ context.Context, t Toast) error {
	l := n.Logger
	if l == nil {
		l = logging.Default()
	}
	l = l.WithField("severity", string(t.Severity))
	switch t.Severity {
	case SeverityError, SeverityCritical:
		l.Error("[Toast] %s: %s", t.Title, t.Description)
	case SeverityWarning:
		l.Warn("[Toast] %s: %s", t.Title, t.Description)
	default:
		l.Info("[Toast] %s: %s", t.Title, t.Description)
	}
	return nil
}

// Multi fans a toast out to several notifiers. Every notifier is called even
// if an earlier one fails; the first error is returned.
type Multi []Notifier

// Notify delivers t to each notifier in order.
func (m Multi) Notify(ctx context.Context, t Toast) error {
	var first error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, t); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Recorder keeps every toast it receives. Used by tests and the CLI.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

// Notify records t.
func (r *Recorder) Notify(_ context.Context, t Toast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
	return nil
}

// Toasts returns a copy of the recorded toasts.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Toast, len(r.toasts))
	copy(out, r.toasts)
	return out
}

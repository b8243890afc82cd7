package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/quantumlife/hearth/internal/clock"
	"github.com/quantumlife/hearth/internal/core"
	"github.com/quantumlife/hearth/internal/notify"
	"github.com/quantumlife/hearth/internal/storage"
)

// mockSubscriber implements Subscriber interface for testing
type mockSubscriber struct {
	id            string
	notifications []Notification
	received      chan struct{}
	mu            sync.Mutex
}

func newMockSubscriber(id string) *mockSubscriber {
	return &mockSubscriber{
		id:            id,
		notifications: make([]Notification, 0),
		received:      make(chan struct{}, 16),
	}
}

func (m *mockSubscriber) Send(n Notification) error {
	m.mu.Lock()
	m.notifications = append(m.notifications, n)
	m.mu.Unlock()
	m.received <- struct{}{}
	return nil
}

func (m *mockSubscriber) ID() string {
	return m.id
}

func (m *mockSubscriber) wait(t *testing.T) Notification {
	t.Helper()
	select {
	case <-m.received:
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber %s received nothing", m.id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notifications[len(m.notifications)-1]
}

var testStart = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// createTestService creates a notification service for testing
func createTestService(t *testing.T) (*Service, *clock.Manual) {
	t.Helper()

	db, err := storage.Open(storage.Config{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clk := clock.NewManual(testStart)
	service := NewService(db, clk)

	t.Cleanup(func() {
		db.Close()
	})

	return service, clk
}

func TestNewService(t *testing.T) {
	svc, _ := createTestService(t)

	if svc.db == nil {
		t.Error("expected non-nil db")
	}
	if svc.subscribers == nil {
		t.Error("expected non-nil subscribers map")
	}
	if NewService(svc.db, nil).clock == nil {
		t.Error("expected default clock")
	}
}

func TestService_SubscribeUnsubscribe(t *testing.T) {
	svc, _ := createTestService(t)

	svc.Subscribe(newMockSubscriber("sub-1"))
	svc.Subscribe(newMockSubscriber("sub-2"))
	svc.Unsubscribe("sub-1")

	svc.mu.RLock()
	defer svc.mu.RUnlock()

	if len(svc.subscribers) != 1 {
		t.Errorf("expected 1 subscriber, got %d", len(svc.subscribers))
	}
	if _, ok := svc.subscribers["sub-2"]; !ok {
		t.Error("expected sub-2 to be subscribed")
	}
}

func TestService_Create(t *testing.T) {
	svc, _ := createTestService(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		toast       notify.Toast
		wantSev     notify.Severity
		wantExpires time.Duration // zero means sticky
		wantErr     bool
	}{
		{
			name:        "info",
			toast:       notify.Toast{Title: "Saved", Severity: notify.SeverityInfo},
			wantSev:     notify.SeverityInfo,
			wantExpires: 3 * time.Second,
		},
		{
			name:        "error",
			toast:       notify.Toast{Title: "NetworkError", Description: "offline", Severity: notify.SeverityError},
			wantSev:     notify.SeverityError,
			wantExpires: 10 * time.Second,
		},
		{
			name:    "critical is sticky",
			toast:   notify.Toast{Title: "ServerError", Severity: notify.SeverityCritical},
			wantSev: notify.SeverityCritical,
		},
		{
			name:        "unknown severity defaults to info",
			toast:       notify.Toast{Title: "Hello", Severity: "loud"},
			wantSev:     notify.SeverityInfo,
			wantExpires: 3 * time.Second,
		},
		{
			name:    "missing title",
			toast:   notify.Toast{Description: "no title"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := svc.Create(ctx, tt.toast)

			if tt.wantErr {
				if !errors.Is(err, core.ErrMissingRequired) {
					t.Errorf("Create() error = %v, want %v", err, core.ErrMissingRequired)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			if n.ID == "" {
				t.Error("expected non-empty ID")
			}
			if n.Severity != tt.wantSev {
				t.Errorf("Severity = %v, want %v", n.Severity, tt.wantSev)
			}
			if !n.CreatedAt.Equal(testStart) {
				t.Errorf("CreatedAt = %v, want %v", n.CreatedAt, testStart)
			}
			switch {
			case tt.wantExpires == 0 && n.ExpiresAt != nil:
				t.Errorf("ExpiresAt = %v, want nil", *n.ExpiresAt)
			case tt.wantExpires > 0 && (n.ExpiresAt == nil || !n.ExpiresAt.Equal(testStart.Add(tt.wantExpires))):
				t.Errorf("ExpiresAt = %v, want %v", n.ExpiresAt, testStart.Add(tt.wantExpires))
			}

			got, err := svc.Get(ctx, n.ID)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Title != n.Title || got.Description != n.Description || got.Severity != n.Severity {
				t.Errorf("Get() = %+v, want %+v", got, n)
			}
		})
	}
}

func TestService_NotifyBroadcasts(t *testing.T) {
	svc, _ := createTestService(t)
	sub := newMockSubscriber("ws-1")
	svc.Subscribe(sub)

	var n notify.Notifier = svc
	if err := n.Notify(context.Background(), notify.Toast{Title: "ClientError", Description: "Rate limit exceeded", Severity: notify.SeverityWarning}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	got := sub.wait(t)
	if got.Title != "ClientError" || got.Severity != notify.SeverityWarning {
		t.Errorf("subscriber got %+v", got)
	}
	if got.Toast().Description != "Rate limit exceeded" {
		t.Errorf("Toast().Description = %q", got.Toast().Description)
	}
}

func TestService_Get_NotFound(t *testing.T) {
	svc, _ := createTestService(t)

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, core.ErrNotificationNotFound) {
		t.Errorf("Get() error = %v, want %v", err, core.ErrNotificationNotFound)
	}
}

func TestService_ActiveAndExpiry(t *testing.T) {
	svc, clk := createTestService(t)
	ctx := context.Background()

	info, _ := svc.Create(ctx, notify.Toast{Title: "info", Severity: notify.SeverityInfo})
	clk.Advance(time.Millisecond)
	crit, _ := svc.Create(ctx, notify.Toast{Title: "crit", Severity: notify.SeverityCritical})

	active, err := svc.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if len(active) != 2 || active[0].ID != crit.ID || active[1].ID != info.ID {
		t.Fatalf("GetActive() = %v, want [crit info]", active)
	}

	clk.Advance(5 * time.Second)

	active, _ = svc.GetActive(ctx)
	if len(active) != 1 || active[0].ID != crit.ID {
		t.Errorf("GetActive() after expiry = %v, want [crit]", active)
	}
	count, _ := svc.ActiveCount(ctx)
	if count != 1 {
		t.Errorf("ActiveCount() = %d, want 1", count)
	}

	all, _ := svc.List(ctx, NotificationFilter{})
	if len(all) != 2 {
		t.Errorf("List() = %d, want 2", len(all))
	}
	crits, _ := svc.List(ctx, NotificationFilter{Severity: notify.SeverityCritical})
	if len(crits) != 1 {
		t.Errorf("List(critical) = %d, want 1", len(crits))
	}
}

func TestService_Dismiss(t *testing.T) {
	svc, clk := createTestService(t)
	ctx := context.Background()

	n, _ := svc.Create(ctx, notify.Toast{Title: "sticky", Severity: notify.SeverityCritical})
	clk.Advance(time.Minute)

	if err := svc.Dismiss(ctx, n.ID); err != nil {
		t.Fatalf("Dismiss() error = %v", err)
	}
	if err := svc.Dismiss(ctx, n.ID); err != nil {
		t.Errorf("Dismiss() twice error = %v", err)
	}
	if err := svc.Dismiss(ctx, "missing"); !errors.Is(err, core.ErrNotificationNotFound) {
		t.Errorf("Dismiss(missing) error = %v, want %v", err, core.ErrNotificationNotFound)
	}

	got, _ := svc.Get(ctx, n.ID)
	if !got.Dismissed || got.DismissedAt == nil || !got.DismissedAt.Equal(testStart.Add(time.Minute)) {
		t.Errorf("dismissed toast = %+v", got)
	}
	if got.Active(clk.Now()) {
		t.Error("dismissed toast should not be active")
	}
}

func TestService_DismissAll(t *testing.T) {
	svc, _ := createTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		svc.Create(ctx, notify.Toast{Title: "t", Severity: notify.SeverityCritical})
	}

	n, err := svc.DismissAll(ctx)
	if err != nil {
		t.Fatalf("DismissAll() error = %v", err)
	}
	if n != 3 {
		t.Errorf("DismissAll() = %d, want 3", n)
	}
	if count, _ := svc.ActiveCount(ctx); count != 0 {
		t.Errorf("ActiveCount() = %d, want 0", count)
	}
}

func TestService_Stats(t *testing.T) {
	svc, _ := createTestService(t)
	ctx := context.Background()

	svc.Create(ctx, notify.Toast{Title: "a", Severity: notify.SeverityWarning})
	svc.Create(ctx, notify.Toast{Title: "b", Severity: notify.SeverityWarning})
	svc.Create(ctx, notify.Toast{Title: "c", Severity: notify.SeverityError})

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 3 || stats.Active != 3 {
		t.Errorf("Stats() total/active = %d/%d, want 3/3", stats.Total, stats.Active)
	}
	if stats.BySeverity["warning"] != 2 || stats.BySeverity["error"] != 1 {
		t.Errorf("BySeverity = %v", stats.BySeverity)
	}
	if stats.LastCreated == nil || !stats.LastCreated.Equal(testStart) {
		t.Errorf("LastCreated = %v, want %v", stats.LastCreated, testStart)
	}
}

func TestService_Cleanup(t *testing.T) {
	svc, clk := createTestService(t)
	ctx := context.Background()

	svc.Create(ctx, notify.Toast{Title: "expires", Severity: notify.SeverityInfo})
	sticky, _ := svc.Create(ctx, notify.Toast{Title: "sticky", Severity: notify.SeverityCritical})

	clk.Advance(2 * time.Hour)

	removed, err := svc.Cleanup(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Cleanup() = %d, want 1", removed)
	}
	if _, err := svc.Get(ctx, sticky.ID); err != nil {
		t.Errorf("sticky toast should survive cleanup: %v", err)
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantumlife/hearth/internal/clock"
	"github.com/quantumlife/hearth/internal/core"
	"github.com/quantumlife/hearth/internal/kv"
	"github.com/quantumlife/hearth/internal/logging"
	"github.com/quantumlife/hearth/internal/metrics"
	"github.com/quantumlife/hearth/internal/notifications"
	"github.com/quantumlife/hearth/internal/prefs"
	"github.com/quantumlife/hearth/internal/ratelimit"
	"github.com/quantumlife/hearth/internal/scheduler"
	"github.com/quantumlife/hearth/internal/state"
	"github.com/quantumlife/hearth/internal/store"
	"github.com/quantumlife/hearth/internal/testutil"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	srv     *Server
	store   *store.Store
	storage *kv.Memory
	notifs  *notifications.Service
	clock   *clock.Manual
}

// newTestEnv wires a server the way the daemon does, with a tight default
// rate limit bucket.
func newTestEnv(t *testing.T, env store.Environment) *testEnv {
	t.Helper()

	clk := clock.NewManual(testNow)
	mem := kv.NewMemory()
	notifs := notifications.NewService(testutil.TestDB(t), clk)
	m := metrics.NewCollector("")
	rs := ratelimit.NewStore(clk, 0)
	mon := store.NewMonitor(clk, 0, 0)

	chain := store.NewChain(env, store.Deps{
		Logger:     logging.Nop(),
		Clock:      clk,
		Storage:    mem,
		Metrics:    m,
		Errors:     core.NewHandler(logging.Nop(), notifs),
		RateLimits: rs,
		Limits: store.Limits{
			Default: ratelimit.Options{Window: time.Second, MaxRequests: 2, BlockDuration: 2 * time.Second},
		},
		Monitor: mon,
	})
	st := store.New(chain,
		store.WithLogger(logging.Nop()),
		store.WithClock(clk),
		store.WithMetrics(m),
	)

	srv := New(Config{
		Store:         st,
		Storage:       mem,
		Notifications: notifs,
		RateLimits:    rs,
		Metrics:       m,
		Monitor:       mon,
		Logger:        logging.Nop(),
	})
	return &testEnv{srv: srv, store: st, storage: mem, notifs: notifs, clock: clk}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rr, r)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

// --- Health & State ---

func TestAPI_Health(t *testing.T) {
	e := newTestEnv(t, store.Test)

	rr := e.do(t, "GET", "/api/v1/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]any
	decodeBody(t, rr, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestAPI_GetState(t *testing.T) {
	e := newTestEnv(t, store.Test)

	rr := e.do(t, "GET", "/api/v1/state", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var st state.GlobalState
	decodeBody(t, rr, &st)
	if st.App == nil || st.App.Theme != state.ThemeSystem {
		t.Errorf("app = %+v, want system theme", st.App)
	}
	if st.Shopping == nil || st.Shopping.SortOption != state.SortNewest {
		t.Errorf("shopping = %+v, want newest sort", st.Shopping)
	}
}

func TestAPI_GetSlice(t *testing.T) {
	e := newTestEnv(t, store.Test)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/state/app", http.StatusOK},
		{"/api/v1/state/calendar", http.StatusOK},
		{"/api/v1/state/SHOPPING", http.StatusOK},
		{"/api/v1/state/recipes", http.StatusOK},
		{"/api/v1/state/bogus", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if rr := e.do(t, "GET", tt.path, ""); rr.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, rr.Code, tt.want)
			}
		})
	}
}

// --- Dispatch ---

func TestAPI_Dispatch(t *testing.T) {
	e := newTestEnv(t, store.Test)

	rr := e.do(t, "POST", "/api/v1/dispatch", `{"type":"APP","action":{"type":"SET_THEME","payload":"dark"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp DispatchResponse
	decodeBody(t, rr, &resp)
	if resp.State.App.Theme != state.ThemeDark {
		t.Errorf("response theme = %q, want dark", resp.State.App.Theme)
	}
	if got := e.store.State().App.Theme; got != state.ThemeDark {
		t.Errorf("store theme = %q, want dark", got)
	}

	p, err := prefs.Load(context.Background(), e.storage)
	if err != nil {
		t.Fatalf("prefs.Load() error = %v", err)
	}
	if p.Theme != state.ThemeDark {
		t.Errorf("persisted theme = %q, want dark", p.Theme)
	}
}

func TestAPI_Dispatch_CalendarEvent(t *testing.T) {
	e := newTestEnv(t, store.Test)

	body := `{"type":"CALENDAR","action":{"type":"ADD_EVENT","payload":{"id":"e1","title":"Dentist","startDate":"2025-03-02T10:00:00Z","endDate":"2025-03-02T11:00:00Z"}}}`
	rr := e.do(t, "POST", "/api/v1/dispatch", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	events := e.store.State().Calendar.Events
	if len(events) != 1 || events[0].ID != "e1" {
		t.Errorf("events = %+v, want one event e1", events)
	}
}

func TestAPI_Dispatch_Invalid(t *testing.T) {
	e := newTestEnv(t, store.Test)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"type":`},
		{"unknown slice", `{"type":"GARDEN","action":{"type":"WATER"}}`},
		{"missing action type", `{"type":"APP","action":{}}`},
		{"bad payload", `{"type":"APP","action":{"type":"SET_THEME","payload":"neon"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(t, "POST", "/api/v1/dispatch", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
	if got := e.store.State().App.Theme; got != state.ThemeSystem {
		t.Errorf("invalid dispatches changed theme to %q", got)
	}
}

func TestAPI_Dispatch_UnknownActionIgnored(t *testing.T) {
	e := newTestEnv(t, store.Test)
	before := e.store.State()

	rr := e.do(t, "POST", "/api/v1/dispatch", `{"type":"APP","action":{"type":"DANCE"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if after := e.store.State(); after.App != before.App {
		t.Error("unknown action should leave the app slice untouched")
	}
}

func TestAPI_Dispatch_RateLimited(t *testing.T) {
	e := newTestEnv(t, store.Production)
	body := `{"type":"APP","action":{"type":"SET_MOBILE","payload":true}}`

	for i := 0; i < 2; i++ {
		if rr := e.do(t, "POST", "/api/v1/dispatch", body); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i+1, rr.Code)
		}
	}

	rr := e.do(t, "POST", "/api/v1/dispatch", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
	var resp DispatchResponse
	decodeBody(t, rr, &resp)
	if resp.RetryAfter != 2 {
		t.Errorf("retry_after = %d, want 2", resp.RetryAfter)
	}
	if want := "Rate limit exceeded. Please wait 2 seconds."; resp.State.App.Error == nil || *resp.State.App.Error != want {
		t.Errorf("app error = %v, want %q", resp.State.App.Error, want)
	}

	toasts, err := e.notifs.List(context.Background(), notifications.NotificationFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(toasts) != 1 || toasts[0].Description != "Too many requests. Please try again in 2 seconds." {
		t.Errorf("toasts = %+v, want one rate limit toast", toasts)
	}

	// The block expires and the window starts over.
	e.clock.Advance(3 * time.Second)
	if rr := e.do(t, "POST", "/api/v1/dispatch", body); rr.Code != http.StatusOK {
		t.Errorf("after block: expected status 200, got %d", rr.Code)
	}
}

func TestAPI_Dispatch_ClientLimiter(t *testing.T) {
	e := newTestEnv(t, store.Test)
	e.srv.dispatchLimits = newClientLimiter(0, 1)
	e.srv.setupRouter()
	body := `{"type":"APP","action":{"type":"CLEAR_ERROR"}}`

	if rr := e.do(t, "POST", "/api/v1/dispatch", body); rr.Code != http.StatusOK {
		t.Fatalf("first request: expected status 200, got %d", rr.Code)
	}
	rr := e.do(t, "POST", "/api/v1/dispatch", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected status 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
}

// --- Preferences ---

func TestAPI_Preferences(t *testing.T) {
	e := newTestEnv(t, store.Test)

	rr := e.do(t, "PUT", "/api/v1/preferences", `{"theme":"dark","sortOption":"nameAsc"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = e.do(t, "GET", "/api/v1/preferences", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET expected status 200, got %d", rr.Code)
	}
	var p prefs.Preferences
	decodeBody(t, rr, &p)
	if p.Theme != state.ThemeDark {
		t.Errorf("theme = %q, want dark", p.Theme)
	}
	if p.Shopping.SortOption != state.SortNameAsc {
		t.Errorf("sortOption = %q, want nameAsc", p.Shopping.SortOption)
	}
	if p.Shopping.FilterMode != state.FilterAll {
		t.Errorf("filterMode = %q, want all", p.Shopping.FilterMode)
	}
}

func TestAPI_Preferences_Invalid(t *testing.T) {
	e := newTestEnv(t, store.Test)

	tests := []struct {
		name string
		body string
	}{
		{"bad theme", `{"theme":"neon"}`},
		{"bad filter", `{"filterMode":"some"}`},
		{"bad sort", `{"sortOption":"random"}`},
		{"not json", `theme=dark`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := e.do(t, "PUT", "/api/v1/preferences", tt.body); rr.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rr.Code)
			}
		})
	}
}

// --- Diagnostics ---

func TestAPI_RateLimitStats(t *testing.T) {
	e := newTestEnv(t, store.Production)
	e.do(t, "POST", "/api/v1/dispatch", `{"type":"APP","action":{"type":"SET_LOADING","payload":true}}`)

	rr := e.do(t, "GET", "/api/v1/ratelimit/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var stats ratelimit.Stats
	decodeBody(t, rr, &stats)
	if stats.ActiveRecords != 1 || stats.BlockedKeys != 0 {
		t.Errorf("stats = %+v, want 1 active record", stats)
	}
}

func TestAPI_Performance(t *testing.T) {
	e := newTestEnv(t, store.Production)
	e.do(t, "POST", "/api/v1/dispatch", `{"type":"SHOPPING","action":{"type":"SET_SEARCH_TERM","payload":"milk"}}`)

	rr := e.do(t, "GET", "/api/v1/performance", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body struct {
		Measures []measureSummary `json:"measures"`
	}
	decodeBody(t, rr, &body)
	if len(body.Measures) != 1 || body.Measures[0].Name != "SHOPPING_SET_SEARCH_TERM" {
		t.Errorf("measures = %+v, want SHOPPING_SET_SEARCH_TERM", body.Measures)
	}
}

func TestAPI_Metrics(t *testing.T) {
	e := newTestEnv(t, store.Production)
	e.do(t, "POST", "/api/v1/dispatch", `{"type":"APP","action":{"type":"SET_THEME","payload":"light"}}`)

	rr := e.do(t, "GET", "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `hearth_actions_total{slice="APP",type="SET_THEME"} 1`) {
		t.Errorf("metrics output missing action counter:\n%s", rr.Body.String())
	}
}

// --- Response helpers ---

func TestRespondError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", core.ErrInvalidPayload, http.StatusBadRequest},
		{"not found", core.ErrNotificationNotFound, http.StatusNotFound},
		{"rate limited", core.ErrRateLimited, http.StatusTooManyRequests},
		{"unknown", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			respondError(rr, tt.err)
			if rr.Code != tt.want {
				t.Errorf("respondError(%v) status = %d, want %d", tt.err, rr.Code, tt.want)
			}
		})
	}
}

// --- WebSocket ---

func TestWebSocket_Broadcast(t *testing.T) {
	e := newTestEnv(t, store.Test)
	ts := httptest.NewServer(e.srv.Handler())
	defer ts.Close()
	defer e.srv.wsHub.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	testutil.Eventually(t, 2*time.Second, func() bool { return e.srv.wsHub.ClientCount() == 1 }, "client never registered")

	e.srv.Broadcast(MessageState, e.store.State())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var msg struct {
		Type    string            `json:"type"`
		Payload state.GlobalState `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	if msg.Type != MessageState || msg.Payload.App == nil {
		t.Errorf("message = %s, want a state message", data)
	}
}

func TestWebSocket_ToastSubscriber(t *testing.T) {
	hub := NewWebSocketHub(logging.Nop())
	ts := httptest.NewServer(hub)
	defer ts.Close()
	defer hub.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	testutil.Eventually(t, 2*time.Second, func() bool { return hub.ClientCount() == 1 }, "client never registered")

	sub := toastSubscriber{hub: hub}
	if err := sub.Send(notifications.Notification{ID: "n1", Title: "Storage", CreatedAt: testNow}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if !bytes.Contains(data, []byte(`"type":"toast"`)) || !bytes.Contains(data, []byte(`"id":"n1"`)) {
		t.Errorf("message = %s, want toast n1", data)
	}
}

// --- Lifecycle ---

func TestServer_StartStop(t *testing.T) {
	e := newTestEnv(t, store.Test)
	e.srv.httpServer.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.srv.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}

func TestAPI_Tasks(t *testing.T) {
	e := newTestEnv(t, store.Test)

	rr := e.do(t, "GET", "/api/v1/tasks", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"tasks":[]`) {
		t.Errorf("without scheduler: %d %s", rr.Code, rr.Body.String())
	}

	tasks := scheduler.New(logging.Nop())
	tasks.Register(scheduler.Task{ID: "toast-cleanup", Interval: time.Hour, Handler: func(context.Context) error { return nil }})
	e.srv.scheduler = tasks

	rr = e.do(t, "GET", "/api/v1/tasks", "")
	var body struct {
		Tasks []scheduler.TaskStatus `json:"tasks"`
	}
	decodeBody(t, rr, &body)
	if len(body.Tasks) != 1 || body.Tasks[0].ID != "toast-cleanup" || body.Tasks[0].Interval != "1h0m0s" {
		t.Errorf("tasks = %+v", body.Tasks)
	}
}

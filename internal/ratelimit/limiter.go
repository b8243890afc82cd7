package ratelimit

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// Request carries what identifiers may key on.
type Request struct {
	Bucket     string
	ActionType string
	Client     string
}

// Identifier derives the record key for a request.
type Identifier func(Request) string

// Global keys every request to the same record.
func Global(Request) string { return "global" }

// Fingerprint builds an identifier from stable client attributes.
// Requests with a Client set are keyed by it; the attributes are the
// fallback for hosts that only know about themselves.
func Fingerprint(attrs ...string) Identifier {
	h := fnv.New64a()
	h.Write([]byte(strings.Join(attrs, "|")))
	fallback := fmt.Sprintf("client:%x", h.Sum64())

	return func(req Request) string {
		if req.Client != "" {
			return "client:" + req.Client
		}
		return fallback
	}
}

// Scoped prefixes the keys of id so limiters sharing a Store keep separate
// records.
func Scoped(scope string, id Identifier) Identifier {
	if id == nil {
		id = Global
	}
	return func(req Request) string {
		return scope + ":" + id(req)
	}
}

// Options configure a Limiter.
type Options struct {
	Window        time.Duration `json:"window" yaml:"window"`
	MaxRequests   int           `json:"max_requests" yaml:"max_requests"`
	BlockDuration time.Duration `json:"block_duration" yaml:"block_duration"`
	Identifier    Identifier    `json:"-" yaml:"-"`
}

// Presets for the three action buckets.
var (
	DefaultOptions = Options{Window: time.Minute, MaxRequests: 100, BlockDuration: 2 * time.Minute}
	APIOptions     = Options{Window: time.Minute, MaxRequests: 60, BlockDuration: 5 * time.Minute}
	AuthOptions    = Options{Window: 5 * time.Minute, MaxRequests: 10, BlockDuration: 15 * time.Minute}
)

// withDefaults fills zero fields.
func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = time.Minute
	}
	if o.MaxRequests <= 0 {
		o.MaxRequests = 60
	}
	if o.BlockDuration <= 0 {
		o.BlockDuration = 5 * time.Minute
	}
	if o.Identifier == nil {
		o.Identifier = Global
	}
	return o
}

// Result is an admission decision.
type Result struct {
	Allowed bool `json:"allowed"`
	// RetryAfter is in whole seconds, rounded up. Zero when allowed.
	RetryAfter int `json:"retry_after,omitempty"`
}

// Limiter admits or denies requests for one option set.
type Limiter struct {
	store *Store
	opts  Options
}

// New creates a limiter backed by store.
func New(store *Store, opts Options) *Limiter {
	return &Limiter{store: store, opts: opts.withDefaults()}
}

// Options returns the effective options.
func (l *Limiter) Options() Options {
	return l.opts
}

// Allow decides whether req is admitted. It never fails.
func (l *Limiter) Allow(req Request) Result {
	key := l.opts.Identifier(req)

	return l.store.update(key, func(now time.Time, rec *Record) (*Record, Result) {
		if rec != nil && rec.BlockedUntil.After(now) {
			return nil, Result{Allowed: false, RetryAfter: ceilSeconds(rec.BlockedUntil.Sub(now))}
		}

		// Strict compare: a request exactly at ResetAt belongs to the old window.
		// A served block also starts a fresh window.
		if rec == nil || rec.ResetAt.Before(now) || !rec.BlockedUntil.IsZero() {
			return &Record{Count: 1, ResetAt: now.Add(l.opts.Window)}, Result{Allowed: true}
		}

		next := *rec
		next.Count++
		if next.Count > l.opts.MaxRequests {
			next.BlockedUntil = now.Add(l.opts.BlockDuration)
			return &next, Result{Allowed: false, RetryAfter: ceilSeconds(l.opts.BlockDuration)}
		}
		return &next, Result{Allowed: true}
	})
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

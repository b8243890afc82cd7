package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/quantumlife/hearth/internal/clock"
	"github.com/quantumlife/hearth/internal/core"
	"github.com/quantumlife/hearth/internal/kv"
	"github.com/quantumlife/hearth/internal/logging"
	"github.com/quantumlife/hearth/internal/metrics"
	"github.com/quantumlife/hearth/internal/notify"
	"github.com/quantumlife/hearth/internal/prefs"
	"github.com/quantumlife/hearth/internal/ratelimit"
	"github.com/quantumlife/hearth/internal/state"
)

// Rate limit buckets.
const (
	BucketDefault = "default"
	BucketAPI     = "api"
	BucketAuth    = "auth"
)

// Bucket classifies an action by its composite key.
func Bucket(a state.Action) string {
	key := state.Key(a)
	switch {
	case strings.Contains(key, "AUTH"), strings.Contains(key, "LOGIN"), strings.Contains(key, "REGISTER"):
		return BucketAuth
	case strings.Contains(key, "API"), strings.Contains(key, "FETCH"), strings.Contains(key, "QUERY"):
		return BucketAPI
	}
	return BucketDefault
}

type clientKey struct{}

// WithClient tags ctx with the identity of the dispatching client. The rate
// limiter keys on it when set.
func WithClient(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientKey{}, id)
}

// ClientFrom returns the client set by WithClient.
func ClientFrom(ctx context.Context) string {
	id, _ := ctx.Value(clientKey{}).(string)
	return id
}

// Report records what the chain decided for one dispatch.
type Report struct {
	RateLimited bool
	RetryAfter  int
	Bucket      string
}

type reportKey struct{}

// WithReport returns a context whose dispatch outcome is written to the
// returned Report.
func WithReport(ctx context.Context) (context.Context, *Report) {
	r := &Report{}
	return context.WithValue(ctx, reportKey{}, r), r
}

func reportFrom(ctx context.Context) *Report {
	r, _ := ctx.Value(reportKey{}).(*Report)
	return r
}

// RateLimit admits actions through per-bucket limiters. Outside production
// it forwards everything.
type RateLimit struct {
	env      Environment
	limiters map[string]*ratelimit.Limiter
	errors   *core.Handler
	metrics  *metrics.Collector
	logger   *logging.Logger
	warn     *rate.Sometimes
}

// NewRateLimit creates the middleware. All buckets share rs; their keys are
// scoped by bucket name.
func NewRateLimit(env Environment, rs *ratelimit.Store, limits Limits, errs *core.Handler, m *metrics.Collector, logger *logging.Logger) *RateLimit {
	if logger == nil {
		logger = logging.Default()
	}
	build := func(bucket string, opts ratelimit.Options) *ratelimit.Limiter {
		opts.Identifier = ratelimit.Scoped(bucket, opts.Identifier)
		return ratelimit.New(rs, opts)
	}
	return &RateLimit{
		env: env,
		limiters: map[string]*ratelimit.Limiter{
			BucketDefault: build(BucketDefault, limits.Default),
			BucketAPI:     build(BucketAPI, limits.API),
			BucketAuth:    build(BucketAuth, limits.Auth),
		},
		errors:  errs,
		metrics: m,
		logger:  logger.WithField("middleware", "ratelimit"),
		warn:    &rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
}

func (r *RateLimit) Name() string { return "ratelimit" }

func (r *RateLimit) Intercept(ctx context.Context, _ state.GlobalState, a state.Action, next Next) {
	if r.env != Production {
		next(a)
		return
	}

	bucket := Bucket(a)
	key := state.Key(a)
	res := r.limiters[bucket].Allow(ratelimit.Request{
		Bucket:     bucket,
		ActionType: key,
		Client:     ClientFrom(ctx),
	})
	if res.Allowed {
		next(a)
		return
	}

	r.warn.Do(func() {
		r.logger.Warn("Rate limit exceeded for action %s (bucket %s, retry in %ds)", key, bucket, res.RetryAfter)
	})
	r.metrics.RecordRateLimited(bucket)
	if rep := reportFrom(ctx); rep != nil {
		rep.RateLimited = true
		rep.RetryAfter = res.RetryAfter
		rep.Bucket = bucket
	}

	if r.errors != nil {
		err := core.NewError(
			fmt.Sprintf("Too many requests. Please try again in %d seconds.", res.RetryAfter),
			core.ErrorClient,
			map[string]any{"retryAfter": res.RetryAfter, "action": key, "bucket": bucket},
		)
		err.StatusCode = http.StatusTooManyRequests
		err.Err = core.ErrRateLimited
		r.errors.Handle(ctx, err, core.HandleOptions{ShowToast: true})
	}

	next(state.ErrorMessage(fmt.Sprintf("Rate limit exceeded. Please wait %d seconds.", res.RetryAfter)))
}

// Performance times the rest of the chain.
type Performance struct {
	clock   clock.Clock
	monitor *Monitor
	metrics *metrics.Collector
	logger  *logging.Logger
	budget  time.Duration
}

// DefaultFrameBudget is the duration above which a dispatch is reported as
// slow.
const DefaultFrameBudget = 16 * time.Millisecond

// NewPerformance creates the middleware. budget <= 0 uses
// DefaultFrameBudget.
func NewPerformance(c clock.Clock, mon *Monitor, m *metrics.Collector, budget time.Duration, logger *logging.Logger) *Performance {
	if c == nil {
		c = clock.Real{}
	}
	if budget <= 0 {
		budget = DefaultFrameBudget
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Performance{
		clock:   c,
		monitor: mon,
		metrics: m,
		logger:  logger.WithField("middleware", "performance"),
		budget:  budget,
	}
}

func (p *Performance) Name() string { return "performance" }

func (p *Performance) Intercept(_ context.Context, _ state.GlobalState, a state.Action, next Next) {
	start := p.clock.Now()
	next(a)
	d := p.clock.Now().Sub(start)

	p.metrics.RecordDuration(string(a.Slice()), d)
	if p.monitor != nil {
		p.monitor.Observe(state.Key(a), start, d)
	}
	if d > p.budget {
		p.logger.Warn("Slow action detected: %s took %s", state.Key(a), d)
	}
}

// Persistence mirrors the persisted preferences to storage after every
// dispatch, so a value changed behind the store's back is overwritten by the
// next one. Storage failures never reach the caller.
type Persistence struct {
	storage kv.Store
	errors  *core.Handler
	metrics *metrics.Collector
	logger  *logging.Logger
}

// NewPersistence creates the middleware.
func NewPersistence(s kv.Store, errs *core.Handler, m *metrics.Collector, logger *logging.Logger) *Persistence {
	if logger == nil {
		logger = logging.Default()
	}
	return &Persistence{
		storage: s,
		errors:  errs,
		metrics: m,
		logger:  logger.WithField("middleware", "persistence"),
	}
}

func (p *Persistence) Name() string { return "persistence" }

func (p *Persistence) Intercept(ctx context.Context, prev state.GlobalState, a state.Action, next Next) {
	result := next(a)
	if err := prefs.Save(ctx, p.storage, prefs.FromState(result)); err != nil {
		p.metrics.RecordPersistenceFailure()
		if p.errors == nil {
			p.logger.Warn("Failed to persist state after %s: %v", state.Key(a), err)
			return
		}
		p.errors.Handle(ctx, core.WrapError(err, core.ErrorUnknown, "Failed to save preferences"), core.HandleOptions{
			ShowToast: true,
			Severity:  notify.SeverityWarning,
			Title:     "Storage",
		})
	}
}

// Analytics counts actions by slice and type.
type Analytics struct {
	metrics *metrics.Collector
	logger  *logging.Logger
}

// NewAnalytics creates the middleware.
func NewAnalytics(m *metrics.Collector, logger *logging.Logger) *Analytics {
	if logger == nil {
		logger = logging.Default()
	}
	return &Analytics{metrics: m, logger: logger.WithField("middleware", "analytics")}
}

func (an *Analytics) Name() string { return "analytics" }

func (an *Analytics) Intercept(_ context.Context, _ state.GlobalState, a state.Action, next Next) {
	an.metrics.RecordAction(string(a.Slice()), a.Type())
	an.logger.Debug("Tracked %s", state.Key(a))
	next(a)
}

// Logger logs every action with the state before and after it.
type Logger struct {
	logger *logging.Logger
}

// NewLogger creates the middleware.
func NewLogger(logger *logging.Logger) *Logger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Logger{logger: logger.WithField("middleware", "logger")}
}

func (l *Logger) Name() string { return "logger" }

func (l *Logger) Intercept(_ context.Context, prev state.GlobalState, a state.Action, next Next) {
	if !l.logger.Enabled(logging.DEBUG) {
		next(a)
		return
	}
	log := l.logger.WithField("action", state.Key(a))
	log.Debug("prev state: %s", snapshot(prev))
	result := next(a)
	log.Debug("next state: %s", snapshot(result))
}

// Debug dumps before and after snapshots while the app's debug mode is on.
type Debug struct {
	env    Environment
	logger *logging.Logger
}

// NewDebug creates the middleware. It is inert in production.
func NewDebug(env Environment, logger *logging.Logger) *Debug {
	if logger == nil {
		logger = logging.Default()
	}
	return &Debug{env: env, logger: logger.WithField("middleware", "debug")}
}

func (d *Debug) Name() string { return "debug" }

func (d *Debug) Intercept(_ context.Context, prev state.GlobalState, a state.Action, next Next) {
	if d.env == Production || prev.App == nil || !prev.App.DebugMode {
		next(a)
		return
	}
	log := d.logger.WithField("action", state.Key(a))
	log.Info("before: %s", snapshot(prev))
	result := next(a)
	log.Info("after: %s", snapshot(result))
}

func snapshot(st state.GlobalState) string {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Sprintf("<unencodable: %v>", err)
	}
	return string(b)
}

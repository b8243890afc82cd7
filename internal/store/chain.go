package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/quantumlife/hearth/internal/clock"
	"github.com/quantumlife/hearth/internal/core"
	"github.com/quantumlife/hearth/internal/kv"
	"github.com/quantumlife/hearth/internal/logging"
	"github.com/quantumlife/hearth/internal/metrics"
	"github.com/quantumlife/hearth/internal/ratelimit"
)

// Environment selects which middlewares a chain runs.
type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
	Test        Environment = "test"
)

// ParseEnvironment validates an environment name. The empty string means
// development.
func ParseEnvironment(s string) (Environment, error) {
	switch e := Environment(strings.ToLower(strings.TrimSpace(s))); e {
	case "":
		return Development, nil
	case Production, Development, Test:
		return e, nil
	}
	return "", fmt.Errorf("%w: environment %q", core.ErrInvalidInput, s)
}

// Limits holds the options of the three rate limit buckets.
type Limits struct {
	Default ratelimit.Options
	API     ratelimit.Options
	Auth    ratelimit.Options
}

// DefaultLimits returns the preset bucket options.
func DefaultLimits() Limits {
	return Limits{
		Default: ratelimit.DefaultOptions,
		API:     ratelimit.APIOptions,
		Auth:    ratelimit.AuthOptions,
	}
}

// withDefaults replaces unset buckets with their presets.
func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	fill := func(o *ratelimit.Options, preset ratelimit.Options) {
		if o.Window == 0 && o.MaxRequests == 0 && o.BlockDuration == 0 {
			preset.Identifier = o.Identifier
			*o = preset
		}
	}
	fill(&l.Default, def.Default)
	fill(&l.API, def.API)
	fill(&l.Auth, def.Auth)
	return l
}

// Deps are the collaborators middlewares may need. Zero values are
// replaced with working defaults where one exists.
type Deps struct {
	Logger  *logging.Logger
	Clock   clock.Clock
	Storage kv.Store
	Metrics *metrics.Collector
	Errors  *core.Handler

	// RateLimits is shared by all buckets. A new store is created when nil;
	// the caller is then not running its cleanup loop.
	RateLimits *ratelimit.Store
	Limits     Limits

	Monitor       *Monitor
	SlowThreshold time.Duration
}

// NewChain builds the chain for env:
//
//	production:  ratelimit, performance, persistence, analytics
//	development: logger, performance, persistence, debug
//	test:        persistence
//
// Persistence is left out when deps.Storage is nil.
func NewChain(env Environment, deps Deps) *Chain {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Errors == nil {
		deps.Errors = core.NewHandler(deps.Logger, nil)
	}
	if deps.RateLimits == nil {
		deps.RateLimits = ratelimit.NewStore(deps.Clock, 0)
	}
	deps.Limits = deps.Limits.withDefaults()

	var persistence Middleware
	if deps.Storage != nil {
		persistence = NewPersistence(deps.Storage, deps.Errors, deps.Metrics, deps.Logger)
	} else {
		deps.Logger.Debug("No storage configured; persistence disabled")
	}

	switch env {
	case Production:
		return NewChainOf(deps.Logger,
			NewRateLimit(env, deps.RateLimits, deps.Limits, deps.Errors, deps.Metrics, deps.Logger),
			NewPerformance(deps.Clock, deps.Monitor, deps.Metrics, deps.SlowThreshold, deps.Logger),
			persistence,
			NewAnalytics(deps.Metrics, deps.Logger),
		)
	case Test:
		return NewChainOf(deps.Logger, persistence)
	default:
		return NewChainOf(deps.Logger,
			NewLogger(deps.Logger),
			NewPerformance(deps.Clock, deps.Monitor, deps.Metrics, deps.SlowThreshold, deps.Logger),
			persistence,
			NewDebug(env, deps.Logger),
		)
	}
}

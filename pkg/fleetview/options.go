package fleetview

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/events"
	"github.com/agentstation/fleetmap/pkg/metrics"
	"github.com/agentstation/fleetmap/pkg/reconciler"
	"github.com/agentstation/fleetmap/pkg/repository"
)

// Defaults.
const (
	DefaultTTL         = 5 * time.Minute
	DefaultConcurrency = 8
)

// Publisher receives fleet events. *events.Broker implements it.
type Publisher interface {
	Publish(eventType events.EventType, data any)
}

// CacheClearer is a derived cache that must be dropped when the fleet is
// cleared or rolled back. *dashboard.Cache implements it.
type CacheClearer interface {
	ClearCache()
}

// Invalidator is a derived cache that is silently dropped whenever the view
// changes. *dashboard.Cache implements it.
type Invalidator interface {
	Invalidate()
}

type options struct {
	repository  repository.Repository
	reconciler  reconciler.Reconciler
	publisher   Publisher
	caches      []CacheClearer
	ttl         time.Duration
	concurrency int
	clock       func() time.Time
	metrics     *metrics.Metrics
	logger      *zerolog.Logger
}

func defaultOptions() *options {
	return &options{
		ttl:         DefaultTTL,
		concurrency: DefaultConcurrency,
		clock:       time.Now,
	}
}

// Option configures a Service.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithRepository sets the persistence adapter. The default is in memory.
func WithRepository(repo repository.Repository) Option {
	return func(o *options) error {
		if repo == nil {
			return &errors.ValidationError{Field: "repository", Message: "cannot be nil"}
		}
		o.repository = repo
		return nil
	}
}

// WithReconciler sets the reconciler the view is built from.
func WithReconciler(r reconciler.Reconciler) Option {
	return func(o *options) error {
		if r == nil {
			return &errors.ValidationError{Field: "reconciler", Message: "cannot be nil"}
		}
		o.reconciler = r
		return nil
	}
}

// WithPublisher publishes vehicle and fleet events.
func WithPublisher(p Publisher) Option {
	return func(o *options) error {
		o.publisher = p
		return nil
	}
}

// WithCaches registers caches dropped on clear and rollback.
func WithCaches(caches ...CacheClearer) Option {
	return func(o *options) error {
		for _, c := range caches {
			if c != nil {
				o.caches = append(o.caches, c)
			}
		}
		return nil
	}
}

// WithTTL sets how long a loaded view is served before InitializeData
// reloads it.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) error {
		if ttl <= 0 {
			return &errors.ValidationError{Field: "ttl", Value: ttl, Message: "must be positive"}
		}
		o.ttl = ttl
		return nil
	}
}

// WithConcurrency bounds parallel repository writes in a batch.
func WithConcurrency(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return &errors.ValidationError{Field: "concurrency", Value: n, Message: "must be at least 1"}
		}
		o.concurrency = n
		return nil
	}
}

// WithClock sets the clock.
func WithClock(clock func() time.Time) Option {
	return func(o *options) error {
		if clock == nil {
			return &errors.ValidationError{Field: "clock", Message: "cannot be nil"}
		}
		o.clock = clock
		return nil
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) error {
		o.metrics = m
		return nil
	}
}

// WithLogger sets the logger used when the context carries none.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

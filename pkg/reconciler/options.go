package reconciler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/fleetmap/pkg/authority"
	"github.com/agentstation/fleetmap/pkg/documents"
	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/metrics"
)

// Default thresholds.
const (
	DefaultConflictThreshold = 0.6
	DefaultReviewThreshold   = 0.5
)

// Options configures a reconciler.
type options struct {
	strategy          Strategy
	authorities       authority.Authority
	store             documents.Store
	clock             func() time.Time
	conflictThreshold float64
	reviewThreshold   float64
	metrics           *metrics.Metrics
	logger            *zerolog.Logger
}

func defaultOptions() *options {
	authorities := authority.New()
	return &options{
		strategy:          NewAuthorityStrategy(authorities),
		authorities:       authorities,
		clock:             time.Now,
		conflictThreshold: DefaultConflictThreshold,
		reviewThreshold:   DefaultReviewThreshold,
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (options *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	if options.store == nil {
		options.store = documents.New(documents.WithClock(options.clock))
	}
	return options, nil
}

// newOptions returns reconciler options with default values.
func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithStrategy sets the ranking strategy.
func WithStrategy(strategy Strategy) Option {
	return func(r *options) error {
		if strategy == nil {
			return &errors.ValidationError{
				Field:   "strategy",
				Message: "cannot be nil",
			}
		}
		r.strategy = strategy
		return nil
	}
}

// WithAuthorities sets the field authorities and switches to the
// authority strategy.
func WithAuthorities(authorities authority.Authority) Option {
	return func(r *options) error {
		if authorities == nil {
			return &errors.ValidationError{
				Field:   "authorities",
				Message: "cannot be nil",
			}
		}
		r.authorities = authorities
		r.strategy = NewAuthorityStrategy(authorities)
		return nil
	}
}

// WithStore sets the document store. The default is an in-memory store.
func WithStore(store documents.Store) Option {
	return func(r *options) error {
		if store == nil {
			return &errors.ValidationError{
				Field:   "store",
				Message: "cannot be nil",
			}
		}
		r.store = store
		return nil
	}
}

// WithClock sets the clock used for compliance evaluation.
func WithClock(clock func() time.Time) Option {
	return func(r *options) error {
		if clock == nil {
			return &errors.ValidationError{
				Field:   "clock",
				Message: "cannot be nil",
			}
		}
		r.clock = clock
		return nil
	}
}

// WithConflictThreshold sets the confidence both values need before a
// disagreement is reported as a conflict.
func WithConflictThreshold(threshold float64) Option {
	return func(r *options) error {
		if err := validateThreshold("conflictThreshold", threshold); err != nil {
			return err
		}
		r.conflictThreshold = threshold
		return nil
	}
}

// WithReviewThreshold sets the confidence below which a winning value is
// flagged for review.
func WithReviewThreshold(threshold float64) Option {
	return func(r *options) error {
		if err := validateThreshold("reviewThreshold", threshold); err != nil {
			return err
		}
		r.reviewThreshold = threshold
		return nil
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *options) error {
		r.metrics = m
		return nil
	}
}

// WithLogger sets the logger used when the context carries none.
func WithLogger(logger *zerolog.Logger) Option {
	return func(r *options) error {
		r.logger = logger
		return nil
	}
}

func validateThreshold(field string, v float64) error {
	if v < 0 || v > 1 {
		return &errors.ValidationError{
			Field:   field,
			Value:   v,
			Message: "must be within [0,1]",
		}
	}
	return nil
}

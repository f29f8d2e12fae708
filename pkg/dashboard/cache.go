package dashboard

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/agentstation/fleetmap/pkg/events"
	"github.com/agentstation/fleetmap/pkg/logging"
	"github.com/agentstation/fleetmap/pkg/metrics"
	"github.com/agentstation/fleetmap/pkg/reconciler"
)

// DefaultTTL is how long a computed dashboard is served.
const DefaultTTL = 5 * time.Minute

const dashboardKey = "fleet"

// Cache memoizes the fleet dashboard. Within the TTL every call returns
// the identical *FleetDashboard; callers must not mutate it.
type Cache struct {
	source    reconciler.Reconciler
	store     *gocache.Cache
	ttl       time.Duration
	group     singleflight.Group
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *zerolog.Logger
}

// Publisher receives the cache.cleared event. *events.Broker implements it.
type Publisher interface {
	Publish(eventType events.EventType, data any)
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the TTL. Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMetrics records hits and misses.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithPublisher announces explicit clears on p.
func WithPublisher(p Publisher) Option {
	return func(c *Cache) {
		c.publisher = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a dashboard cache over source.
func New(source reconciler.Reconciler, opts ...Option) *Cache {
	c := &Cache{
		source: source,
		ttl:    DefaultTTL,
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.store = gocache.New(c.ttl, 2*c.ttl)
	return c
}

// TTL returns the configured TTL.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// GetFleetDashboard returns the cached dashboard, recomputing it when the
// TTL has elapsed or the cache was cleared.
func (c *Cache) GetFleetDashboard() *FleetDashboard {
	if v, ok := c.store.Get(dashboardKey); ok {
		c.metrics.IncDashboardCache(true)
		return v.(*FleetDashboard)
	}

	v, _, _ := c.group.Do(dashboardKey, func() (any, error) {
		if v, ok := c.store.Get(dashboardKey); ok {
			return v, nil
		}
		start := time.Now()
		d := Compute(c.source)
		c.store.Set(dashboardKey, d, gocache.DefaultExpiration)
		c.metrics.IncDashboardCache(false)
		c.logger.Debug().
			Int("vehicles", d.TotalVehicles).
			Dur("elapsed", time.Since(start)).
			Msg("Dashboard recomputed")
		return d, nil
	})
	return v.(*FleetDashboard)
}

// ClearCache forces recomputation on the next read and publishes
// cache.cleared.
func (c *Cache) ClearCache() {
	c.Invalidate()
	if c.publisher != nil {
		c.publisher.Publish(events.CacheCleared, map[string]any{"cache": "dashboard"})
	}
	c.logger.Info().Msg("Dashboard cache cleared")
}

// Invalidate drops the cached dashboard without announcing it. It backs the
// automatic invalidation on data changes.
func (c *Cache) Invalidate() {
	c.store.Flush()
}

// Subscriber returns an event subscriber that invalidates the cache
// whenever fleet data changes.
func (c *Cache) Subscriber() events.Subscriber {
	return events.Filtered(events.SubscriberFunc(func(events.Event) error {
		c.Invalidate()
		return nil
	}),
		events.VehicleAdded, events.VehicleUpdated, events.VehicleDeleted,
		events.DocumentProcessed, events.FleetCleared,
	)
}

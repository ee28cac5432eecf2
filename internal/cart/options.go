package cart

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/itemcache"
	"github.com/nikolayk812/storefront-cart/internal/notify"
	"github.com/nikolayk812/storefront-cart/internal/port"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

type Option func(*Manager)

func WithRenderer(r port.Renderer) Option {
	return func(m *Manager) {
		m.renderer = r
	}
}

func WithNotifier(n port.Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

func WithReporter(r port.Reporter) Option {
	return func(m *Manager) {
		m.reporter = r
	}
}

func WithCache(c *itemcache.Cache) Option {
	return func(m *Manager) {
		m.cache = c
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

func WithPerfLog(p *notify.PerfLog) Option {
	return func(m *Manager) {
		m.perf = p
	}
}

func WithCatalogModel(model domain.CatalogModel) Option {
	return func(m *Manager) {
		m.model = model
	}
}

// WithThrottle sets the minimum interval between two renders.
func WithThrottle(d time.Duration) Option {
	return func(m *Manager) {
		m.throttle = d
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) {
		m.tracer = t
	}
}

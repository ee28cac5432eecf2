package notify

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	DefaultPerfCapacity = 100

	meterName = "github.com/nikolayk812/storefront-cart/internal/notify"
)

type Sample struct {
	Op       string
	Duration time.Duration
	At       time.Time
	Failed   bool
}

// PerfLog is a fixed-size ring of the latest samples. Every sample is also
// recorded on OpenTelemetry instruments: timed operations on the
// cart.operation.duration histogram, failures on the cart.operation.failures
// counter.
type PerfLog struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	samples  []Sample
	next     int
	full     bool
	failures int

	meter         metric.Meter
	duration      metric.Float64Histogram
	failedCounter metric.Int64Counter
}

type PerfOption func(*PerfLog)

// WithMeter replaces the global meter.
func WithMeter(m metric.Meter) PerfOption {
	return func(p *PerfLog) {
		p.meter = m
	}
}

func NewPerfLog(capacity int, c clockwork.Clock, opts ...PerfOption) *PerfLog {
	if capacity <= 0 {
		capacity = DefaultPerfCapacity
	}
	if c == nil {
		c = clockwork.NewRealClock()
	}

	p := &PerfLog{
		clock:   c,
		samples: make([]Sample, capacity),
		meter:   otel.Meter(meterName),
	}
	for _, opt := range opts {
		opt(p)
	}

	var err error
	p.duration, err = p.meter.Float64Histogram("cart.operation.duration",
		metric.WithDescription("Duration of cart operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
		p.duration = noop.Float64Histogram{}
	}

	p.failedCounter, err = p.meter.Int64Counter("cart.operation.failures",
		metric.WithDescription("Failed cart operations and reported errors"),
	)
	if err != nil {
		otel.Handle(err)
		p.failedCounter = noop.Int64Counter{}
	}

	return p
}

// Start returns a func that records the elapsed time of op when called.
func (p *PerfLog) Start(op string) func(failed bool) {
	start := p.clock.Now()
	return func(failed bool) {
		s := Sample{Op: op, Duration: p.clock.Now().Sub(start), At: start, Failed: failed}
		p.duration.Record(context.Background(), s.Duration.Seconds(), metric.WithAttributes(
			attribute.String("cart.op", op),
			attribute.Bool("cart.failed", failed),
		))
		p.Record(s)
	}
}

func (p *PerfLog) Record(s Sample) {
	if s.Failed {
		p.failedCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("cart.op", s.Op)))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.samples[p.next] = s
	p.next = (p.next + 1) % len(p.samples)
	if p.next == 0 {
		p.full = true
	}
	if s.Failed {
		p.failures++
	}
}

func (p *PerfLog) RecordFailure(op string) {
	p.Record(Sample{Op: op, At: p.clock.Now(), Failed: true})
}

// Samples returns the retained samples, oldest first.
func (p *PerfLog) Samples() []Sample {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.full {
		return append([]Sample(nil), p.samples[:p.next]...)
	}
	out := make([]Sample, 0, len(p.samples))
	out = append(out, p.samples[p.next:]...)
	return append(out, p.samples[:p.next]...)
}

// Average is the mean duration of the retained samples for op.
func (p *PerfLog) Average(op string) time.Duration {
	var (
		total time.Duration
		n     int
	)
	for _, s := range p.Samples() {
		if s.Op == op {
			total += s.Duration
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}

// Failures counts every failed sample ever recorded, evicted ones included.
func (p *PerfLog) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

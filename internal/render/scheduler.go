// Package render coalesces bursts of render requests into throttled renders.
package render

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nikolayk812/storefront-cart/internal/logging"
	"github.com/nikolayk812/storefront-cart/internal/port"
	"github.com/sirupsen/logrus"
)

const DefaultThrottle = 100 * time.Millisecond

// Scheduler runs at most one render at a time and at most one per throttle
// window. A request inside the window arms a single timer for the remaining
// delay; requests made while the timer is armed or a render is running are
// served by the next render.
type Scheduler struct {
	render   func() error
	clock    clockwork.Clock
	throttle time.Duration
	logger   logrus.FieldLogger
	reporter port.Reporter

	mu         sync.Mutex
	queue      []time.Time
	rendering  bool
	timer      clockwork.Timer
	lastRender time.Time
	renders    int
}

type Option func(*Scheduler)

func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

func WithThrottle(d time.Duration) Option {
	return func(s *Scheduler) {
		s.throttle = d
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

func WithReporter(r port.Reporter) Option {
	return func(s *Scheduler) {
		s.reporter = r
	}
}

func NewScheduler(render func() error, opts ...Option) *Scheduler {
	s := &Scheduler{
		render:   render,
		clock:    clockwork.NewRealClock(),
		throttle: DefaultThrottle,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestRender never blocks on a timer and never returns render errors.
func (s *Scheduler) RequestRender() {
	s.mu.Lock()
	s.queue = append(s.queue, s.clock.Now())
	s.mu.Unlock()

	s.process()
}

func (s *Scheduler) IsBusy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rendering
}

// Pending counts requests not yet served by a render.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queue)
}

// Renders counts executed renders.
func (s *Scheduler) Renders() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.renders
}

// Armed reports whether a delayed render is waiting on the throttle window.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.timer != nil
}

// Stop disarms a pending timer; queued requests stay queued.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) process() {
	for {
		s.mu.Lock()
		if s.rendering || s.timer != nil || len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}

		now := s.clock.Now()
		if !s.lastRender.IsZero() {
			if elapsed := now.Sub(s.lastRender); elapsed < s.throttle {
				s.timer = s.clock.AfterFunc(s.throttle-elapsed, s.fire)
				s.mu.Unlock()
				return
			}
		}

		coalesced := len(s.queue)
		s.queue = s.queue[:0]
		s.rendering = true
		s.lastRender = now
		s.renders++
		s.mu.Unlock()

		err := s.safeRender()

		s.mu.Lock()
		s.rendering = false
		s.mu.Unlock()

		if err != nil {
			// the reporter logs on its own
			if s.reporter != nil {
				s.reporter.Report("render failed", err)
			} else {
				s.logger.WithError(err).WithField("coalesced", coalesced).Error("render failed")
			}
		}
	}
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	s.mu.Unlock()

	s.process()
}

func (s *Scheduler) safeRender() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panic: %v", r)
		}
	}()

	return s.render()
}

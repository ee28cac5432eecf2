// Package cart owns the shopping cart of one storefront session. All reads and
// writes of the persisted cart go through Manager.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nikolayk812/storefront-cart/internal/currency"
	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/itemcache"
	"github.com/nikolayk812/storefront-cart/internal/logging"
	"github.com/nikolayk812/storefront-cart/internal/notify"
	"github.com/nikolayk812/storefront-cart/internal/port"
	"github.com/nikolayk812/storefront-cart/internal/render"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/nikolayk812/storefront-cart/internal/cart"

// Manager serializes cart operations with a mutex: one operation runs to
// completion before the next one starts. The persisted cart is re-read at
// the start of every operation and written back in full, last writer wins.
type Manager struct {
	store    port.CartStore
	resolver *currency.Resolver

	cache     *itemcache.Cache
	renderer  port.Renderer
	notifier  port.Notifier
	reporter  port.Reporter
	clock     clockwork.Clock
	logger    logrus.FieldLogger
	perf      *notify.PerfLog
	model     domain.CatalogModel
	throttle  time.Duration
	tracer    trace.Tracer
	scheduler *render.Scheduler

	mu     sync.Mutex
	items  domain.Cart
	symbol string

	// snapshot of items/symbol for readers that must not wait on mu
	snapMu     sync.RWMutex
	snapItems  domain.Cart
	snapSymbol string

	stateMu sync.Mutex
	state   domain.EngineState
	subs    map[int]func(domain.StateChange)
	nextSub int
}

func New(store port.CartStore, resolver *currency.Resolver, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver is nil")
	}

	m := &Manager{
		store:    store,
		resolver: resolver,
		clock:    clockwork.NewRealClock(),
		logger:   logging.Discard(),
		model:    domain.ModelUnique,
		throttle: render.DefaultThrottle,
		tracer:   otel.Tracer(tracerName),
		items:    domain.Cart{},
		subs:     make(map[int]func(domain.StateChange)),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.cache == nil {
		m.cache = itemcache.New(itemcache.DefaultTTL, m.clock)
	}
	if m.perf == nil {
		m.perf = notify.NewPerfLog(notify.DefaultPerfCapacity, m.clock)
	}

	schedOpts := []render.Option{
		render.WithClock(m.clock),
		render.WithThrottle(m.throttle),
		render.WithLogger(m.logger),
	}
	if m.reporter != nil {
		schedOpts = append(schedOpts, render.WithReporter(m.reporter))
	}
	m.scheduler = render.NewScheduler(m.renderNow, schedOpts...)

	return m, nil
}

// Init rehydrates the cart from the store, healing a corrupt value.
func (m *Manager) Init(ctx context.Context) error {
	return m.Reload(ctx)
}

// Reload absorbs changes another process made to the store.
func (m *Manager) Reload(ctx context.Context) error {
	return m.mutate(ctx, "reload", nil, func(ctx context.Context) (bool, error) {
		before := m.items.Clone()
		after := m.reload(ctx)
		return !sameCart(before, after), nil
	})
}

// Add puts an item in the cart. A repeat add of the same id returns
// domain.ErrAlreadyInCart under the unique catalog model.
func (m *Manager) Add(ctx context.Context, in domain.ItemInput) error {
	attrs := []attribute.KeyValue{attribute.String("item.id", in.ID)}
	return m.mutate(ctx, "add", attrs, func(ctx context.Context) (bool, error) {
		return m.add(ctx, in)
	})
}

// AddToCart is the entry point for product widgets. It never panics and
// reports the outcome as a bool.
func (m *Manager) AddToCart(ctx context.Context, in domain.ItemInput) bool {
	return m.Add(ctx, in) == nil
}

// Remove deletes the line for id; an absent id returns domain.ErrItemNotFound
// and writes nothing.
func (m *Manager) Remove(ctx context.Context, id string) error {
	attrs := []attribute.KeyValue{attribute.String("item.id", id)}
	return m.mutate(ctx, "remove", attrs, func(ctx context.Context) (bool, error) {
		return m.remove(ctx, id)
	})
}

func (m *Manager) RemoveFromCart(ctx context.Context, id string) bool {
	return m.Remove(ctx, id) == nil
}

// UpdateQuantity deletes the line when q <= 0, otherwise clamps q into
// [1, model max].
func (m *Manager) UpdateQuantity(ctx context.Context, id string, q int) bool {
	attrs := []attribute.KeyValue{attribute.String("item.id", id), attribute.Int("quantity", q)}
	err := m.mutate(ctx, "update_quantity", attrs, func(ctx context.Context) (bool, error) {
		if q <= 0 {
			return m.remove(ctx, id)
		}
		return m.setQuantity(ctx, id, q)
	})
	return err == nil
}

// EmptyCart clears the cart after confirm agrees. A nil confirm counts as no.
func (m *Manager) EmptyCart(ctx context.Context, confirm func() bool) bool {
	if confirm == nil || !confirm() {
		return false
	}

	err := m.mutate(ctx, "empty", nil, func(ctx context.Context) (bool, error) {
		m.reload(ctx)
		if len(m.items) == 0 {
			return false, nil
		}

		m.persist(ctx, domain.Cart{})
		m.setItems(domain.Cart{}, m.symbol)
		m.notify(ctx, domain.NoticeInfo, "Cart emptied")
		return true, nil
	})
	return err == nil
}

// CalculateTotal formats the cart total with two decimals and no symbol.
func (m *Manager) CalculateTotal() string {
	items, _ := m.snapshot()
	return items.Total().StringFixed(2)
}

func (m *Manager) Total() domain.Money {
	items, symbol := m.snapshot()
	return domain.NewMoney(items.Total(), symbol)
}

func (m *Manager) Items() domain.Cart {
	items, _ := m.snapshot()
	return items.Clone()
}

func (m *Manager) Count() int {
	items, _ := m.snapshot()
	return len(items)
}

func (m *Manager) Symbol() string {
	_, symbol := m.snapshot()
	return symbol
}

// Open shows the cart panel and renders it.
func (m *Manager) Open() {
	m.updateState(func(s *domain.EngineState) { s.IsOpen = true })
	m.scheduler.RequestRender()
}

func (m *Manager) Close() {
	m.updateState(func(s *domain.EngineState) { s.IsOpen = false })
}

// RenderCartItems asks for a render; it is coalesced with other requests.
func (m *Manager) RenderCartItems() {
	m.scheduler.RequestRender()
}

// Scheduler exposes render bookkeeping, mostly for diagnostics.
func (m *Manager) Scheduler() *render.Scheduler {
	return m.scheduler
}

func (m *Manager) PerfLog() *notify.PerfLog {
	return m.perf
}

// mutate runs fn under the operation lock with the loading flag raised.
// fn reports whether the cart changed; only a change stamps the state,
// refreshes the badge and requests a render.
func (m *Manager) mutate(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(context.Context) (bool, error)) error {
	ctx, span := m.tracer.Start(ctx, "cart."+op, trace.WithAttributes(attrs...))
	defer span.End()
	done := m.perf.Start(op)

	changed, count, err := m.runLocked(ctx, op, fn)

	if changed && err == nil {
		if m.renderer != nil {
			m.safeCall("update badge", func() { m.renderer.UpdateBadge(count) })
		}
		m.scheduler.RequestRender()
	}

	failed := err != nil && !isExpected(err)
	if failed {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	done(failed)

	return err
}

// runLocked holds mu for the whole operation, including the loading
// transitions, and releases it even if a callback panics.
func (m *Manager) runLocked(ctx context.Context, op string, fn func(context.Context) (bool, error)) (changed bool, count int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.startLoading()
	changed, err = m.runSafely(ctx, op, fn)
	count = len(m.items)
	m.finishLoading(changed && err == nil)

	return changed, count, err
}

func (m *Manager) runSafely(ctx context.Context, op string, fn func(context.Context) (bool, error)) (changed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			changed = false
			err = fmt.Errorf("%s panic: %v", op, r)
			m.report(op+" failed", err)
		}
	}()

	return fn(ctx)
}

// safeCall runs a caller-supplied callback and reports a panic instead of
// propagating it.
func (m *Manager) safeCall(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.report(what+" failed", fmt.Errorf("%s panic: %v", what, r))
		}
	}()

	fn()
}

func (m *Manager) add(ctx context.Context, in domain.ItemInput) (bool, error) {
	if err := in.Validate(); err != nil {
		m.notify(ctx, domain.NoticeWarning, "Item details are incomplete")
		return false, err
	}

	cart := m.reload(ctx)

	in = m.cache.Merge(in)
	m.cache.Put(in.ID, in)

	if idx := cart.IndexOf(in.ID); idx >= 0 {
		if m.model == domain.ModelUnique {
			m.notify(ctx, domain.NoticeDuplicate, fmt.Sprintf("%s is already in your cart", cart[idx].Title))
			return false, domain.ErrAlreadyInCart
		}

		q := cart[idx].Quantity + 1
		if q > m.model.MaxQuantity() {
			m.notify(ctx, domain.NoticeInfo, fmt.Sprintf("%s: quantity limit reached", cart[idx].Title))
			return false, domain.ErrQuantityLimit
		}
		cart[idx].Quantity = q
	} else {
		cart = append(cart, domain.CartItem{
			ID:         in.ID,
			Title:      in.Title,
			Image:      canonicalImage(in.Image),
			Dimensions: in.Dimensions,
			Price:      domain.ParseMoney(in.Price).WithSymbol(m.symbol),
			Quantity:   1,
		})
	}

	m.persist(ctx, cart)
	m.normalize(ctx, cart)

	m.notify(ctx, domain.NoticeSuccess, fmt.Sprintf("%s added to cart", in.Title))
	return true, nil
}

func (m *Manager) remove(ctx context.Context, id string) (bool, error) {
	cart := m.reload(ctx)

	idx := cart.IndexOf(id)
	if idx < 0 {
		return false, domain.ErrItemNotFound
	}
	removed := cart[idx]

	next := make(domain.Cart, 0, len(cart)-1)
	next = append(next, cart[:idx]...)
	next = append(next, cart[idx+1:]...)

	m.persist(ctx, next)
	m.setItems(next, m.symbol)

	m.notify(ctx, domain.NoticeInfo, fmt.Sprintf("%s removed from cart", removed.Title))
	return true, nil
}

func (m *Manager) setQuantity(ctx context.Context, id string, q int) (bool, error) {
	cart := m.reload(ctx)

	idx := cart.IndexOf(id)
	if idx < 0 {
		return false, domain.ErrItemNotFound
	}

	q = min(max(q, 1), m.model.MaxQuantity())
	if cart[idx].Quantity == q {
		return false, nil
	}
	cart[idx].Quantity = q

	m.persist(ctx, cart)
	m.setItems(cart, m.symbol)
	return true, nil
}

// reload reads the store, resets a corrupt value to an empty cart and
// normalizes the currency. A read failure keeps the in-memory cart.
func (m *Manager) reload(ctx context.Context) domain.Cart {
	items, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrCorruptCart):
		m.report("stored cart was corrupt and has been reset", err)
		items = domain.Cart{}
		m.persist(ctx, items)
	case err != nil:
		m.report("load cart", err)
		items = m.items.Clone()
	}

	return m.normalize(ctx, items)
}

func (m *Manager) normalize(ctx context.Context, items domain.Cart) domain.Cart {
	symbol := m.resolver.Detect(ctx, items)
	normalized, changed := m.resolver.Normalize(items, symbol)
	if changed {
		m.logger.WithField("symbol", symbol).Info("cart currency normalized")
		m.persist(ctx, normalized)
	}

	m.setItems(normalized, symbol)
	return normalized.Clone()
}

// persist swallows write failures: the in-memory cart stays authoritative
// for the rest of the session.
func (m *Manager) persist(ctx context.Context, items domain.Cart) {
	if err := m.store.Save(ctx, items); err != nil {
		m.report("save cart", err)
	}
}

func (m *Manager) setItems(items domain.Cart, symbol string) {
	m.items = items.Clone()
	m.symbol = symbol

	m.snapMu.Lock()
	m.snapItems = items.Clone()
	m.snapSymbol = symbol
	m.snapMu.Unlock()
}

func (m *Manager) snapshot() (domain.Cart, string) {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.snapItems, m.snapSymbol
}

func (m *Manager) renderNow() error {
	if m.renderer == nil || !m.State().IsOpen {
		return nil
	}

	items, symbol := m.snapshot()
	return m.renderer.RenderCart(context.Background(), domain.NewCartView(items, symbol))
}

func (m *Manager) notify(ctx context.Context, kind domain.NoticeKind, message string) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(ctx, domain.NewNotice(kind, message))
}

// report hands err to the reporter, which logs it; without one the manager
// logs it itself.
func (m *Manager) report(message string, err error) {
	if m.reporter != nil {
		m.reporter.Report(message, err)
		return
	}
	m.logger.WithError(err).Error(message)
}

func isExpected(err error) bool {
	return errors.Is(err, domain.ErrAlreadyInCart) ||
		errors.Is(err, domain.ErrItemNotFound) ||
		errors.Is(err, domain.ErrQuantityLimit)
}

func sameCart(a, b domain.Cart) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.Title != y.Title || x.Image != y.Image || x.Dimensions != y.Dimensions ||
			x.Quantity != y.Quantity || x.Price.Symbol != y.Price.Symbol || x.Price.Raw != y.Price.Raw || x.Price.Invalid != y.Price.Invalid ||
			!x.Price.Amount.Equal(y.Price.Amount) {
			return false
		}
	}
	return true
}

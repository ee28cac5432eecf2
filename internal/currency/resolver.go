// Package currency decides which currency symbol the cart shows and rewrites
// stored lines that still carry an older one.
package currency

import (
	"context"
	"encoding/json"

	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/logging"
	"github.com/nikolayk812/storefront-cart/internal/port"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSymbol      = "₪"
	DefaultSettingsKey = "catalogSettings"
)

type Resolver struct {
	kv            port.KVStore
	settingsKey   string
	defaultSymbol string
	active        port.SettingsSource
	logger        logrus.FieldLogger
}

type Option func(*Resolver)

// WithActiveSettings installs the highest-priority settings source.
func WithActiveSettings(src port.SettingsSource) Option {
	return func(r *Resolver) {
		r.active = src
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

func NewResolver(kv port.KVStore, settingsKey, defaultSymbol string, opts ...Option) *Resolver {
	if settingsKey == "" {
		settingsKey = DefaultSettingsKey
	}
	if defaultSymbol == "" {
		defaultSymbol = DefaultSymbol
	}

	r := &Resolver{
		kv:            kv,
		settingsKey:   settingsKey,
		defaultSymbol: SymbolFor(defaultSymbol),
		logger:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Detect returns the active symbol. Sources in priority order: active
// settings, persisted settings, the first line of the cart, the default.
func (r *Resolver) Detect(ctx context.Context, cart domain.Cart) string {
	if r.active != nil {
		if s, ok := r.active.ActiveSettings(); ok {
			if sym, ok := fromSettings(s); ok {
				return sym
			}
		}
	}

	if s, ok := r.persistedSettings(ctx); ok {
		if sym, ok := fromSettings(s); ok {
			return sym
		}
	}

	// an unparseable first price still names its currency
	if len(cart) > 0 && cart[0].Price.Symbol != "" {
		return cart[0].Price.Symbol
	}

	return r.defaultSymbol
}

// Normalize re-tags every line whose symbol differs from symbol. Lines with
// unparseable prices are left as they are. The bool reports a change.
func (r *Resolver) Normalize(cart domain.Cart, symbol string) (domain.Cart, bool) {
	out := cart.Clone()
	changed := false

	for i, item := range out {
		if !item.Price.Valid() || item.Price.Symbol == symbol {
			continue
		}
		out[i].Price = item.Price.WithSymbol(symbol)
		changed = true
	}

	return out, changed
}

func (r *Resolver) persistedSettings(ctx context.Context) (domain.Settings, bool) {
	if r.kv == nil {
		return domain.Settings{}, false
	}

	raw, ok, err := r.kv.Get(ctx, r.settingsKey)
	if err != nil {
		r.logger.WithError(err).WithField("key", r.settingsKey).Warn("read settings")
		return domain.Settings{}, false
	}
	if !ok {
		return domain.Settings{}, false
	}

	var s domain.Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		r.logger.WithError(err).WithField("key", r.settingsKey).Warn("settings are not valid json")
		return domain.Settings{}, false
	}
	return s, true
}

func fromSettings(s domain.Settings) (string, bool) {
	if s.Currency != "" {
		return SymbolFor(s.Currency), true
	}
	if s.Locale != "" {
		return SymbolForLocale(s.Locale)
	}
	return "", false
}

package port

import (
	"context"

	"github.com/nikolayk812/storefront-cart/internal/domain"
)

// KVStore is the durable string-keyed store the cart lives in.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Watcher is implemented by stores that can tell about writes made by other
// processes. Watch blocks until ctx is done.
type Watcher interface {
	Watch(ctx context.Context, key string, fn func()) error
}

type CartStore interface {
	Load(ctx context.Context) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) error
}

// SettingsSource exposes the catalog settings currently active in the page.
type SettingsSource interface {
	ActiveSettings() (domain.Settings, bool)
}

type Renderer interface {
	RenderCart(ctx context.Context, view domain.CartView) error
	UpdateBadge(count int)
}

type Notifier interface {
	Notify(ctx context.Context, notice domain.Notice)
}

type Reporter interface {
	Report(message string, err error)
}

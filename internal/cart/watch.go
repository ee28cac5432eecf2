package cart

import (
	"context"
	"errors"

	"github.com/nikolayk812/storefront-cart/internal/port"
)

// WatchStore reloads the cart whenever w reports a write to key, including
// this manager's own writes, which reload to the same cart. It blocks until
// ctx is done. There is no field-level merge: whatever is stored wins.
func (m *Manager) WatchStore(ctx context.Context, w port.Watcher, key string) error {
	changes := make(chan struct{}, 1)
	errc := make(chan error, 1)

	go func() {
		errc <- w.Watch(ctx, key, func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
	}()

	for {
		select {
		case <-changes:
			if err := m.Reload(ctx); err != nil {
				m.logger.WithError(err).Warn("reload after external change")
			}
		case err := <-errc:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

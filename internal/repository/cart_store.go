package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/port"
)

const DefaultCartKey = "cart"

type cartStore struct {
	kv  port.KVStore
	key string
}

// NewCart stores the whole cart as one JSON array under key.
func NewCart(kv port.KVStore, key string) (port.CartStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("kv is nil")
	}
	if key == "" {
		return nil, fmt.Errorf("key is empty")
	}

	return &cartStore{
		kv:  kv,
		key: key,
	}, nil
}

func (s *cartStore) Load(ctx context.Context) (domain.Cart, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("kv.Get: %w", err)
	}
	if !ok {
		return domain.Cart{}, nil
	}

	var items []domain.CartItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &domain.RecoveryError{Key: s.key, Cause: err}
	}
	// JSON null decodes into a nil slice without error
	if items == nil {
		return nil, &domain.RecoveryError{Key: s.key, Cause: fmt.Errorf("value is not an array")}
	}

	return sanitize(items), nil
}

func (s *cartStore) Save(ctx context.Context, cart domain.Cart) error {
	raw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("kv.Set: %w", err)
	}

	return nil
}

// sanitize drops lines without an id, keeps the first line per id and
// lifts non-positive quantities to 1.
func sanitize(items []domain.CartItem) domain.Cart {
	cart := make(domain.Cart, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}

		if item.Quantity < 1 {
			item.Quantity = 1
		}
		cart = append(cart, item)
	}

	return cart
}

package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCart(t *testing.T) {
	_, err := repository.NewCart(nil, "cart")
	require.EqualError(t, err, "kv is nil")

	_, err = repository.NewCart(repository.NewMemoryKV(), "")
	require.EqualError(t, err, "key is empty")
}

func TestCartStore_Load(t *testing.T) {
	tests := []struct {
		name        string
		stored      *string
		want        domain.Cart
		wantCorrupt bool
	}{
		{
			name: "absent key: empty cart",
			want: domain.Cart{},
		},
		{
			name:   "empty array: empty cart",
			stored: ptr(`[]`),
			want:   domain.Cart{},
		},
		{
			name:   "legacy price: parsed",
			stored: ptr(`[{"id":"a1","title":"Red Bird","price":"₪120.00","quantity":1}]`),
			want: domain.Cart{
				{ID: "a1", Title: "Red Bird", Price: domain.NewMoney(decimal.NewFromInt(120), "₪"), Quantity: 1},
			},
		},
		{
			name: "dirty lines: sanitized",
			stored: ptr(`[
				{"id":"a1","title":"Red Bird","amount":"10.00","currency":"₪","quantity":0},
				{"id":"","title":"No id","amount":"1.00","currency":"₪","quantity":1},
				{"id":"a1","title":"Red Bird again","amount":"99.00","currency":"₪","quantity":1}
			]`),
			want: domain.Cart{
				{ID: "a1", Title: "Red Bird", Price: domain.NewMoney(decimal.NewFromInt(10), "₪"), Quantity: 1},
			},
		},
		{
			name:        "string instead of array: corrupt",
			stored:      ptr(`"not-an-array"`),
			wantCorrupt: true,
		},
		{
			name:        "null: corrupt",
			stored:      ptr(`null`),
			wantCorrupt: true,
		},
		{
			name:        "truncated json: corrupt",
			stored:      ptr(`[{"id":"a1"`),
			wantCorrupt: true,
		},
		{
			name:        "array of numbers: corrupt",
			stored:      ptr(`[1,2,3]`),
			wantCorrupt: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := t.Context()
			kv := repository.NewMemoryKV()
			if tt.stored != nil {
				require.NoError(t, kv.Set(ctx, repository.DefaultCartKey, []byte(*tt.stored)))
			}

			store, err := repository.NewCart(kv, repository.DefaultCartKey)
			require.NoError(t, err)

			got, err := store.Load(ctx)
			if tt.wantCorrupt {
				require.ErrorIs(t, err, domain.ErrCorruptCart)

				var recoveryErr *domain.RecoveryError
				require.True(t, errors.As(err, &recoveryErr))
				assert.Equal(t, repository.DefaultCartKey, recoveryErr.Key)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.want, got, decimalComparer()))
		})
	}
}

func TestCartStore_SaveLoad(t *testing.T) {
	ctx := t.Context()
	kv := repository.NewMemoryKV()

	store, err := repository.NewCart(kv, repository.DefaultCartKey)
	require.NoError(t, err)

	cart := domain.Cart{randomCartItem(), randomCartItem()}
	require.NoError(t, store.Save(ctx, cart))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(cart, got, decimalComparer()))

	require.NoError(t, store.Save(ctx, nil))
	raw, ok, err := kv.Get(ctx, repository.DefaultCartKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[]", string(raw))
}

func TestCartStore_SaveError(t *testing.T) {
	store, err := repository.NewCart(repository.NewMemoryKV(), repository.DefaultCartKey)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err = store.Save(ctx, domain.Cart{randomCartItem()})
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "kv.Set")
}

func randomCartItem() domain.CartItem {
	return domain.CartItem{
		ID:         gofakeit.UUID(),
		Title:      gofakeit.ProductName(),
		Image:      "/images/" + gofakeit.Word() + ".jpg",
		Dimensions: "50x70 cm",
		Price:      randomMoney(),
		Quantity:   1,
	}
}

func randomMoney() domain.Money {
	return domain.NewMoney(decimal.NewFromFloat(gofakeit.Price(1, 100)), "₪")
}

func decimalComparer() cmp.Option {
	return cmp.Comparer(func(x, y decimal.Decimal) bool {
		return x.Equal(y)
	})
}

func ptr[T any](v T) *T {
	return &v
}

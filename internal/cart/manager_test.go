package cart_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/nikolayk812/storefront-cart/internal/cart"
	"github.com/nikolayk812/storefront-cart/internal/currency"
	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	kv := repository.NewMemoryKV()
	store, err := repository.NewCart(kv, repository.DefaultCartKey)
	require.NoError(t, err)

	_, err = cart.New(nil, currency.NewResolver(kv, "", ""))
	require.EqualError(t, err, "store is nil")

	_, err = cart.New(store, nil)
	require.EqualError(t, err, "resolver is nil")
}

func TestAddToCart_ThenReload(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	require.NoError(t, f.manager.Init(ctx))

	ok := f.manager.AddToCart(ctx, domain.ItemInput{ID: "a1", Title: "Red Bird", Price: "₪120", Image: "images/a1.jpg"})
	require.True(t, ok)

	assert.JSONEq(t,
		`[{"id":"a1","title":"Red Bird","image":"/images/a1.jpg","amount":"120.00","currency":"₪","quantity":1}]`,
		f.kv.raw(t, repository.DefaultCartKey))

	fresh := newFixtureOn(t, f.kv)
	require.NoError(t, fresh.manager.Init(ctx))

	items := fresh.manager.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "a1", items[0].ID)
	assert.Equal(t, "₪120.00", items[0].Price.String())
	assert.Equal(t, 1, items[0].Quantity)
}

func TestAddToCart_DuplicateRejected(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	in := domain.ItemInput{ID: "a1", Title: "Red Bird", Price: "₪120"}

	require.True(t, f.manager.AddToCart(ctx, in))
	require.Equal(t, 1, f.manager.Count())
	writes := f.kv.Writes()

	assert.False(t, f.manager.AddToCart(ctx, in))
	assert.Equal(t, 1, f.manager.Count())
	assert.Equal(t, writes, f.kv.Writes(), "a rejected duplicate writes nothing")
	assert.ErrorIs(t, f.manager.Add(ctx, in), domain.ErrAlreadyInCart)

	assert.Equal(t, []domain.NoticeKind{
		domain.NoticeSuccess,
		domain.NoticeDuplicate,
		domain.NoticeDuplicate,
	}, f.notices.Kinds())
}

func TestAddToCart_Uniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	ids := []string{gofakeit.UUID(), gofakeit.UUID(), gofakeit.UUID(), gofakeit.UUID()}
	wantAccepted := make(map[string]bool)

	for range 40 {
		id := ids[gofakeit.IntN(len(ids))]
		ok := f.manager.AddToCart(ctx, domain.ItemInput{ID: id, Title: gofakeit.ProductName(), Price: "₪10"})
		assert.Equal(t, !wantAccepted[id], ok)
		wantAccepted[id] = true
	}

	seen := make(map[string]int)
	for _, item := range f.manager.Items() {
		seen[item.ID]++
	}
	assert.Len(t, seen, len(wantAccepted))
	for id, n := range seen {
		assert.Equal(t, 1, n, "id %s", id)
	}
}

func TestAddToCart_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   domain.ItemInput
	}{
		{name: "missing id", in: domain.ItemInput{Title: "Red Bird"}},
		{name: "missing title", in: domain.ItemInput{ID: "a1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := t.Context()

			assert.False(t, f.manager.AddToCart(ctx, tt.in))
			assert.Equal(t, 0, f.kv.Writes())

			var verr *domain.ValidationError
			assert.True(t, errors.As(f.manager.Add(ctx, tt.in), &verr))
			assert.Equal(t, 0, f.manager.State().Version)
			assert.False(t, f.manager.State().IsLoading)
		})
	}
}

func TestAddToCart_CanonicalImage(t *testing.T) {
	tests := []struct {
		image string
		want  string
	}{
		{image: "images/a.jpg", want: "/images/a.jpg"},
		{image: "./images/a.jpg", want: "/images/a.jpg"},
		{image: "/images/a.jpg", want: "/images/a.jpg"},
		{image: "https://cdn.example.com/a.jpg", want: "https://cdn.example.com/a.jpg"},
		{image: "//cdn.example.com/a.jpg", want: "//cdn.example.com/a.jpg"},
		{image: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.image, func(t *testing.T) {
			f := newFixture(t)
			require.True(t, f.manager.AddToCart(t.Context(), domain.ItemInput{ID: "a", Title: "A", Image: tt.image}))
			assert.Equal(t, tt.want, f.manager.Items()[0].Image)
		})
	}
}

func TestAddToCart_MergesCachedMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	full := domain.ItemInput{ID: "a1", Title: "Red Bird", Image: "/img/a1.jpg", Dimensions: "40x60", Price: "₪120"}
	require.True(t, f.manager.AddToCart(ctx, full))
	require.True(t, f.manager.RemoveFromCart(ctx, "a1"))

	require.True(t, f.manager.AddToCart(ctx, domain.ItemInput{ID: "a1", Title: "Red Bird"}))
	items := f.manager.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "/img/a1.jpg", items[0].Image)
	assert.Equal(t, "40x60", items[0].Dimensions)
	assert.Equal(t, "₪120.00", items[0].Price.String())

	// past the ttl nothing is merged
	require.True(t, f.manager.RemoveFromCart(ctx, "a1"))
	f.clk.Advance(6 * time.Minute)
	require.True(t, f.manager.AddToCart(ctx, domain.ItemInput{ID: "a1", Title: "Red Bird"}))
	assert.Empty(t, f.manager.Items()[0].Image)
}

func TestAddToCart_StockModel(t *testing.T) {
	f := newFixture(t, cart.WithCatalogModel(domain.ModelStock))
	ctx := t.Context()

	in := domain.ItemInput{ID: "p1", Title: "Print", Price: "₪30"}
	require.True(t, f.manager.AddToCart(ctx, in))
	require.True(t, f.manager.AddToCart(ctx, in))

	items := f.manager.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "60.00", f.manager.CalculateTotal())

	require.True(t, f.manager.UpdateQuantity(ctx, "p1", 99))
	assert.False(t, f.manager.AddToCart(ctx, in))
	assert.ErrorIs(t, f.manager.Add(ctx, in), domain.ErrQuantityLimit)
}

func TestRemoveFromCart_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	require.True(t, f.manager.AddToCart(ctx, domain.ItemInput{ID: "a1", Title: "Red Bird", Price: "₪120"}))
	before := f.kv.raw(t, repository.DefaultCartKey)
	writes := f.kv.Writes()
	version := f.manager.State().Version

	assert.False(t, f.manager.RemoveFromCart(ctx, "missing"))
	assert.ErrorIs(t, f.manager.Remove(ctx, "missing"), domain.ErrItemNotFound)

	assert.Equal(t, before, f.kv.raw(t, repository.DefaultCartKey))
	assert.Equal(t, writes, f.kv.Writes())
	assert.Equal(t, version, f.manager.State().Version)

	assert.True(t, f.manager.RemoveFromCart(ctx, "a1"))
	assert.Equal(t, 0, f.manager.Count())
	assert.Equal(t, "[]", f.kv.raw(t, repository.DefaultCartKey))
}

func TestUpdateQuantity(t *testing.T) {
	tests := []struct {
		name     string
		model    domain.CatalogModel
		q        int
		wantOK   bool
		wantQty  int
		wantGone bool
	}{
		{name: "unique: clamps to one", model: domain.ModelUnique, q: 5, wantOK: true, wantQty: 1},
		{name: "stock: keeps value", model: domain.ModelStock, q: 5, wantOK: true, wantQty: 5},
		{name: "stock: clamps to 99", model: domain.ModelStock, q: 500, wantOK: true, wantQty: 99},
		{name: "zero removes", model: domain.ModelStock, q: 0, wantOK: true, wantGone: true},
		{name: "negative removes", model: domain.ModelUnique, q: -3, wantOK: true, wantGone: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, cart.WithCatalogModel(tt.model))
			ctx := t.Context()
			require.True(t, f.manager.AddToCart(ctx, domain.ItemInput{ID: "a1", Title: "Red Bird", Price: "₪10"}))

			assert.Equal(t, tt.wantOK, f.manager.UpdateQuantity(ctx, "a1", tt.q))

			items := f.manager.Items()
			if tt.wantGone {
				assert.Empty(t, items)
				return
			}
			require.Len(t, items, 1)
			assert.Equal(t, tt.wantQty, items[0].Quantity)
		})
	}

	t.Run("unknown id", func(t *testing.T) {
		f := newFixture(t)
		assert.False(t, f.manager.UpdateQuantity(t.Context(), "nope", 2))
		assert.Equal(t, 0, f.kv.Writes())
	})
}

func TestCalculateTotal_ToleratesGarbage(t *testing.T) {
	f := newFixture(t)
	f.seed(t, repository.DefaultCartKey,
		`[{"id":"a","title":"A","price":"₪10.00","quantity":1},{"id":"b","title":"B","price":"garbage","quantity":1}]`)

	require.NoError(t, f.manager.Init(t.Context()))

	assert.Equal(t, "10.00", f.manager.CalculateTotal())
	assert.Equal(t, "₪10.00", f.manager.Total().String())
	assert.Equal(t, "garbage", f.manager.Items()[1].Price.String())
}

func TestInit_LineWithoutPriceIsLeftAlone(t *testing.T) {
	f := newFixture(t)
	stored := `[{"id":"a","title":"A","quantity":1}]`
	f.seed(t, repository.DefaultCartKey, stored)
	f.seed(t, currency.DefaultSettingsKey, `{"currency":"$"}`)

	require.NoError(t, f.manager.Init(t.Context()))

	assert.Equal(t, 0, f.kv.Writes(), "nothing to re-tag")
	assert.JSONEq(t, stored, f.kv.raw(t, repository.DefaultCartKey))
	require.Len(t, f.manager.Items(), 1)
	assert.False(t, f.manager.Items()[0].Price.Valid())
	assert.Equal(t, "0.00", f.manager.CalculateTotal())
	assert.Equal(t, "$", f.manager.Symbol())
}

func TestInit_CorruptionSelfHeals(t *testing.T) {
	f := newFixture(t)
	f.seed(t, repository.DefaultCartKey, `"not-an-array"`)

	require.NoError(t, f.manager.Init(t.Context()))

	assert.Empty(t, f.manager.Items())
	assert.Equal(t, "[]", f.kv.raw(t, repository.DefaultCartKey))
	require.Equal(t, 1, f.reports.Len())
	assert.ErrorIs(t, f.reports.errs[0], domain.ErrCorruptCart)

	// the healed store loads cleanly in a new context
	fresh := newFixtureOn(t, f.kv)
	require.NoError(t, fresh.manager.Init(t.Context()))
	assert.Equal(t, 0, fresh.reports.Len())
}

func TestInit_CurrencyDrift(t *testing.T) {
	f := newFixture(t)
	f.seed(t, repository.DefaultCartKey, `[{"id":"a1","title":"Blue Fish","price":"$50.00","quantity":1}]`)
	f.seed(t, currency.DefaultSettingsKey, `{"currency":"₪"}`)

	require.NoError(t, f.manager.Init(t.Context()))

	items := f.manager.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "₪50.00", items[0].Price.String())
	assert.Equal(t, "₪", f.manager.Symbol())
	assert.JSONEq(t,
		`[{"id":"a1","title":"Blue Fish","amount":"50.00","currency":"₪","quantity":1}]`,
		f.kv.raw(t, repository.DefaultCartKey))
}

func TestInit_NormalizationIsFixedPoint(t *testing.T) {
	f := newFixture(t)
	f.seed(t, repository.DefaultCartKey, `[{"id":"a1","title":"Red Bird","amount":"120.00","currency":"₪","quantity":1}]`)
	f.seed(t, currency.DefaultSettingsKey, `{"currency":"ILS"}`)

	require.NoError(t, f.manager.Init(t.Context()))
	require.NoError(t, f.manager.Reload(t.Context()))

	assert.Equal(t, 0, f.kv.Writes())
	assert.Equal(t, []int{1}, f.renderer.badges, "only the first load changed anything")
	assert.Equal(t, 1, f.manager.State().Version)
}

func TestSaveFailure_IsSwallowed(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.kv.FailWith(errors.New("quota exceeded"))

	require.True(t, f.manager.AddToCart(ctx, domain.ItemInput{ID: "a1", Title: "Red Bird", Price: "₪120"}))

	assert.Equal(t, 1, f.manager.Count(), "in-memory cart stays the working truth")
	assert.GreaterOrEqual(t, f.reports.Len(), 1)
	assert.Contains(t, f.reports.messages, "save cart")
}

func TestEmptyCart(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	require.True(t, f.manager.AddToCart(ctx, domain.ItemInput{ID: "a1", Title: "Red Bird", Price: "₪120"}))
	require.True(t, f.manager.AddToCart(ctx, domain.ItemInput{ID: "b2", Title: "Blue Fish", Price: "₪80"}))

	assert.False(t, f.manager.EmptyCart(ctx, nil))
	assert.False(t, f.manager.EmptyCart(ctx, func() bool { return false }))
	assert.Equal(t, 2, f.manager.Count())

	assert.True(t, f.manager.EmptyCart(ctx, func() bool { return true }))
	assert.Equal(t, 0, f.manager.Count())
	assert.Equal(t, "[]", f.kv.raw(t, repository.DefaultCartKey))
	assert.Equal(t, "0.00", f.manager.CalculateTotal())
}

func TestEngineState_Transitions(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	var changes []domain.StateChange
	cancel := f.manager.Subscribe(func(c domain.StateChange) { changes = append(changes, c) })

	require.True(t, f.manager.AddToCart(ctx, domain.ItemInput{ID: "a1", Title: "Red Bird", Price: "₪120"}))

	require.Len(t, changes, 2)
	assert.False(t, changes[0].Old.IsLoading)
	assert.True(t, changes[0].New.IsLoading)
	assert.False(t, changes[1].New.IsLoading)
	assert.Equal(t, 1, changes[1].New.Version)
	require.NotNil(t, changes[1].New.LastUpdated)
	assert.Equal(t, f.clk.Now(), *changes[1].New.LastUpdated)

	// a failed operation still lowers the flag but stamps nothing
	changes = nil
	require.False(t, f.manager.AddToCart(ctx, domain.ItemInput{ID: "a1", Title: "Red Bird"}))
	require.Len(t, changes, 2)
	assert.False(t, changes[1].New.IsLoading)
	assert.Equal(t, 1, changes[1].New.Version)

	cancel()
	changes = nil
	f.manager.Open()
	assert.Empty(t, changes)
	assert.True(t, f.manager.State().IsOpen)
}

func TestAddToCart_NeverPanics(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	// a cancelled context makes every store call fail
	assert.NotPanics(t, func() {
		assert.True(t, f.manager.AddToCart(ctx, domain.ItemInput{ID: "a1", Title: "Red Bird", Price: "₪1"}))
	})
	assert.Positive(t, f.reports.Len())
}

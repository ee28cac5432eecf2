package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Cart is ordered by insertion; the order is what the cart panel shows.
type Cart []CartItem

type CartItem struct {
	ID         string
	Title      string
	Image      string
	Dimensions string
	Price      Money
	Quantity   int
}

type cartItemJSON struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Image      string `json:"image,omitempty"`
	Dimensions string `json:"dimensions,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Currency   string `json:"currency,omitempty"`
	Price      string `json:"price,omitempty"`
	Quantity   int    `json:"quantity"`
}

func (i CartItem) MarshalJSON() ([]byte, error) {
	doc := cartItemJSON{
		ID:         i.ID,
		Title:      i.Title,
		Image:      i.Image,
		Dimensions: i.Dimensions,
		Quantity:   i.Quantity,
	}

	if i.Price.Valid() {
		doc.Amount = i.Price.Amount.StringFixed(2)
		doc.Currency = i.Price.Symbol
	} else {
		doc.Price = i.Price.Raw
	}

	return json.Marshal(doc)
}

// UnmarshalJSON accepts both the amount/currency schema and the legacy
// single "price" display string. A line with neither has an invalid price.
func (i *CartItem) UnmarshalJSON(data []byte) error {
	var doc cartItemJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	price := ParseMoney(doc.Price)
	if doc.Amount != "" {
		amount, err := decimal.NewFromString(doc.Amount)
		if err != nil {
			price = Money{Symbol: doc.Currency, Raw: doc.Currency + doc.Amount, Invalid: true}
		} else {
			price = NewMoney(amount, doc.Currency)
		}
	}

	*i = CartItem{
		ID:         doc.ID,
		Title:      doc.Title,
		Image:      doc.Image,
		Dimensions: doc.Dimensions,
		Price:      price,
		Quantity:   doc.Quantity,
	}

	return nil
}

func (c Cart) MarshalJSON() ([]byte, error) {
	items := []CartItem(c)
	if items == nil {
		items = []CartItem{}
	}
	return json.Marshal(items)
}

func (c Cart) IndexOf(id string) int {
	for i, item := range c {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (c Cart) Contains(id string) bool {
	return c.IndexOf(id) >= 0
}

func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Total sums amount × quantity; unparseable prices contribute zero.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c {
		total = total.Add(item.Price.Numeric().Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// ItemInput is what a product widget hands to the cart.
type ItemInput struct {
	ID         string
	Title      string
	Image      string
	Dimensions string
	Price      string
}

func (in ItemInput) Validate() error {
	var missing []string
	if in.ID == "" {
		missing = append(missing, "id")
	}
	if in.Title == "" {
		missing = append(missing, "title")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// EngineState is transient and never persisted.
type EngineState struct {
	IsOpen      bool
	IsLoading   bool
	LastUpdated *time.Time
	Version     int
}

type StateChange struct {
	Old EngineState
	New EngineState
}

// Settings is the catalog settings blob consulted for the active currency.
type Settings struct {
	Currency string `json:"currency"`
	Locale   string `json:"locale,omitempty"`
}

// CatalogModel decides how repeat additions and quantities behave.
type CatalogModel string

const (
	// ModelUnique treats every id as a single physical artwork.
	ModelUnique CatalogModel = "unique"
	// ModelStock allows several copies of the same id.
	ModelStock CatalogModel = "stock"
)

func ParseCatalogModel(s string) (CatalogModel, error) {
	switch CatalogModel(s) {
	case ModelUnique, "":
		return ModelUnique, nil
	case ModelStock:
		return ModelStock, nil
	default:
		return "", fmt.Errorf("catalog model[%s] is not valid", s)
	}
}

func (m CatalogModel) MaxQuantity() int {
	if m == ModelStock {
		return 99
	}
	return 1
}

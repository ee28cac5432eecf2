package domain

// CartView is the display form of a cart; money is formatted here and only here.
type CartView struct {
	Lines []LineView
	Total string
	Count int
}

type LineView struct {
	ID         string
	Title      string
	Image      string
	Dimensions string
	Price      string
	Quantity   int
}

func NewCartView(c Cart, symbol string) CartView {
	lines := make([]LineView, 0, len(c))
	for _, item := range c {
		lines = append(lines, LineView{
			ID:         item.ID,
			Title:      item.Title,
			Image:      item.Image,
			Dimensions: item.Dimensions,
			Price:      item.Price.String(),
			Quantity:   item.Quantity,
		})
	}

	return CartView{
		Lines: lines,
		Total: symbol + c.Total().StringFixed(2),
		Count: len(c),
	}
}

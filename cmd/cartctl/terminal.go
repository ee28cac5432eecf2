package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"github.com/nikolayk812/storefront-cart/internal/domain"
)

// terminal draws the cart panel as a table and notices as single lines.
type terminal struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

func newTerminal(out, err io.Writer) *terminal {
	return &terminal{out: out, err: err}
}

func (t *terminal) RenderCart(_ context.Context, view domain.CartView) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if view.Count == 0 {
		_, err := fmt.Fprintln(t.out, "Your cart is empty")
		return err
	}

	tw := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSIZE\tQTY\tPRICE")
	for _, line := range view.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", line.ID, line.Title, line.Dimensions, line.Quantity, line.Price)
	}
	fmt.Fprintf(tw, "\t\t\tTOTAL\t%s\n", view.Total)

	return tw.Flush()
}

func (t *terminal) UpdateBadge(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.err, "cart: %d item(s)\n", count)
}

func (t *terminal) display(n domain.Notice) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.err, "[%s] %s\n", n.Kind, n.Message)
}

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phoenixfitness/phoenix-stack/cli/internal/cart"
	"github.com/phoenixfitness/phoenix-stack/cli/pkg/output"
)

func newShopCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shop",
		Short: "Shop helpers",
	}
	cmd.AddCommand(newShopQuoteCmd(o))
	return cmd
}

type line struct {
	id       int64
	quantity int
}

// parseLine reads "id" or "id:quantity".
func parseLine(arg string) (line, error) {
	idPart, qtyPart, hasQty := strings.Cut(arg, ":")
	id, err := parseID("product", idPart)
	if err != nil {
		return line{}, err
	}
	l := line{id: id, quantity: 1}
	if hasQty {
		n, err := strconv.Atoi(qtyPart)
		if err != nil || n < 1 {
			return line{}, fmt.Errorf("invalid quantity in %q", arg)
		}
		l.quantity = n
	}
	return l, nil
}

type quoteLine struct {
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

type quote struct {
	Items      []quoteLine `json:"items"`
	TotalItems int         `json:"totalItems"`
	Total      float64     `json:"total"`
}

func newShopQuoteCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "quote <id[:qty]>...",
		Short: "Price a cart of products",
		Long: `Quote looks up each product and prices the cart. Repeating a product
adds to its quantity.`,
		Example: "  phoenix shop quote 3:2 7",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines := make([]line, 0, len(args))
			for _, arg := range args {
				l, err := parseLine(arg)
				if err != nil {
					return err
				}
				lines = append(lines, l)
			}

			return o.run(func(ctx context.Context, a *app) error {
				c := cart.New()
				for _, l := range lines {
					p, err := a.client.Products().Get(ctx, l.id)
					if err != nil {
						return fmt.Errorf("failed to get product %d: %w", l.id, err)
					}
					c.Add(*p)
					current := 0
					for _, it := range c.Items() {
						if it.Product.ID == p.ID {
							current = it.Quantity
						}
					}
					c.SetQuantity(p.ID, current-1+l.quantity)
				}

				q := quote{TotalItems: c.TotalItems(), Total: cart.Major(c.Total())}
				for _, it := range c.Items() {
					q.Items = append(q.Items, quoteLine{
						ProductID: it.Product.ID,
						Name:      it.Product.Name,
						Price:     it.Product.Price,
						Quantity:  it.Quantity,
						Subtotal:  cart.Major(it.Subtotal()),
					})
				}

				return a.out.Render(q, func() *output.Table {
					t := output.NewTable("ID", "PRODUCT", "PRICE", "QTY", "SUBTOTAL")
					for _, l := range q.Items {
						t.AddRow(l.ProductID, l.Name, money(l.Price), l.Quantity, money(l.Subtotal))
					}
					t.AddRow("", "TOTAL", "", q.TotalItems, money(q.Total))
					return t
				})
			})(cmd, args)
		},
	}
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phoenixfitness/phoenix-stack/auth/pkg/tokens"
	"github.com/phoenixfitness/phoenix-stack/cli/pkg/output"
	"github.com/phoenixfitness/phoenix-stack/common/models"
)

func newProductsCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "products",
		Aliases: []string{"product"},
		Short:   "Browse and manage the shop catalog",
	}
	cmd.AddCommand(
		newProductsListCmd(o),
		newProductsGetCmd(o),
		newProductsCreateCmd(o),
		newProductsUpdateCmd(o),
		newProductsDeleteCmd(o),
	)
	return cmd
}

func productTable(products []models.Product) func() *output.Table {
	return func() *output.Table {
		t := output.NewTable("ID", "NAME", "CATEGORY", "PRICE", "STOCK")
		for _, p := range products {
			category := "-"
			if p.Category != nil {
				category = p.Category.Name
			}
			t.AddRow(p.ID, p.Name, category, money(p.Price), p.Stock)
		}
		return t
	}
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func newProductsListCmd(o *rootOptions) *cobra.Command {
	var q models.ProductQuery
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List products",
		Args:    cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app) error {
			var (
				products []models.Product
				err      error
			)
			if q.CategoryID > 0 && q == (models.ProductQuery{CategoryID: q.CategoryID}) {
				products, err = a.client.Products().ByCategory(ctx, q.CategoryID)
			} else {
				products, err = a.client.Products().List(ctx, q)
			}
			if err != nil {
				return fmt.Errorf("failed to list products: %w", err)
			}
			return a.out.Render(products, productTable(products))
		}),
	}
	cmd.Flags().StringVar(&q.Search, "search", "", "Only products whose name matches")
	cmd.Flags().Int64Var(&q.CategoryID, "category", 0, "Only products in this category id")
	cmd.Flags().StringVar(&q.SortBy, "sort", "", "Sort order: price-low, price-high, name")
	cmd.Flags().Float64Var(&q.MinPrice, "min-price", 0, "Minimum price")
	cmd.Flags().Float64Var(&q.MaxPrice, "max-price", 0, "Maximum price")
	return cmd
}

func newProductsGetCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("product", args[0])
			if err != nil {
				return err
			}
			return o.run(func(ctx context.Context, a *app) error {
				p, err := a.client.Products().Get(ctx, id)
				if err != nil {
					return fmt.Errorf("failed to get product: %w", err)
				}
				return a.out.Render(p, productTable([]models.Product{*p}))
			})(cmd, args)
		},
	}
}

func newProductsCreateCmd(o *rootOptions) *cobra.Command {
	var req models.ProductRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a product (admin)",
		Args:  cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app) error {
			if err := a.require(ctx, tokens.RoleAdmin); err != nil {
				return err
			}
			p, err := a.client.Products().Create(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to create product: %w", err)
			}
			if a.out.Structured() {
				return a.out.Render(p, nil)
			}
			a.out.Success("Created product %d: %s", p.ID, p.Name)
			return nil
		}),
	}
	bindProductFlags(cmd, &req)
	return cmd
}

func bindProductFlags(cmd *cobra.Command, req *models.ProductRequest) {
	f := cmd.Flags()
	f.StringVar(&req.Name, "name", "", "Product name")
	f.StringVar(&req.Description, "description", "", "Description")
	f.Float64Var(&req.Price, "price", 0, "Price")
	f.Float64Var(&req.OriginalPrice, "original-price", 0, "Price before discount")
	f.IntVar(&req.Stock, "stock", 0, "Units in stock")
	f.StringVar(&req.ImageURL, "image-url", "", "Image URL")
	f.StringVar(&req.Brand, "brand", "", "Brand")
	f.Int64Var(&req.CategoryID, "category", 0, "Category id")
}

// newProductsUpdateCmd edits a product in place: the current product is read
// and only the flags given on the command line replace its fields.
func newProductsUpdateCmd(o *rootOptions) *cobra.Command {
	var in models.ProductRequest
	cmd := &cobra.Command{
		Use:     "update <id>",
		Short:   "Edit a product (admin)",
		Example: "  phoenix products update 7 --price 1299 --stock 40",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("product", args[0])
			if err != nil {
				return err
			}
			return o.run(func(ctx context.Context, a *app) error {
				if err := a.require(ctx, tokens.RoleAdmin); err != nil {
					return err
				}
				cur, err := a.client.Products().Get(ctx, id)
				if err != nil {
					return fmt.Errorf("failed to get product: %w", err)
				}

				req := cur.Request()
				f := cmd.Flags()
				if f.Changed("name") {
					req.Name = in.Name
				}
				if f.Changed("description") {
					req.Description = in.Description
				}
				if f.Changed("price") {
					req.Price = in.Price
				}
				if f.Changed("original-price") {
					req.OriginalPrice = in.OriginalPrice
				}
				if f.Changed("stock") {
					req.Stock = in.Stock
				}
				if f.Changed("image-url") {
					req.ImageURL = in.ImageURL
				}
				if f.Changed("brand") {
					req.Brand = in.Brand
				}
				if f.Changed("category") {
					req.CategoryID = in.CategoryID
				}

				p, err := a.client.Products().Update(ctx, id, req)
				if err != nil {
					return fmt.Errorf("failed to update product: %w", err)
				}
				if a.out.Structured() {
					return a.out.Render(p, nil)
				}
				a.out.Success("Updated product %d: %s", p.ID, p.Name)
				return nil
			})(cmd, args)
		},
	}
	bindProductFlags(cmd, &in)
	return cmd
}

func newProductsDeleteCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a product (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("product", args[0])
			if err != nil {
				return err
			}
			return o.run(func(ctx context.Context, a *app) error {
				if err := a.require(ctx, tokens.RoleAdmin); err != nil {
					return err
				}
				if err := a.client.Products().Delete(ctx, id); err != nil {
					return fmt.Errorf("failed to delete product: %w", err)
				}
				a.out.Success("Deleted product %d", id)
				return nil
			})(cmd, args)
		},
	}
}

func newCategoriesCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category"},
		Short:   "Browse and manage product categories",
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List categories",
		Args:    cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app) error {
			categories, err := a.client.Categories().List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list categories: %w", err)
			}
			return a.out.Render(categories, func() *output.Table {
				t := output.NewTable("ID", "NAME", "DESCRIPTION")
				for _, c := range categories {
					t.AddRow(c.ID, c.Name, dash(c.Description))
				}
				return t
			})
		}),
	}

	var req models.CategoryRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Add a category (admin)",
		Args:  cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app) error {
			if err := a.require(ctx, tokens.RoleAdmin); err != nil {
				return err
			}
			c, err := a.client.Categories().Create(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}
			a.out.Success("Created category %d: %s", c.ID, c.Name)
			return nil
		}),
	}
	create.Flags().StringVar(&req.Name, "name", "", "Category name")
	create.Flags().StringVar(&req.Description, "description", "", "Description")

	var upd models.CategoryRequest
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename or describe a category (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("category", args[0])
			if err != nil {
				return err
			}
			return o.run(func(ctx context.Context, a *app) error {
				if err := a.require(ctx, tokens.RoleAdmin); err != nil {
					return err
				}
				cur, err := a.client.Categories().Get(ctx, id)
				if err != nil {
					return fmt.Errorf("failed to get category: %w", err)
				}
				req := models.CategoryRequest{Name: cur.Name, Description: cur.Description}
				if cmd.Flags().Changed("name") {
					req.Name = upd.Name
				}
				if cmd.Flags().Changed("description") {
					req.Description = upd.Description
				}
				c, err := a.client.Categories().Update(ctx, id, req)
				if err != nil {
					return fmt.Errorf("failed to update category: %w", err)
				}
				a.out.Success("Updated category %d: %s", c.ID, c.Name)
				return nil
			})(cmd, args)
		},
	}
	update.Flags().StringVar(&upd.Name, "name", "", "Category name")
	update.Flags().StringVar(&upd.Description, "description", "", "Description")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a category (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("category", args[0])
			if err != nil {
				return err
			}
			return o.run(func(ctx context.Context, a *app) error {
				if err := a.require(ctx, tokens.RoleAdmin); err != nil {
					return err
				}
				if err := a.client.Categories().Delete(ctx, id); err != nil {
					return fmt.Errorf("failed to delete category: %w", err)
				}
				a.out.Success("Deleted category %d", id)
				return nil
			})(cmd, args)
		},
	}

	cmd.AddCommand(list, create, update, del)
	return cmd
}

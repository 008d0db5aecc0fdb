package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/phoenixfitness/phoenix-stack/common/models"
)

// ProductService covers /products.
type ProductService struct {
	c *Client
}

// Products returns the product endpoints.
func (c *Client) Products() *ProductService {
	return &ProductService{c: c}
}

// List returns the products matching q.
func (s *ProductService) List(ctx context.Context, q models.ProductQuery) ([]models.Product, error) {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.CategoryID > 0 {
		v.Set("category", strconv.FormatInt(q.CategoryID, 10))
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	if q.MinPrice > 0 {
		v.Set("minPrice", strconv.FormatFloat(q.MinPrice, 'f', -1, 64))
	}
	if q.MaxPrice > 0 {
		v.Set("maxPrice", strconv.FormatFloat(q.MaxPrice, 'f', -1, 64))
	}
	return list[models.Product](ctx, s.c, "/products", v)
}

// Get returns a single product.
func (s *ProductService) Get(ctx context.Context, id int64) (*models.Product, error) {
	if err := validateID("product", id); err != nil {
		return nil, err
	}
	var p models.Product
	if err := s.c.get(ctx, fmt.Sprintf("/products/%d", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ByCategory returns the products in a category.
func (s *ProductService) ByCategory(ctx context.Context, categoryID int64) ([]models.Product, error) {
	if err := validateID("category", categoryID); err != nil {
		return nil, err
	}
	return list[models.Product](ctx, s.c, fmt.Sprintf("/products/category/%d", categoryID), nil)
}

// Create adds a product. Admin only.
func (s *ProductService) Create(ctx context.Context, req models.ProductRequest) (*models.Product, error) {
	if err := validateProduct(req); err != nil {
		return nil, err
	}
	var p models.Product
	if err := s.c.write(ctx, http.MethodPost, "/products", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Update replaces a product. Admin only.
func (s *ProductService) Update(ctx context.Context, id int64, req models.ProductRequest) (*models.Product, error) {
	if err := validateID("product", id); err != nil {
		return nil, err
	}
	if err := validateProduct(req); err != nil {
		return nil, err
	}
	var p models.Product
	if err := s.c.write(ctx, http.MethodPut, fmt.Sprintf("/products/%d", id), req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete removes a product. Admin only.
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	if err := validateID("product", id); err != nil {
		return err
	}
	return s.c.write(ctx, http.MethodDelete, fmt.Sprintf("/products/%d", id), nil, nil)
}

// CategoryService covers /categories.
type CategoryService struct {
	c *Client
}

// Categories returns the category endpoints.
func (c *Client) Categories() *CategoryService {
	return &CategoryService{c: c}
}

func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	return list[models.Category](ctx, s.c, "/categories", nil)
}

func (s *CategoryService) Get(ctx context.Context, id int64) (*models.Category, error) {
	if err := validateID("category", id); err != nil {
		return nil, err
	}
	var cat models.Category
	if err := s.c.get(ctx, fmt.Sprintf("/categories/%d", id), nil, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (s *CategoryService) Create(ctx context.Context, req models.CategoryRequest) (*models.Category, error) {
	if err := validateCategory(req); err != nil {
		return nil, err
	}
	var cat models.Category
	if err := s.c.write(ctx, http.MethodPost, "/categories", req, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (s *CategoryService) Update(ctx context.Context, id int64, req models.CategoryRequest) (*models.Category, error) {
	if err := validateID("category", id); err != nil {
		return nil, err
	}
	if err := validateCategory(req); err != nil {
		return nil, err
	}
	var cat models.Category
	if err := s.c.write(ctx, http.MethodPut, fmt.Sprintf("/categories/%d", id), req, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	if err := validateID("category", id); err != nil {
		return err
	}
	return s.c.write(ctx, http.MethodDelete, fmt.Sprintf("/categories/%d", id), nil, nil)
}

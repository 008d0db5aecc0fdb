package models

// Category groups products in the shop.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CategoryRequest is the body for creating or updating a category.
type CategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Product is a shop item.
type Product struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Price         float64   `json:"price"`
	OriginalPrice float64   `json:"originalPrice,omitempty"`
	Stock         int       `json:"stock"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	Brand         string    `json:"brand,omitempty"`
	Material      string    `json:"material,omitempty"`
	Warranty      string    `json:"warranty,omitempty"`
	Rating        float64   `json:"rating,omitempty"`
	ReviewCount   int       `json:"reviewCount,omitempty"`
	Discount      int       `json:"discount,omitempty"`
	Category      *Category `json:"category,omitempty"`
	CreatedAt     Timestamp `json:"createdAt"`
	UpdatedAt     Timestamp `json:"updatedAt"`
}

// Request returns the editable fields of p, the starting point of an update.
func (p Product) Request() ProductRequest {
	req := ProductRequest{
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		Stock:         p.Stock,
		ImageURL:      p.ImageURL,
		Brand:         p.Brand,
	}
	if p.Category != nil {
		req.CategoryID = p.Category.ID
	}
	return req
}

// ProductRequest is the body for creating or updating a product.
type ProductRequest struct {
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"originalPrice,omitempty"`
	Stock         int     `json:"stock"`
	ImageURL      string  `json:"imageUrl,omitempty"`
	Brand         string  `json:"brand,omitempty"`
	CategoryID    int64   `json:"categoryId,omitempty"`
}

// ProductQuery filters GET /products.
type ProductQuery struct {
	Search     string
	CategoryID int64
	SortBy     string
	MinPrice   float64
	MaxPrice   float64
}

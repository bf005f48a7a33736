package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
)

// ProductDTO is the transport shape for a catalog listing.
type ProductDTO struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Available   bool            `json:"available"`
	ImageURL    *string         `json:"image_url,omitempty"`
	CategoryIDs []uuid.UUID     `json:"category_ids"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CreateProductRequest carries the payload for a new listing.
type CreateProductRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"required"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Available   *bool           `json:"available,omitempty"`
	ImageURL    *string         `json:"image_url,omitempty"`
	CategoryIDs []uuid.UUID     `json:"category_ids"`
}

// UpdateProductRequest mutates a listing. Nil fields are left untouched;
// a non-nil CategoryIDs slice replaces the whole category set.
type UpdateProductRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
	Available   *bool            `json:"available,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty"`
	CategoryIDs []uuid.UUID      `json:"category_ids,omitempty"`
}

// ListFilters describe the supported filter knobs for the browse endpoint.
// IncludeUnavailable is only honored for staff callers.
type ListFilters struct {
	CategoryID         *uuid.UUID `json:"category_id,omitempty"`
	Query              string     `json:"q,omitempty"`
	IncludeUnavailable bool       `json:"-"`
}

// ProductList is one page of listings plus the cursor for the next.
type ProductList struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func fromModel(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	categoryIDs := make([]uuid.UUID, 0, len(p.Categories))
	for _, category := range p.Categories {
		categoryIDs = append(categoryIDs, category.ID)
	}
	return &ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Available:   p.Available,
		ImageURL:    p.ImageURL,
		CategoryIDs: categoryIDs,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

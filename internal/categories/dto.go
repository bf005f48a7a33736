package categories

import (
	"time"

	"github.com/google/uuid"

	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
	"github.com/mwangikariuki/shopkit-backend/pkg/types"
)

// CategoryDTO is the transport shape for one tree node.
type CategoryDTO struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	ParentID  *uuid.UUID    `json:"parent_id,omitempty"`
	Children  []CategoryDTO `json:"children"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// CreateCategoryRequest carries the payload for a new tree node.
type CreateCategoryRequest struct {
	Name     string     `json:"name" validate:"required"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

// UpdateCategoryRequest renames or moves a node. An explicit
// `"parent_id": null` moves the node to the root level; omitting the
// field leaves the parent unchanged.
type UpdateCategoryRequest struct {
	Name     *string            `json:"name,omitempty"`
	ParentID types.NullableUUID `json:"parent_id"`
}

func fromModel(c *models.Category) *CategoryDTO {
	if c == nil {
		return nil
	}
	dto := &CategoryDTO{
		ID:        c.ID,
		Name:      c.Name,
		ParentID:  c.ParentID,
		Children:  []CategoryDTO{},
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	return dto
}

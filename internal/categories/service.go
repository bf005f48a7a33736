package categories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
	pkgerrors "github.com/mwangikariuki/shopkit-backend/pkg/errors"
)

// Service exposes the category tree operations.
type Service interface {
	Create(ctx context.Context, req CreateCategoryRequest) (*CategoryDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*CategoryDTO, error)
	Tree(ctx context.Context) ([]CategoryDTO, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateCategoryRequest) (*CategoryDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService builds the category service over the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("categories repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, req CreateCategoryRequest) (*CategoryDTO, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
	}

	if req.ParentID != nil {
		if _, err := s.loadNode(ctx, *req.ParentID); err != nil {
			if pkgerrors.As(err) != nil && pkgerrors.As(err).Code() == pkgerrors.CodeNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "parent category does not exist")
			}
			return nil, err
		}
	}

	category := &models.Category{
		Name:     name,
		ParentID: req.ParentID,
	}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return fromModel(category), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*CategoryDTO, error) {
	category, err := s.loadNode(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := fromModel(category)
	for i := range category.Children {
		dto.Children = append(dto.Children, *fromModel(&category.Children[i]))
	}
	return dto, nil
}

// Tree returns the full forest, every level ordered by name.
func (s *service) Tree(ctx context.Context) ([]CategoryDTO, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return assemble(all), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, req UpdateCategoryRequest) (*CategoryDTO, error) {
	if _, err := s.loadNode(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name cannot be empty")
		}
		updates["name"] = name
	}

	switch {
	case req.ParentID.Valid && req.ParentID.Value == nil:
		updates["parent_id"] = nil
	case req.ParentID.Valid:
		if err := s.checkMove(ctx, id, *req.ParentID.Value); err != nil {
			return nil, err
		}
		updates["parent_id"] = *req.ParentID.Value
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update category")
		}
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete category")
	}
	return nil
}

// checkMove rejects a reparent that would cut a cycle into the tree: a node
// cannot move under itself or any node in its own subtree.
func (s *service) checkMove(ctx context.Context, id, newParentID uuid.UUID) error {
	if id == newParentID {
		return pkgerrors.New(pkgerrors.CodeValidation, "category cannot be its own parent")
	}

	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	parents := make(map[uuid.UUID]*uuid.UUID, len(all))
	found := false
	for i := range all {
		parents[all[i].ID] = all[i].ParentID
		if all[i].ID == newParentID {
			found = true
		}
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeValidation, "parent category does not exist")
	}

	cursor := newParentID
	for {
		parent, ok := parents[cursor]
		if !ok || parent == nil {
			return nil
		}
		if *parent == id {
			return pkgerrors.New(pkgerrors.CodeValidation, "category cannot move under its own subtree")
		}
		cursor = *parent
	}
}

func (s *service) loadNode(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return category, nil
}

// assemble builds the forest from a flat, name-ordered listing. Slice
// order is preserved, so every level comes out sorted by name.
func assemble(all []models.Category) []CategoryDTO {
	byID := make(map[uuid.UUID]*models.Category, len(all))
	children := make(map[uuid.UUID][]uuid.UUID, len(all))
	roots := make([]uuid.UUID, 0, len(all))
	for i := range all {
		byID[all[i].ID] = &all[i]
		if all[i].ParentID == nil {
			roots = append(roots, all[i].ID)
		} else {
			children[*all[i].ParentID] = append(children[*all[i].ParentID], all[i].ID)
		}
	}

	var build func(id uuid.UUID) CategoryDTO
	build = func(id uuid.UUID) CategoryDTO {
		dto := *fromModel(byID[id])
		for _, childID := range children[id] {
			dto.Children = append(dto.Children, build(childID))
		}
		return dto
	}

	forest := make([]CategoryDTO, 0, len(roots))
	for _, id := range roots {
		forest = append(forest, build(id))
	}
	return forest
}

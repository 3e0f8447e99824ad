package ledger

import (
	"context"
	"fmt"

	"hucha/internal/core"
)

func (s *Service) CreateCategory(ctx context.Context, ownerID int64, name string, kind core.Kind) (*core.Category, error) {
	category := core.Category{
		OwnerID: ownerID,
		Name:    name,
		Kind:    kind,
	}
	if err := category.Validate(); err != nil {
		return nil, err
	}

	err := s.store.Tx(ctx, func(tx StoreTx) error {
		return tx.CreateCategory(ctx, &category)
	})
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &category, nil
}

func (s *Service) ListCategories(ctx context.Context, ownerID int64) ([]core.Category, error) {
	var categories []core.Category
	err := s.store.Tx(ctx, func(tx StoreTx) error {
		var err error
		categories, err = tx.ListCategories(ctx, ownerID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// DeleteCategory refuses to delete a category that movements still reference.
func (s *Service) DeleteCategory(ctx context.Context, ownerID, id int64) error {
	return s.store.Tx(ctx, func(tx StoreTx) error {
		if _, err := tx.CategoryByID(ctx, ownerID, id); err != nil {
			return fmt.Errorf("load category: %w", err)
		}
		n, err := tx.CountMovementsByCategory(ctx, ownerID, id)
		if err != nil {
			return fmt.Errorf("count movements: %w", err)
		}
		if n > 0 {
			return core.ErrInvalidOperation
		}
		if err := tx.DeleteCategory(ctx, ownerID, id); err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		return nil
	})
}

package store

import (
	"context"

	"github.com/wolfman30/lumeskin-platform/internal/models"
)

func (s *Store) Products(ctx context.Context) (products []models.Product, err error) {
	ctx, done := s.observe(ctx, "products")
	defer done(&err)
	return readCollection[models.Product](ctx, s, productsKey)
}

// UpdateProduct merges patch into the matching product; unknown ids are a no-op.
func (s *Store) UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (err error) {
	ctx, done := s.observe(ctx, "update_product")
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := readCollection[models.Product](ctx, s, productsKey)
	if err != nil {
		return err
	}
	for i, p := range products {
		if p.ID == id {
			products[i] = patch.Apply(p)
		}
	}
	return writeCollection(ctx, s, productsKey, products)
}

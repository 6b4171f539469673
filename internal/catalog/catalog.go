// Package catalog owns the product seed data, the static doctor directory and
// the read side of the shop.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/lumeskin-platform/internal/models"
)

// FeaturedCount is how many products the patient home shows.
const FeaturedCount = 3

var ErrProductNotFound = errors.New("catalog: product not found")

// SeedProducts returns the four products written on first start.
func SeedProducts() []models.Product {
	return []models.Product{
		{ID: "1", Name: "Hydrating Cleanser", Price: 25, Image: "https://picsum.photos/seed/cleanser/200", Category: "Cleanser", Description: "Gentle soap-free cleanser.", Rating: 4.5},
		{ID: "2", Name: "Retinol Serum", Price: 45, Image: "https://picsum.photos/seed/retinol/200", Category: "Serum", Description: "Advanced anti-aging formula.", Rating: 4.8},
		{ID: "3", Name: "Mineral Sunscreen", Price: 30, Image: "https://picsum.photos/seed/sun/200", Category: "Protection", Description: "SPF 50+ Broad Spectrum.", Rating: 4.7},
		{ID: "4", Name: "Moisturizing Cream", Price: 20, Image: "https://picsum.photos/seed/cream/200", Category: "Cream", Description: "Deep hydration for 24h.", Rating: 4.6},
	}
}

// Doctors is the static directory. It is never persisted and availability
// never shrinks when slots are booked.
func Doctors() []models.Doctor {
	return []models.Doctor{
		{ID: "d1", Name: "Dr. Sarah Smith", Specialty: "General Dermatology", Image: "https://picsum.photos/seed/dr1/200", Availability: []string{"9:00 AM", "10:00 AM", "2:00 PM"}},
		{ID: "d2", Name: "Dr. John Doe", Specialty: "Cosmetic Specialist", Image: "https://picsum.photos/seed/dr2/200", Availability: []string{"11:00 AM", "1:00 PM", "4:00 PM"}},
	}
}

// DoctorByID looks a doctor up in the static directory.
func DoctorByID(id string) (models.Doctor, bool) {
	for _, d := range Doctors() {
		if d.ID == id {
			return d, true
		}
	}
	return models.Doctor{}, false
}

// ProductStore is the slice of the store the catalog reads and edits.
type ProductStore interface {
	Products(ctx context.Context) ([]models.Product, error)
	UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) error
}

type Service struct {
	store ProductStore
}

func NewService(store ProductStore) *Service {
	if store == nil {
		panic("catalog: product store cannot be nil")
	}
	return &Service{store: store}
}

func (s *Service) Products(ctx context.Context) ([]models.Product, error) {
	return s.store.Products(ctx)
}

// Product finds one product by id.
func (s *Service) Product(ctx context.Context, id string) (models.Product, error) {
	products, err := s.store.Products(ctx)
	if err != nil {
		return models.Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Product{}, ErrProductNotFound
}

// Featured returns the first FeaturedCount products in stored order.
func (s *Service) Featured(ctx context.Context) ([]models.Product, error) {
	products, err := s.store.Products(ctx)
	if err != nil {
		return nil, err
	}
	if len(products) > FeaturedCount {
		products = products[:FeaturedCount]
	}
	return products, nil
}

// Update applies an admin edit and returns the stored product.
func (s *Service) Update(ctx context.Context, id string, patch models.ProductPatch) (models.Product, error) {
	if _, err := s.Product(ctx, id); err != nil {
		return models.Product{}, err
	}
	if err := s.store.UpdateProduct(ctx, id, patch); err != nil {
		return models.Product{}, fmt.Errorf("catalog: update product %s: %w", id, err)
	}
	return s.Product(ctx, id)
}

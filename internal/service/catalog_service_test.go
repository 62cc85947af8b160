package service

import (
	"context"
	"testing"

	"freshmarket/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalogStore struct {
	products map[int64]*models.Product
	nextID   int64
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{products: make(map[int64]*models.Product)}
}

func (s *fakeCatalogStore) InsertProduct(ctx context.Context, product *models.Product) error {
	s.nextID++
	product.ID = s.nextID
	cp := *product
	s.products[product.ID] = &cp
	return nil
}

func (s *fakeCatalogStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	cp := *product
	return &cp, nil
}

func (s *fakeCatalogStore) ListProducts(ctx context.Context, status string) ([]models.Product, error) {
	var out []models.Product
	for _, product := range s.products {
		if status != "" && product.Status != status {
			continue
		}
		out = append(out, *product)
	}
	return out, nil
}

func (s *fakeCatalogStore) UpdateProductReview(ctx context.Context, id int64, retailPrice *decimal.Decimal, status *string) error {
	product := s.products[id]
	if retailPrice != nil {
		product.RetailPrice = *retailPrice
	}
	if status != nil {
		product.Status = *status
	}
	return nil
}

func (s *fakeCatalogStore) DeleteProduct(ctx context.Context, id int64) error {
	delete(s.products, id)
	return nil
}

func TestCreateProductDefaults(t *testing.T) {
	store := newFakeCatalogStore()
	svc := NewCatalogService(store)

	product, err := svc.CreateProduct(context.Background(), &CreateProductRequest{
		Name:             "carrots",
		PurchasePrice:    dec("1.2"),
		PurchaseQuantity: 30,
		CreatorID:        7,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ProductStatusPending, product.Status)
	assert.Equal(t, 30, product.Stock, "stock defaults to purchase quantity")
	assert.True(t, product.RetailPrice.Equal(decimal.Zero), "retail price starts unset")
}

func TestReviewProduct(t *testing.T) {
	store := newFakeCatalogStore()
	svc := NewCatalogService(store)

	product, err := svc.CreateProduct(context.Background(), &CreateProductRequest{
		Name:          "carrots",
		PurchasePrice: dec("1.2"),
		CreatorID:     7,
	})
	require.NoError(t, err)

	price := dec("2.4")
	status := models.ProductStatusActive
	reviewed, err := svc.ReviewProduct(context.Background(), product.ID, &ReviewProductRequest{
		RetailPrice: &price,
		Status:      &status,
	})
	require.NoError(t, err)
	assert.True(t, reviewed.RetailPrice.Equal(dec("2.4")))
	assert.Equal(t, models.ProductStatusActive, reviewed.Status)

	_, err = svc.ReviewProduct(context.Background(), product.ID, &ReviewProductRequest{})
	var invalid *InvalidRequestError
	assert.ErrorAs(t, err, &invalid)

	bogus := "sold_out"
	_, err = svc.ReviewProduct(context.Background(), product.ID, &ReviewProductRequest{Status: &bogus})
	assert.ErrorAs(t, err, &invalid)

	_, err = svc.ReviewProduct(context.Background(), 999, &ReviewProductRequest{RetailPrice: &price})
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestDeleteProductOnlyWhenPending(t *testing.T) {
	store := newFakeCatalogStore()
	svc := NewCatalogService(store)

	product, err := svc.CreateProduct(context.Background(), &CreateProductRequest{
		Name:          "carrots",
		PurchasePrice: dec("1.2"),
		CreatorID:     7,
	})
	require.NoError(t, err)

	status := models.ProductStatusActive
	_, err = svc.ReviewProduct(context.Background(), product.ID, &ReviewProductRequest{Status: &status})
	require.NoError(t, err)

	err = svc.DeleteProduct(context.Background(), product.ID)
	var invalid *InvalidRequestError
	require.ErrorAs(t, err, &invalid)

	pending := models.ProductStatusPending
	_, err = svc.ReviewProduct(context.Background(), product.ID, &ReviewProductRequest{Status: &pending})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProduct(context.Background(), product.ID))

	err = svc.DeleteProduct(context.Background(), product.ID)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

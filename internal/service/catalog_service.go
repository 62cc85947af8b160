package service

import (
	"context"
	"fmt"

	"freshmarket/internal/models"
	"freshmarket/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogStore is the persistence surface the catalog service depends on
type CatalogStore interface {
	InsertProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, status string) ([]models.Product, error)
	UpdateProductReview(ctx context.Context, id int64, retailPrice *decimal.Decimal, status *string) error
	DeleteProduct(ctx context.Context, id int64) error
}

// CatalogService handles the product catalog: purchaser uploads, seller
// review (pricing and shelf status) and withdrawal of unreviewed products.
// Stock is deliberately absent from the review surface; it only moves
// through order placement and restocking.
type CatalogService struct {
	store  CatalogStore
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store CatalogStore) *CatalogService {
	return &CatalogService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// CreateProductRequest represents a purchaser uploading purchased goods
type CreateProductRequest struct {
	Name             string          `json:"name" binding:"required"`
	PurchasePrice    decimal.Decimal `json:"purchase_price" binding:"required"`
	PurchaseQuantity int             `json:"purchase_quantity"`
	Stock            int             `json:"stock"`
	Description      string          `json:"description"`
	ImageURL         string          `json:"image_url"`
	CreatorID        int64           `json:"creator_id" binding:"required"`
}

// ReviewProductRequest represents a seller pricing and publishing a product
type ReviewProductRequest struct {
	RetailPrice *decimal.Decimal `json:"retail_price"`
	Status      *string          `json:"status"`
}

// CreateProduct registers a newly purchased product in pending status.
// Stock defaults to the purchase quantity when not given.
func (s *CatalogService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	quantity := req.PurchaseQuantity
	if quantity <= 0 {
		quantity = 1
	}
	stock := req.Stock
	if stock <= 0 {
		stock = quantity
	}

	product := &models.Product{
		Name:             req.Name,
		PurchasePrice:    req.PurchasePrice,
		PurchaseQuantity: quantity,
		Stock:            stock,
		Description:      req.Description,
		RetailPrice:      decimal.Zero,
		Status:           models.ProductStatusPending,
		ImageURL:         req.ImageURL,
		CreatorID:        req.CreatorID,
	}

	if err := s.store.InsertProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.String("name", product.Name),
		zap.Int("stock", product.Stock))
	return product, nil
}

// GetProduct retrieves a product by id
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if product == nil {
		return nil, &NotFoundError{Entity: "product", ID: id}
	}
	return product, nil
}

// ListProducts retrieves products, optionally filtered by status
func (s *CatalogService) ListProducts(ctx context.Context, status string) ([]models.Product, error) {
	return s.store.ListProducts(ctx, status)
}

// ReviewProduct lets a seller set the retail price and/or shelf status
func (s *CatalogService) ReviewProduct(ctx context.Context, id int64, req *ReviewProductRequest) (*models.Product, error) {
	if req.RetailPrice == nil && req.Status == nil {
		return nil, &InvalidRequestError{Reason: "nothing to update"}
	}
	if req.Status != nil && !validProductStatus(*req.Status) {
		return nil, &InvalidRequestError{Reason: fmt.Sprintf("unknown product status %q", *req.Status)}
	}

	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if product == nil {
		return nil, &NotFoundError{Entity: "product", ID: id}
	}

	if err := s.store.UpdateProductReview(ctx, id, req.RetailPrice, req.Status); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	if req.RetailPrice != nil {
		product.RetailPrice = *req.RetailPrice
	}
	if req.Status != nil {
		product.Status = *req.Status
	}

	s.logger.Info("Product reviewed",
		zap.Int64("product_id", product.ID),
		zap.String("status", product.Status),
		zap.String("retail_price", product.RetailPrice.String()))
	return product, nil
}

// DeleteProduct withdraws a product. Only pending products can be removed;
// anything that has been published may already appear on orders.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load product: %w", err)
	}
	if product == nil {
		return &NotFoundError{Entity: "product", ID: id}
	}
	if product.Status != models.ProductStatusPending {
		return &InvalidRequestError{Reason: "only pending products can be withdrawn"}
	}

	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.logger.Info("Product withdrawn", zap.Int64("product_id", id))
	return nil
}

func validProductStatus(status string) bool {
	switch status {
	case models.ProductStatusPending, models.ProductStatusActive, models.ProductStatusOffShelf:
		return true
	}
	return false
}

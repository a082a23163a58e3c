package sales

import (
	"context"
	"time"

	"gym-backend/internal/models"
)

// Store is the persistence the recorder needs. Implementations return
// ErrNotFound (possibly wrapped) for missing products and sales, and
// ErrInsufficientStock when AdjustStock would drive a location negative.
type Store interface {
	// Transaction runs fn atomically; any error rolls back every write made
	// through tx.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	// FindProduct loads a product with its stock rows. forUpdate locks the
	// product until the surrounding transaction ends.
	FindProduct(ctx context.Context, id uint, forUpdate bool) (*models.Product, error)
	ProductsByID(ctx context.Context, ids []uint) (map[uint]models.Product, error)

	FindSale(ctx context.Context, id uint) (*models.Sale, error)
	CreateSale(ctx context.Context, sale *models.Sale) error
	UpdateSale(ctx context.Context, sale *models.Sale) error
	DeleteSale(ctx context.Context, id uint) error
	ListSales(ctx context.Context, filter ListFilter) ([]models.Sale, error)

	// AdjustStock applies delta at location with a single conditional write
	// and returns the resulting quantity. A positive delta on an unknown
	// location creates it at the end of the ledger.
	AdjustStock(ctx context.Context, productID uint, location string, delta int) (int, error)
}

// ListFilter narrows ListSales; zero values mean no filter.
type ListFilter struct {
	Location string
	From     time.Time
	To       time.Time
}

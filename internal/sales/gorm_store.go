package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gym-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on Postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) FindProduct(ctx context.Context, id uint, forUpdate bool) (*models.Product, error) {
	q := s.db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var p models.Product
	err := q.Preload("Stock", func(db *gorm.DB) *gorm.DB {
		return db.Order("position asc, id asc")
	}).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %d %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) ProductsByID(ctx context.Context, ids []uint) (map[uint]models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]models.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (s *GormStore) FindSale(ctx context.Context, id uint) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.WithContext(ctx).First(&sale, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("sale %d %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *GormStore) CreateSale(ctx context.Context, sale *models.Sale) error {
	return s.db.WithContext(ctx).Create(sale).Error
}

func (s *GormStore) UpdateSale(ctx context.Context, sale *models.Sale) error {
	return s.db.WithContext(ctx).Model(sale).Updates(map[string]interface{}{
		"quantity":   sale.Quantity,
		"total":      sale.Total,
		"notes":      sale.Notes,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (s *GormStore) DeleteSale(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Sale{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("sale %d %w", id, ErrNotFound)
	}
	return nil
}

func (s *GormStore) ListSales(ctx context.Context, filter ListFilter) ([]models.Sale, error) {
	q := s.db.WithContext(ctx).Model(&models.Sale{})
	if filter.Location != "" {
		q = q.Where("location = ?", filter.Location)
	}
	if !filter.From.IsZero() {
		q = q.Where("date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("date <= ?", filter.To)
	}

	var sales []models.Sale
	if err := q.Order("date DESC, id DESC").Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}

// AdjustStock never reads then writes: decrements are a single
// `quantity >= n` conditional update so two writers cannot oversell.
func (s *GormStore) AdjustStock(ctx context.Context, productID uint, location string, delta int) (int, error) {
	db := s.db.WithContext(ctx)
	now := time.Now().UTC()

	if delta < 0 {
		res := db.Model(&models.ProductStock{}).
			Where("product_id = ? AND location = ? AND quantity >= ?", productID, location, -delta).
			Updates(map[string]interface{}{
				"quantity":   gorm.Expr("quantity + ?", delta),
				"updated_at": now,
			})
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 0 {
			return 0, fmt.Errorf("%w at %q: requested %d", ErrInsufficientStock, location, -delta)
		}
		return s.quantityAt(db, productID, location)
	}

	var maxPos int
	if err := db.Model(&models.ProductStock{}).
		Where("product_id = ?", productID).
		Select("COALESCE(MAX(position), -1)").
		Scan(&maxPos).Error; err != nil {
		return 0, err
	}

	row := models.ProductStock{
		ProductID: productID,
		Location:  location,
		Quantity:  delta,
		Position:  maxPos + 1,
	}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}, {Name: "location"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("product_stocks.quantity + ?", delta),
			"updated_at": now,
		}),
	}).Create(&row).Error
	if err != nil {
		return 0, err
	}
	return s.quantityAt(db, productID, location)
}

func (s *GormStore) quantityAt(db *gorm.DB, productID uint, location string) (int, error) {
	var qty int
	err := db.Model(&models.ProductStock{}).
		Where("product_id = ? AND location = ?", productID, location).
		Select("quantity").
		Scan(&qty).Error
	return qty, err
}

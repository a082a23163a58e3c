package sales

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gym-backend/internal/database"
	"gym-backend/internal/models"
	"gym-backend/internal/stock"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB returns a migrated in-memory SQLite database private to t.
func openTestDB(t *testing.T, products ...*models.Product) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	for _, p := range products {
		require.NoError(t, db.Create(p).Error)
	}
	return db
}

func ledgerOf(t *testing.T, store *GormStore, productID uint) stock.Ledger {
	t.Helper()
	p, err := store.FindProduct(context.Background(), productID, false)
	require.NoError(t, err)
	return p.Ledger()
}

func countSales(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Sale{}).Count(&n).Error)
	return n
}

func TestGormStore_FindProduct(t *testing.T) {
	db := openTestDB(t, protein())
	store := NewGormStore(db)
	ctx := context.Background()

	p, err := store.FindProduct(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, "Protein bar", p.Name)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, stock.Ledger{{Location: "Gym A", Quantity: 4}, {Location: "Gym B", Quantity: 0}}, p.Ledger())

	_, err = store.FindProduct(ctx, 99, false)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "product 99 not found", err.Error())
}

func TestGormStore_AdjustStockConditionalDecrement(t *testing.T) {
	db := openTestDB(t, protein())
	store := NewGormStore(db)
	ctx := context.Background()

	_, err := store.AdjustStock(ctx, 1, "Gym A", -5)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), `"Gym A"`)
	assert.Equal(t, stock.Ledger{{Location: "Gym A", Quantity: 4}, {Location: "Gym B", Quantity: 0}}, ledgerOf(t, store, 1))

	// a decrement never creates a location
	_, err = store.AdjustStock(ctx, 1, "Gym Z", -1)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Len(t, ledgerOf(t, store, 1), 2)

	left, err := store.AdjustStock(ctx, 1, "Gym A", -4)
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	_, err = store.AdjustStock(ctx, 1, "Gym A", -1)
	require.ErrorIs(t, err, ErrInsufficientStock)

	back, err := store.AdjustStock(ctx, 1, "Gym A", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, back)
	assert.Equal(t, stock.Ledger{{Location: "Gym A", Quantity: 3}, {Location: "Gym B", Quantity: 0}}, ledgerOf(t, store, 1))
}

func TestGormStore_RecreatedLocationGoesLast(t *testing.T) {
	db := openTestDB(t, protein())
	store := NewGormStore(db)
	ctx := context.Background()

	require.NoError(t, db.Where("product_id = ? AND location = ?", 1, "Gym A").Delete(&models.ProductStock{}).Error)

	qty, err := store.AdjustStock(ctx, 1, "Gym A", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, qty)

	var rows []models.ProductStock
	require.NoError(t, db.Where("product_id = ?", 1).Order("position asc").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, "Gym B", rows[0].Location)
	assert.Equal(t, 1, rows[0].Position)
	assert.Equal(t, "Gym A", rows[1].Location)
	assert.Equal(t, 2, rows[1].Position)

	assert.Equal(t, stock.Ledger{{Location: "Gym B", Quantity: 0}, {Location: "Gym A", Quantity: 4}}, ledgerOf(t, store, 1))
}

func TestGormStore_RecorderRoundTrip(t *testing.T) {
	db := openTestDB(t, protein(), yogaClass())
	store := NewGormStore(db)
	r := NewRecorder(store, fallbackLocation)
	ctx := context.Background()

	sale, _, err := r.Create(ctx, staff, CreateInput{ProductID: 1, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, "Gym A", sale.Location)
	assert.True(t, sale.Total.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, stock.Ledger{{Location: "Gym A", Quantity: 2}, {Location: "Gym B", Quantity: 0}}, ledgerOf(t, store, 1))

	_, _, err = r.Create(ctx, staff, CreateInput{ProductID: 1, Quantity: 5, Location: "Gym B"})
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, int64(1), countSales(t, db))

	four := 4
	_, err = r.Update(ctx, sale.ID, UpdateInput{Quantity: &four})
	require.NoError(t, err)
	assert.Equal(t, stock.Ledger{{Location: "Gym A", Quantity: 0}, {Location: "Gym B", Quantity: 0}}, ledgerOf(t, store, 1))

	five := 5
	_, err = r.Update(ctx, sale.ID, UpdateInput{Quantity: &five})
	require.ErrorIs(t, err, ErrInsufficientStock)
	stored, err := r.Get(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Quantity)
	assert.True(t, stored.Total.Equal(decimal.NewFromInt(40)))

	_, err = r.Delete(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, stock.Ledger{{Location: "Gym A", Quantity: 4}, {Location: "Gym B", Quantity: 0}}, ledgerOf(t, store, 1))
	assert.Zero(t, countSales(t, db))

	class, _, err := r.Create(ctx, staff, CreateInput{ProductID: 2, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, fallbackLocation, class.Location)
	assert.False(t, class.StockTracked)
	assert.Empty(t, ledgerOf(t, store, 2))
}

// drainingStore empties the target row right before each stock write, as
// a concurrent sale committing first would.
type drainingStore struct {
	Store
}

func (d drainingStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return d.Store.Transaction(ctx, func(tx Store) error {
		return fn(drainingStore{tx})
	})
}

func (d drainingStore) AdjustStock(ctx context.Context, productID uint, location string, delta int) (int, error) {
	gs := d.Store.(*GormStore)
	if err := gs.db.WithContext(ctx).Model(&models.ProductStock{}).
		Where("product_id = ? AND location = ?", productID, location).
		Update("quantity", 0).Error; err != nil {
		return 0, err
	}
	return d.Store.AdjustStock(ctx, productID, location, delta)
}

func TestGormStore_LostDecrementRollsBackSale(t *testing.T) {
	db := openTestDB(t, towel(2))
	r := NewRecorder(drainingStore{NewGormStore(db)}, fallbackLocation)

	_, _, err := r.Create(context.Background(), staff, CreateInput{ProductID: 3, Quantity: 2})
	require.ErrorIs(t, err, ErrStockConflict)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	assert.Zero(t, countSales(t, db), "sale insert rolled back")
	assert.Equal(t, stock.Ledger{{Location: "A", Quantity: 2}}, ledgerOf(t, NewGormStore(db), 3))
}

package inventory

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gym-backend/internal/database"
	"gym-backend/internal/models"
	"gym-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SetStockRequest accepts either a location map or a single location.
//
//	{"stock": {"Gym A": 10, "Gym B": 4}}
//	{"location": "Gym A", "quantity": 10}
type SetStockRequest struct {
	Stock    map[string]int `json:"stock"`
	Location string         `json:"location"`
	Quantity *int           `json:"quantity"`
}

var errNoStockChange = errors.New("stock or location/quantity is required")

// apply sets every requested quantity on l. Map keys are applied in name
// order so new locations get a stable position.
func (r SetStockRequest) apply(l stock.Ledger) (stock.Ledger, error) {
	if loc := strings.TrimSpace(r.Location); loc != "" || r.Quantity != nil {
		if len(r.Stock) > 0 {
			return nil, errors.New("send either stock or location/quantity, not both")
		}
		if r.Quantity == nil {
			return nil, errors.New("quantity is required")
		}
		return l.Set(loc, *r.Quantity)
	}
	if len(r.Stock) == 0 {
		return nil, errNoStockChange
	}
	return ledgerFromMap(l, r.Stock)
}

func ledgerFromMap(l stock.Ledger, m map[string]int) (stock.Ledger, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var err error
	for _, k := range keys {
		if l, err = l.Set(strings.TrimSpace(k), m[k]); err != nil {
			return nil, err
		}
	}
	return l, l.Validate()
}

// stockRows turns a ledger into rows whose position follows ledger order.
func stockRows(productID uint, l stock.Ledger) []models.ProductStock {
	rows := make([]models.ProductStock, 0, len(l))
	for i, lv := range l {
		rows = append(rows, models.ProductStock{
			ProductID: productID,
			Location:  lv.Location,
			Quantity:  lv.Quantity,
			Position:  i,
		})
	}
	return rows
}

// PUT /api/admin/products/:id/stock
// Quantities are absolute; locations not named keep their value.
func SetStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SetStockRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		ctx := c.UserContext()
		var (
			product models.Product
			before  stock.Ledger
			after   stock.Ledger
		)
		err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Preload("Stock", preloadStock).
				First(&product, "id = ?", c.Params("id")).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "Product not found")
			}
			if !product.Type.StockTracked() {
				return fiber.NewError(fiber.StatusBadRequest, "Class products do not carry stock")
			}

			before = product.Ledger()
			next, err := body.apply(before)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, capitalize(err.Error()))
			}
			after = next

			rows := stockRows(product.ID, after)
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "product_id"}, {Name: "location"}},
				DoUpdates: clause.AssignmentColumns([]string{"quantity", "position", "updated_at"}),
			}).Create(&rows).Error
		})
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fe
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update stock")
		}

		product.Stock = stockRows(product.ID, after)
		writeAudit(ctx, c, "product_stock", product.ID, models.AuditActionUpdate, before, after,
			fmt.Sprintf("Stock set: %s total %d -> %d", product.Name, before.Total(), after.Total()))

		return c.JSON(toProductResponse(&product))
	}
}

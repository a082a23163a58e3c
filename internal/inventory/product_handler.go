package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gym-backend/internal/audit"
	"gym-backend/internal/auth"
	"gym-backend/internal/database"
	"gym-backend/internal/models"
	"gym-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type StockLevelResponse struct {
	Location string `json:"location"`
	Quantity int    `json:"quantity"`
}

type ProductResponse struct {
	ID                uint                 `json:"id"`
	Name              string               `json:"name"`
	Description       string               `json:"description"`
	Price             decimal.Decimal      `json:"price"`
	Type              models.ProductType   `json:"type"`
	LowStockThreshold int                  `json:"lowStockThreshold"`
	Stock             []StockLevelResponse `json:"stock"`
	TotalStock        int                  `json:"totalStock"`
}

type CreateProductRequest struct {
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	Price             decimal.Decimal    `json:"price"`
	Type              models.ProductType `json:"type"`
	LowStockThreshold int                `json:"lowStockThreshold"`
	Stock             map[string]int     `json:"stock"` // physical types only
}

type UpdateProductRequest struct {
	Name              *string          `json:"name"`
	Description       *string          `json:"description"`
	Price             *decimal.Decimal `json:"price"`
	LowStockThreshold *int             `json:"lowStockThreshold"`
}

func toProductResponse(p *models.Product) ProductResponse {
	ledger := p.Ledger()
	levels := make([]StockLevelResponse, 0, len(ledger))
	for _, lv := range ledger {
		levels = append(levels, StockLevelResponse{Location: lv.Location, Quantity: lv.Quantity})
	}
	return ProductResponse{
		ID:                p.ID,
		Name:              p.Name,
		Description:       p.Description,
		Price:             p.Price,
		Type:              p.Type,
		LowStockThreshold: p.LowStockThreshold,
		Stock:             levels,
		TotalStock:        ledger.Total(),
	}
}

func preloadStock(db *gorm.DB) *gorm.DB {
	return db.Order("position asc, id asc")
}

// validateNewProduct trims and checks a create request and returns the
// initial ledger.
func validateNewProduct(body *CreateProductRequest) (stock.Ledger, error) {
	body.Name = strings.TrimSpace(body.Name)
	body.Description = strings.TrimSpace(body.Description)

	if body.Name == "" {
		return nil, errors.New("name is required")
	}
	if !body.Type.Valid() {
		return nil, errors.New("type must be one of consumable, equipment, clothing, class")
	}
	if body.Price.IsNegative() {
		return nil, errors.New("price must not be negative")
	}
	if body.LowStockThreshold < 0 {
		return nil, errors.New("lowStockThreshold must not be negative")
	}
	if !body.Type.StockTracked() {
		if len(body.Stock) > 0 {
			return nil, errors.New("class products do not carry stock")
		}
		return nil, nil
	}
	return ledgerFromMap(stock.Ledger{}, body.Stock)
}

// GET /api/products?type=consumable&search=bar
func ListProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.Product{})

		if t := models.ProductType(c.Query("type")); t != "" {
			if !t.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "Unknown product type")
			}
			dbq = dbq.Where("type = ?", t)
		}
		if search := strings.TrimSpace(c.Query("search")); search != "" {
			dbq = dbq.Where("name ILIKE ?", "%"+search+"%")
		}

		var products []models.Product
		if err := dbq.Preload("Stock", preloadStock).Order("name asc").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list products")
		}

		res := make([]ProductResponse, 0, len(products))
		for i := range products {
			res = append(res, toProductResponse(&products[i]))
		}
		return c.JSON(res)
	}
}

// GET /api/products/:id
func GetProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var p models.Product
		if err := database.DB.WithContext(c.UserContext()).
			Preload("Stock", preloadStock).
			First(&p, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Product not found")
		}
		return c.JSON(toProductResponse(&p))
	}
}

// POST /api/admin/products
func CreateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		ledger, err := validateNewProduct(&body)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, capitalize(err.Error()))
		}

		ctx := c.UserContext()
		var existing models.Product
		if err := database.DB.WithContext(ctx).Where("name = ?", body.Name).First(&existing).Error; err == nil {
			return fiber.NewError(fiber.StatusBadRequest, "A product with this name already exists")
		}

		p := models.Product{
			Name:              body.Name,
			Description:       body.Description,
			Price:             body.Price,
			Type:              body.Type,
			LowStockThreshold: body.LowStockThreshold,
			Stock:             stockRows(0, ledger),
		}
		if err := database.DB.WithContext(ctx).Create(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create product")
		}

		writeAudit(ctx, c, "product", p.ID, models.AuditActionCreate, nil, toProductResponse(&p),
			fmt.Sprintf("Product created: %s (%s)", p.Name, p.Type))

		return c.Status(fiber.StatusCreated).JSON(toProductResponse(&p))
	}
}

// PUT /api/admin/products/:id
// Type and stock are not editable here; stock goes through the stock endpoint.
func UpdateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		var p models.Product
		if err := database.DB.WithContext(ctx).Preload("Stock", preloadStock).First(&p, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Product not found")
		}
		before := toProductResponse(&p)

		var body UpdateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Name cannot be empty")
			}
			if name != p.Name {
				var dup models.Product
				if err := database.DB.WithContext(ctx).Where("name = ? AND id <> ?", name, p.ID).First(&dup).Error; err == nil {
					return fiber.NewError(fiber.StatusBadRequest, "A product with this name already exists")
				}
			}
			p.Name = name
		}
		if body.Description != nil {
			p.Description = strings.TrimSpace(*body.Description)
		}
		if body.Price != nil {
			if body.Price.IsNegative() {
				return fiber.NewError(fiber.StatusBadRequest, "Price must not be negative")
			}
			p.Price = *body.Price
		}
		if body.LowStockThreshold != nil {
			if *body.LowStockThreshold < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "LowStockThreshold must not be negative")
			}
			p.LowStockThreshold = *body.LowStockThreshold
		}

		if err := database.DB.WithContext(ctx).Model(&p).Updates(map[string]interface{}{
			"name":                p.Name,
			"description":         p.Description,
			"price":               p.Price,
			"low_stock_threshold": p.LowStockThreshold,
		}).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update product")
		}

		after := toProductResponse(&p)
		writeAudit(ctx, c, "product", p.ID, models.AuditActionUpdate, before, after, "Product updated: "+p.Name)
		return c.JSON(after)
	}
}

// DELETE /api/admin/products/:id
// Sales keep their snapshot; stock rows go with the product.
func DeleteProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		var p models.Product
		if err := database.DB.WithContext(ctx).Preload("Stock", preloadStock).First(&p, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Product not found")
		}

		err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("product_id = ?", p.ID).Delete(&models.ProductStock{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.Product{}, p.ID).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not delete product")
		}

		writeAudit(ctx, c, "product", p.ID, models.AuditActionDelete, toProductResponse(&p), nil, "Product deleted: "+p.Name)
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func writeAudit(ctx context.Context, c *fiber.Ctx, entity string, id uint, action models.AuditAction, before, after any, desc string) {
	who, _ := auth.CurrentIdentity(c)
	err := audit.WriteLog(ctx, audit.LogOptions{
		UserID:      who.UserID,
		UserName:    who.Name,
		EntityType:  entity,
		EntityID:    id,
		Action:      action,
		Description: desc,
		Before:      before,
		After:       after,
	})
	if err != nil {
		zap.S().Warnw("audit log write failed", "entity", entity, "id", id, "error", err)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

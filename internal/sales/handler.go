package sales

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gym-backend/internal/audit"
	"gym-backend/internal/auth"
	"gym-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

const IdempotencyHeader = "Idempotency-Key"

// AuditWriter persists audit rows; failures are logged, never returned to
// the client.
type AuditWriter interface {
	WriteLog(ctx context.Context, opts audit.LogOptions) error
}

type Handler struct {
	Recorder *Recorder
	Audit    AuditWriter
}

type CreateSaleRequest struct {
	ProductID any     `json:"productId"` // number or numeric string
	Quantity  float64 `json:"quantity"`
	Location  string  `json:"location"`
	Notes     string  `json:"notes"`
}

type UpdateSaleRequest struct {
	Quantity *float64        `json:"quantity"`
	Total    *decimal.Decimal `json:"total"`
	Notes    *string          `json:"notes"`
}

type SaleProduct struct {
	ID      uint            `json:"id"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Deleted bool            `json:"deleted"`
}

type SaleUser struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type SaleResponse struct {
	ID          uint            `json:"id"`
	Product     SaleProduct     `json:"product"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
	Location    string          `json:"location"`
	Notes       string          `json:"notes"`
	CreatedBy   SaleUser        `json:"createdBy"`
	Date        string          `json:"date"`
}

// Register mounts the sale routes on an authenticated router.
func (h *Handler) Register(r fiber.Router) {
	r.Post("/sales", h.CreateSaleHandler())
	r.Get("/sales", h.ListSalesHandler())
	r.Get("/sales/:id", h.GetSaleHandler())
	r.Put("/sales/:id", h.UpdateSaleHandler())
	r.Delete("/sales/:id", h.DeleteSaleHandler())
}

func toSaleResponse(s *models.Sale, live *models.Product) SaleResponse {
	p := SaleProduct{ID: s.ProductID, Name: s.ProductName, Price: s.UnitPrice, Deleted: true}
	if live != nil {
		p = SaleProduct{ID: live.ID, Name: live.Name, Price: live.Price}
	}
	return SaleResponse{
		ID:          s.ID,
		Product:     p,
		ProductName: s.ProductName,
		UnitPrice:   s.UnitPrice,
		Quantity:    s.Quantity,
		Total:       s.Total,
		Location:    s.Location,
		Notes:       s.Notes,
		CreatedBy:   SaleUser{ID: s.CreatedBy, Name: s.CreatedByName},
		Date:        s.Date.UTC().Format(time.RFC3339),
	}
}

// POST /api/sales
func (h *Handler) CreateSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := auth.CurrentIdentity(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Not authenticated")
		}

		var body CreateSaleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		productID, err := cast.ToUintE(body.ProductID)
		if err != nil || productID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "productId is required")
		}
		if body.Quantity <= 0 || body.Quantity != math.Trunc(body.Quantity) || body.Quantity > math.MaxInt32 {
			return fiber.NewError(fiber.StatusBadRequest, "quantity must be a positive integer")
		}
		// staff sell from their own gym only
		location := strings.TrimSpace(body.Location)
		if !id.IsAdmin() && id.AssignedGym != "" {
			if location == "" {
				location = id.AssignedGym
			} else if location != id.AssignedGym {
				return fiber.NewError(fiber.StatusForbidden, "Staff can only record sales at their assigned gym")
			}
		}

		ctx := c.UserContext()
		sale, replayed, err := h.Recorder.Create(ctx, Actor{ID: id.UserID, Name: id.Name}, CreateInput{
			ProductID:      productID,
			Quantity:       int(body.Quantity),
			Location:       location,
			Notes:          body.Notes,
			IdempotencyKey: strings.TrimSpace(c.Get(IdempotencyHeader)),
		})
		if err != nil {
			return toHTTPError(err)
		}

		if !replayed {
			h.writeAudit(ctx, id, sale, models.AuditActionCreate, nil, sale,
				fmt.Sprintf("Sale: %s x%d at %s (%s)", sale.ProductName, sale.Quantity, sale.Location, sale.Total.StringFixed(2)))
		}

		return c.Status(fiber.StatusCreated).JSON(h.withLiveProduct(ctx, sale))
	}
}

// GET /api/sales?location=&date_from=&date_to=
// Staff only see their own gym.
func (h *Handler) ListSalesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := auth.CurrentIdentity(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Not authenticated")
		}

		filter := ListFilter{Location: strings.TrimSpace(c.Query("location"))}
		if !id.IsAdmin() {
			filter.Location = id.AssignedGym
		}
		if v := c.Query("date_from"); v != "" {
			d, err := time.Parse("2006-01-02", v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "date_from must be YYYY-MM-DD")
			}
			filter.From = d
		}
		if v := c.Query("date_to"); v != "" {
			d, err := time.Parse("2006-01-02", v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "date_to must be YYYY-MM-DD")
			}
			// through the end of that day
			filter.To = d.Add(24*time.Hour - time.Nanosecond)
		}

		ctx := c.UserContext()
		list, err := h.Recorder.List(ctx, filter)
		if err != nil {
			return toHTTPError(err)
		}
		products, err := h.Recorder.Products(ctx, list)
		if err != nil {
			return toHTTPError(err)
		}

		resp := make([]SaleResponse, 0, len(list))
		for i := range list {
			var live *models.Product
			if p, ok := products[list[i].ProductID]; ok {
				live = &p
			}
			resp = append(resp, toSaleResponse(&list[i], live))
		}
		return c.JSON(resp)
	}
}

// GET /api/sales/:id
func (h *Handler) GetSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saleID, err := parseID(c)
		if err != nil {
			return err
		}
		sale, err := h.visibleSale(c, saleID)
		if err != nil {
			return err
		}
		return c.JSON(h.withLiveProduct(c.UserContext(), sale))
	}
}

// PUT /api/sales/:id
func (h *Handler) UpdateSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saleID, err := parseID(c)
		if err != nil {
			return err
		}

		var body UpdateSaleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		in := UpdateInput{Total: body.Total, Notes: body.Notes}
		if body.Quantity != nil {
			q := *body.Quantity
			if q <= 0 || q != math.Trunc(q) || q > math.MaxInt32 {
				return fiber.NewError(fiber.StatusBadRequest, "quantity must be a positive integer")
			}
			qi := int(q)
			in.Quantity = &qi
		}

		ctx := c.UserContext()
		before, err := h.visibleSale(c, saleID)
		if err != nil {
			return err
		}
		sale, err := h.Recorder.Update(ctx, saleID, in)
		if err != nil {
			return toHTTPError(err)
		}

		if id, ok := auth.CurrentIdentity(c); ok {
			h.writeAudit(ctx, id, sale, models.AuditActionUpdate, before, sale,
				fmt.Sprintf("Sale updated: %s x%d -> x%d", sale.ProductName, before.Quantity, sale.Quantity))
		}
		return c.JSON(h.withLiveProduct(ctx, sale))
	}
}

// DELETE /api/sales/:id
func (h *Handler) DeleteSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saleID, err := parseID(c)
		if err != nil {
			return err
		}

		if _, err := h.visibleSale(c, saleID); err != nil {
			return err
		}

		ctx := c.UserContext()
		sale, err := h.Recorder.Delete(ctx, saleID)
		if err != nil {
			return toHTTPError(err)
		}

		if id, ok := auth.CurrentIdentity(c); ok {
			h.writeAudit(ctx, id, sale, models.AuditActionDelete, sale, nil,
				fmt.Sprintf("Sale deleted: %s x%d at %s", sale.ProductName, sale.Quantity, sale.Location))
		}
		return c.JSON(fiber.Map{"id": sale.ID})
	}
}

// visibleSale loads a sale the caller may see. Staff get a 404 for sales
// recorded at another gym.
func (h *Handler) visibleSale(c *fiber.Ctx, saleID uint) (*models.Sale, error) {
	sale, err := h.Recorder.Get(c.UserContext(), saleID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	if id, ok := auth.CurrentIdentity(c); ok && !id.IsAdmin() && sale.Location != id.AssignedGym {
		return nil, fiber.NewError(fiber.StatusNotFound, "Sale not found")
	}
	return sale, nil
}

func (h *Handler) withLiveProduct(ctx context.Context, s *models.Sale) SaleResponse {
	products, err := h.Recorder.Products(ctx, []models.Sale{*s})
	if err != nil {
		zap.S().Warnw("product lookup for sale response failed", "sale_id", s.ID, "error", err)
		return toSaleResponse(s, nil)
	}
	if p, ok := products[s.ProductID]; ok {
		return toSaleResponse(s, &p)
	}
	return toSaleResponse(s, nil)
}

func (h *Handler) writeAudit(ctx context.Context, id auth.Identity, s *models.Sale, action models.AuditAction, before, after any, desc string) {
	if h.Audit == nil {
		return
	}
	err := h.Audit.WriteLog(ctx, audit.LogOptions{
		Location:    s.Location,
		UserID:      id.UserID,
		UserName:    id.Name,
		EntityType:  "sale",
		EntityID:    s.ID,
		Action:      action,
		Description: desc,
		Before:      before,
		After:       after,
	})
	if err != nil {
		zap.S().Warnw("audit log write failed", "sale_id", s.ID, "error", err)
	}
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := cast.ToUintE(c.Params("id"))
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid id")
	}
	return id, nil
}

// toHTTPError maps domain errors to status codes; anything unknown becomes
// a plain error and is rendered as 500 by the app error handler.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrStockConflict), errors.Is(err, ErrDuplicateRequest):
		return fiber.NewError(fiber.StatusConflict, capitalize(err.Error()))
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, capitalize(err.Error()))
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrOutOfStock),
		errors.Is(err, ErrInsufficientStock):
		return fiber.NewError(fiber.StatusBadRequest, capitalize(err.Error()))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusServiceUnavailable, "Request cancelled")
	}
	return err
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

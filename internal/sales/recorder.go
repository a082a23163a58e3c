package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gym-backend/internal/events"
	"gym-backend/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Actor is the user a sale is attributed to.
type Actor struct {
	ID   uint
	Name string
}

type CreateInput struct {
	ProductID      uint
	Quantity       int
	Location       string
	Notes          string
	IdempotencyKey string
}

// UpdateInput carries only the fields the caller wants to change.
type UpdateInput struct {
	Quantity *int
	Total    *decimal.Decimal
	Notes    *string
}

// IdempotencyStore remembers which sale a client key produced.
//
// Claim returns claimed=true when the caller owns the key and must either
// Complete or Release it. Otherwise saleID is the sale recorded for the key,
// or 0 while the first request is still running.
type IdempotencyStore interface {
	Claim(ctx context.Context, key string) (saleID uint, claimed bool, err error)
	Complete(ctx context.Context, key string, saleID uint) error
	Release(ctx context.Context, key string) error
}

type Recorder struct {
	store           Store
	defaultLocation string
	idem            IdempotencyStore
	publisher       events.Publisher
	now             func() time.Time
}

type Option func(*Recorder)

func WithIdempotency(s IdempotencyStore) Option {
	return func(r *Recorder) { r.idem = s }
}

func WithPublisher(p events.Publisher) Option {
	return func(r *Recorder) { r.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder builds a recorder. defaultLocation is used for service sales
// that name no location.
func NewRecorder(store Store, defaultLocation string, opts ...Option) *Recorder {
	r := &Recorder{
		store:           store,
		defaultLocation: defaultLocation,
		publisher:       events.LogPublisher{},
		now:             time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Create records a sale and, for physical products, takes the units out of
// the stock ledger in the same transaction. replayed is true when the sale
// was returned from an earlier request with the same idempotency key.
func (r *Recorder) Create(ctx context.Context, actor Actor, in CreateInput) (sale *models.Sale, replayed bool, err error) {
	if in.ProductID == 0 {
		return nil, false, fmt.Errorf("%w: productId is required", ErrValidation)
	}
	if in.Quantity <= 0 {
		return nil, false, fmt.Errorf("%w: quantity must be a positive integer", ErrValidation)
	}
	in.Location = strings.TrimSpace(in.Location)

	idemKey := ""
	if r.idem != nil && in.IdempotencyKey != "" {
		idemKey = fmt.Sprintf("%d:%s", actor.ID, in.IdempotencyKey)
		saleID, claimed, err := r.idem.Claim(ctx, idemKey)
		if err != nil {
			// cache outage must not block sales
			zap.S().Warnw("idempotency claim failed", "key", idemKey, "error", err)
			idemKey = ""
		} else if !claimed {
			if saleID == 0 {
				return nil, false, ErrDuplicateRequest
			}
			prev, err := r.store.FindSale(ctx, saleID)
			if err != nil {
				return nil, false, err
			}
			return prev, true, nil
		}
	}

	var (
		created  *models.Sale
		lowStock *events.Envelope
	)
	err = r.store.Transaction(ctx, func(tx Store) error {
		var txErr error
		created, lowStock, txErr = r.create(ctx, tx, actor, in)
		return txErr
	})
	if idemKey != "" {
		if err != nil {
			if relErr := r.idem.Release(ctx, idemKey); relErr != nil {
				zap.S().Warnw("idempotency release failed", "key", idemKey, "error", relErr)
			}
		} else if compErr := r.idem.Complete(ctx, idemKey, created.ID); compErr != nil {
			// a pending key would turn every retry into a duplicate until it expires
			zap.S().Warnw("idempotency complete failed", "key", idemKey, "sale_id", created.ID, "error", compErr)
			if relErr := r.idem.Release(ctx, idemKey); relErr != nil {
				zap.S().Warnw("idempotency release failed", "key", idemKey, "error", relErr)
			}
		}
	}
	if err != nil {
		return nil, false, err
	}

	zap.S().Infow("sale recorded",
		"sale_id", created.ID,
		"product_id", created.ProductID,
		"quantity", created.Quantity,
		"location", created.Location,
		"total", created.Total.StringFixed(2),
	)
	r.publisher.Publish(ctx, events.SaleEvent(events.EventSaleRecorded, created))
	if lowStock != nil {
		r.publisher.Publish(ctx, *lowStock)
	}
	return created, false, nil
}

func (r *Recorder) create(ctx context.Context, tx Store, actor Actor, in CreateInput) (*models.Sale, *events.Envelope, error) {
	product, err := tx.FindProduct(ctx, in.ProductID, true)
	if err != nil {
		return nil, nil, err
	}

	sale := &models.Sale{
		ProductID:     product.ID,
		ProductName:   product.Name,
		UnitPrice:     product.Price,
		Quantity:      in.Quantity,
		Total:         product.Price.Mul(decimal.NewFromInt(int64(in.Quantity))),
		Notes:         strings.TrimSpace(in.Notes),
		CreatedBy:     actor.ID,
		CreatedByName: actor.Name,
		Date:          r.now().UTC(),
	}

	if !product.Type.Valid() {
		return nil, nil, fmt.Errorf("%w: product %d has unknown type %q", ErrInvalidState, product.ID, product.Type)
	}
	if !product.Type.StockTracked() {
		sale.Location = in.Location
		if sale.Location == "" {
			sale.Location = r.defaultLocation
		}
		if err := tx.CreateSale(ctx, sale); err != nil {
			return nil, nil, err
		}
		return sale, nil, nil
	}

	ledger := product.Ledger()
	if err := ledger.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: product %d: %v", ErrInvalidState, product.ID, err)
	}

	location := in.Location
	if location == "" {
		var ok bool
		location, ok = ledger.FirstAvailable()
		if !ok {
			return nil, nil, fmt.Errorf("%w for product %q", ErrOutOfStock, product.Name)
		}
	}
	before := ledger.AvailableAt(location)
	if _, err := ledger.Decrement(location, in.Quantity); err != nil {
		return nil, nil, err
	}

	sale.Location = location
	sale.StockTracked = true
	if err := tx.CreateSale(ctx, sale); err != nil {
		return nil, nil, err
	}
	after, err := tx.AdjustStock(ctx, product.ID, location, -in.Quantity)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			return nil, nil, fmt.Errorf("%w: %w", ErrStockConflict, err)
		}
		return nil, nil, err
	}

	var alert *events.Envelope
	if events.CrossedThreshold(before, after, product.LowStockThreshold) {
		env := events.LowStockEvent(product, location, after)
		alert = &env
	}
	return sale, alert, nil
}

// Update edits quantity, total and notes of a sale. A quantity change on a
// stock-tracked sale is reconciled at the location stored on the sale.
func (r *Recorder) Update(ctx context.Context, id uint, in UpdateInput) (*models.Sale, error) {
	if in.Quantity != nil && *in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be a positive integer", ErrValidation)
	}
	if in.Total != nil && in.Total.IsNegative() {
		return nil, fmt.Errorf("%w: total must not be negative", ErrValidation)
	}

	var (
		updated  *models.Sale
		lowStock *events.Envelope
	)
	err := r.store.Transaction(ctx, func(tx Store) error {
		sale, err := tx.FindSale(ctx, id)
		if err != nil {
			return err
		}

		if in.Quantity != nil && *in.Quantity != sale.Quantity {
			lowStock, err = r.reconcile(ctx, tx, sale, sale.Quantity-*in.Quantity)
			if err != nil {
				return err
			}
			sale.Quantity = *in.Quantity
			if in.Total == nil {
				sale.Total = sale.UnitPrice.Mul(decimal.NewFromInt(int64(sale.Quantity)))
			}
		}
		if in.Total != nil {
			sale.Total = *in.Total
		}
		if in.Notes != nil {
			sale.Notes = strings.TrimSpace(*in.Notes)
		}

		if err := tx.UpdateSale(ctx, sale); err != nil {
			return err
		}
		updated = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.S().Infow("sale updated", "sale_id", updated.ID, "quantity", updated.Quantity, "total", updated.Total.StringFixed(2))
	r.publisher.Publish(ctx, events.SaleEvent(events.EventSaleUpdated, updated))
	if lowStock != nil {
		r.publisher.Publish(ctx, *lowStock)
	}
	return updated, nil
}

// Delete removes a sale and returns its units to the location it was sold
// from. A sale whose product no longer exists is deleted without reversal.
func (r *Recorder) Delete(ctx context.Context, id uint) (*models.Sale, error) {
	var deleted *models.Sale
	err := r.store.Transaction(ctx, func(tx Store) error {
		sale, err := tx.FindSale(ctx, id)
		if err != nil {
			return err
		}
		if _, err := r.reconcile(ctx, tx, sale, sale.Quantity); err != nil {
			return err
		}
		if err := tx.DeleteSale(ctx, sale.ID); err != nil {
			return err
		}
		deleted = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.S().Infow("sale deleted", "sale_id", deleted.ID, "returned", deleted.StockTracked, "location", deleted.Location)
	r.publisher.Publish(ctx, events.SaleEvent(events.EventSaleReversed, deleted))
	return deleted, nil
}

// reconcile returns delta units to the sale's location (negative delta
// takes more). Non-tracked sales and vanished products are skipped. The
// envelope is non-nil when taking units drops the location below the
// product's low-stock threshold.
func (r *Recorder) reconcile(ctx context.Context, tx Store, sale *models.Sale, delta int) (*events.Envelope, error) {
	if !sale.StockTracked || delta == 0 {
		return nil, nil
	}
	product, err := tx.FindProduct(ctx, sale.ProductID, true)
	if errors.Is(err, ErrNotFound) {
		zap.S().Infow("product gone, skipping stock reconciliation", "sale_id", sale.ID, "product_id", sale.ProductID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !product.Type.StockTracked() {
		return nil, nil
	}
	after, err := tx.AdjustStock(ctx, product.ID, sale.Location, delta)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			return nil, fmt.Errorf("%w at %q for this update", ErrInsufficientStock, sale.Location)
		}
		return nil, err
	}
	if delta < 0 && events.CrossedThreshold(after-delta, after, product.LowStockThreshold) {
		env := events.LowStockEvent(product, sale.Location, after)
		return &env, nil
	}
	return nil, nil
}

// List returns sales newest first.
func (r *Recorder) List(ctx context.Context, filter ListFilter) ([]models.Sale, error) {
	return r.store.ListSales(ctx, filter)
}

// Products resolves the live products referenced by sales; deleted products
// are simply absent from the map.
func (r *Recorder) Products(ctx context.Context, sales []models.Sale) (map[uint]models.Product, error) {
	ids := make([]uint, 0, len(sales))
	seen := make(map[uint]struct{}, len(sales))
	for _, s := range sales {
		if _, ok := seen[s.ProductID]; ok {
			continue
		}
		seen[s.ProductID] = struct{}{}
		ids = append(ids, s.ProductID)
	}
	if len(ids) == 0 {
		return map[uint]models.Product{}, nil
	}
	return r.store.ProductsByID(ctx, ids)
}

func (r *Recorder) Get(ctx context.Context, id uint) (*models.Sale, error) {
	return r.store.FindSale(ctx, id)
}

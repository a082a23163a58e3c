package jobs

import (
	"context"
	"fmt"
	"time"

	"gym-backend/internal/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

const (
	FindingNegative = "negative"
	FindingLow      = "low"
)

// StockRow is one ledger entry joined with its product.
type StockRow struct {
	ProductID   uint
	ProductName string
	Location    string
	Quantity    int
	Threshold   int
}

type Finding struct {
	Kind string
	Row  StockRow
}

func classify(rows []StockRow) []Finding {
	var out []Finding
	for _, r := range rows {
		switch {
		case r.Quantity < 0:
			out = append(out, Finding{Kind: FindingNegative, Row: r})
		case r.Threshold > 0 && r.Quantity < r.Threshold:
			out = append(out, Finding{Kind: FindingLow, Row: r})
		}
	}
	return out
}

// StockWatch reports ledger rows that went negative outside the sale flow
// and rows under their product's low stock threshold.
type StockWatch struct {
	db *gorm.DB
}

func NewStockWatch(db *gorm.DB) *StockWatch {
	return &StockWatch{db: db}
}

func (w *StockWatch) Run(ctx context.Context) ([]Finding, error) {
	var rows []StockRow
	err := w.db.WithContext(ctx).
		Table("product_stocks AS ps").
		Select("ps.product_id, p.name AS product_name, ps.location, ps.quantity, p.low_stock_threshold AS threshold").
		Joins("JOIN products p ON p.id = ps.product_id").
		Where("p.type <> ?", models.ProductTypeClass).
		Where("ps.quantity < 0 OR (p.low_stock_threshold > 0 AND ps.quantity < p.low_stock_threshold)").
		Order("p.name, ps.position").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("scan stock: %w", err)
	}

	findings := classify(rows)
	for _, f := range findings {
		fields := []interface{}{
			"product_id", f.Row.ProductID,
			"product", f.Row.ProductName,
			"location", f.Row.Location,
			"quantity", f.Row.Quantity,
		}
		if f.Kind == FindingNegative {
			zap.S().Errorw("stock conflict: negative quantity", fields...)
			continue
		}
		zap.S().Warnw("stock below threshold", append(fields, "threshold", f.Row.Threshold)...)
	}
	return findings, nil
}

// Start schedules the stock watch and starts the scheduler. The caller
// stops it.
func Start(db *gorm.DB, spec, timezone string) (*cron.Cron, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.Local
	}
	sched := cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	watch := NewStockWatch(db)
	_, err = sched.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				zap.S().Error(r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		findings, err := watch.Run(ctx)
		if err != nil {
			zap.S().Errorf("stock watch error %s", err.Error())
			return
		}
		zap.S().Debugw("stock watch done", "findings", len(findings))
	})
	if err != nil {
		return nil, fmt.Errorf("schedule stock watch %q: %w", spec, err)
	}

	sched.Start()
	return sched, nil
}

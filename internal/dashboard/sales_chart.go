package dashboard

import (
	"sort"
	"strings"
	"time"

	"gym-backend/internal/auth"
	"gym-backend/internal/database"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

type SalesChartPoint struct {
	Label    string          `json:"label"` // day, week start or month start
	Products decimal.Decimal `json:"products"`
	Classes  decimal.Decimal `json:"classes"`
	Total    decimal.Decimal `json:"total"`
	Units    int             `json:"units"`
	Sales    int             `json:"sales"`
}

type SalesChartTotals struct {
	Products decimal.Decimal `json:"products"`
	Classes  decimal.Decimal `json:"classes"`
	Total    decimal.Decimal `json:"total"`
	Units    int             `json:"units"`
	Sales    int             `json:"sales"`
}

type SalesChartResponse struct {
	Location    string            `json:"location"` // empty means every location
	Period      string            `json:"period"`   // daily | weekly | monthly
	From        string            `json:"from"`
	To          string            `json:"to"`
	Points      []SalesChartPoint `json:"points"`
	GrandTotals SalesChartTotals  `json:"grand_totals"`
}

type chartRow struct {
	Bucket       time.Time       `gorm:"column:bucket"`
	StockTracked bool            `gorm:"column:stock_tracked"`
	Total        decimal.Decimal `gorm:"column:total"`
	Units        int             `gorm:"column:units"`
	Sales        int             `gorm:"column:sales"`
}

var bucketExpr = map[string]string{
	"daily":   "date_trunc('day', date)",
	"weekly":  "date_trunc('week', date)",
	"monthly": "date_trunc('month', date)",
}

// chartRange returns the normalized period and the [start, end) window
// covering count buckets up to and including the one containing now.
func chartRange(period string, count int, now time.Time) (string, time.Time, time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch period {
	case "weekly":
		if count <= 0 {
			count = 8
		}
		// date_trunc('week') starts on Monday
		offset := (int(today.Weekday()) + 6) % 7
		weekStart := today.AddDate(0, 0, -offset)
		return period, weekStart.AddDate(0, 0, -7*(count-1)), weekStart.AddDate(0, 0, 7)
	case "monthly":
		if count <= 0 {
			count = 12
		}
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return period, monthStart.AddDate(0, -(count - 1), 0), monthStart.AddDate(0, 1, 0)
	default:
		if count <= 0 {
			count = 7
		}
		return "daily", today.AddDate(0, 0, -(count - 1)), today.AddDate(0, 0, 1)
	}
}

func aggregate(rows []chartRow) ([]SalesChartPoint, SalesChartTotals) {
	buckets := make(map[time.Time]*SalesChartPoint)
	for _, r := range rows {
		p, ok := buckets[r.Bucket]
		if !ok {
			p = &SalesChartPoint{Label: r.Bucket.Format("2006-01-02")}
			buckets[r.Bucket] = p
		}
		if r.StockTracked {
			p.Products = p.Products.Add(r.Total)
		} else {
			p.Classes = p.Classes.Add(r.Total)
		}
		p.Units += r.Units
		p.Sales += r.Sales
	}

	keys := make([]time.Time, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	points := make([]SalesChartPoint, 0, len(keys))
	var grand SalesChartTotals
	for _, k := range keys {
		p := buckets[k]
		p.Total = p.Products.Add(p.Classes)
		points = append(points, *p)

		grand.Products = grand.Products.Add(p.Products)
		grand.Classes = grand.Classes.Add(p.Classes)
		grand.Total = grand.Total.Add(p.Total)
		grand.Units += p.Units
		grand.Sales += p.Sales
	}
	return points, grand
}

// GET /api/dashboard/sales-chart?period=daily&count=7&location=Gym%20A
// Staff always get their own gym.
func SalesChartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := auth.CurrentIdentity(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Not authenticated")
		}
		location := strings.TrimSpace(c.Query("location"))
		if !who.IsAdmin() {
			location = who.AssignedGym
		}

		count := 0
		if v := c.Query("count"); v != "" {
			n, err := cast.ToIntE(v)
			if err != nil || n <= 0 || n > 366 {
				return fiber.NewError(fiber.StatusBadRequest, "count must be between 1 and 366")
			}
			count = n
		}
		period, start, end := chartRange(c.Query("period", "daily"), count, time.Now())

		dbq := database.DB.WithContext(c.UserContext()).
			Table("sales").
			Select(bucketExpr[period]+" AS bucket, stock_tracked, SUM(total) AS total, SUM(quantity) AS units, COUNT(*) AS sales").
			Where("date >= ? AND date < ?", start, end)
		if location != "" {
			dbq = dbq.Where("location = ?", location)
		}

		var rows []chartRow
		if err := dbq.Group("bucket, stock_tracked").Order("bucket ASC").Scan(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not aggregate sales")
		}

		points, grand := aggregate(rows)
		return c.JSON(SalesChartResponse{
			Location:    location,
			Period:      period,
			From:        start.Format("2006-01-02"),
			To:          end.AddDate(0, 0, -1).Format("2006-01-02"),
			Points:      points,
			GrandTotals: grand,
		})
	}
}

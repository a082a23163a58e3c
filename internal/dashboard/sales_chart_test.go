package dashboard

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChartRange(t *testing.T) {
	// Thursday
	now := time.Date(2026, 10, 15, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		period     string
		count      int
		wantPeriod string
		from, to   string
	}{
		{"daily", 0, "daily", "2026-10-09", "2026-10-16"},
		{"daily", 1, "daily", "2026-10-15", "2026-10-16"},
		{"bogus", 3, "daily", "2026-10-13", "2026-10-16"},
		{"weekly", 2, "weekly", "2026-10-05", "2026-10-19"},
		{"monthly", 0, "monthly", "2025-11-01", "2026-11-01"},
	}
	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			p, start, end := chartRange(tt.period, tt.count, now)
			assert.Equal(t, tt.wantPeriod, p)
			assert.Equal(t, tt.from, start.Format("2006-01-02"))
			assert.Equal(t, tt.to, end.Format("2006-01-02"))
		})
	}
}

func TestAggregate(t *testing.T) {
	d1 := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	rows := []chartRow{
		{Bucket: d2, StockTracked: false, Total: decimal.NewFromInt(50), Units: 1, Sales: 1},
		{Bucket: d1, StockTracked: true, Total: decimal.RequireFromString("25.50"), Units: 3, Sales: 2},
		{Bucket: d2, StockTracked: true, Total: decimal.NewFromInt(10), Units: 1, Sales: 1},
	}

	points, grand := aggregate(rows)
	require.Len(t, points, 2)
	assert.Equal(t, "2026-10-14", points[0].Label)
	assert.True(t, points[1].Total.Equal(decimal.NewFromInt(60)))
	assert.True(t, points[1].Classes.Equal(decimal.NewFromInt(50)))
	assert.True(t, grand.Total.Equal(decimal.RequireFromString("85.50")))
	assert.Equal(t, 5, grand.Units)
	assert.Equal(t, 4, grand.Sales)
}

package events

import (
	"encoding/json"
	"testing"

	"gym-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaleEvent(t *testing.T) {
	s := &models.Sale{ID: 3, ProductID: 9, ProductName: "Agua", Quantity: 2, Total: decimal.NewFromInt(20), Location: "UAN"}

	env := SaleEvent(EventSaleRecorded, s)
	assert.Equal(t, EventSaleRecorded, env.EventType)
	assert.Equal(t, "product:9", env.Key)
	assert.NotEmpty(t, env.EventID)

	b, err := encode(env)
	require.NoError(t, err)

	var decoded struct {
		EventType string      `json:"event_type"`
		Payload   SalePayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, uint(3), decoded.Payload.SaleID)
	assert.True(t, decimal.NewFromInt(20).Equal(decoded.Payload.Total))
}

func TestCrossedThreshold(t *testing.T) {
	assert.True(t, CrossedThreshold(5, 2, 3))
	assert.False(t, CrossedThreshold(2, 1, 3), "already below")
	assert.False(t, CrossedThreshold(5, 4, 3))
	assert.False(t, CrossedThreshold(5, 0, 0), "disabled")
}

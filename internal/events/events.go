// Package events publishes sale and stock notifications after the database
// write has committed. Publishing is best effort and never fails a request.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"gym-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	EventSaleRecorded = "SaleRecorded"
	EventSaleUpdated  = "SaleUpdated"
	EventSaleReversed = "SaleReversed"
	EventLowStock     = "LowStock"
)

const producerName = "gym-backend"

type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	Key          string          `json:"-"` // partition key
	Payload      json.RawMessage `json:"payload"`
}

type SalePayload struct {
	SaleID      uint            `json:"sale_id"`
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
	Location    string          `json:"location"`
	CreatedBy   uint            `json:"created_by"`
}

type LowStockPayload struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	Location    string `json:"location"`
	Available   int    `json:"available"`
	Threshold   int    `json:"threshold"`
}

// Publisher delivers envelopes. Implementations must not block the caller
// on broker I/O.
type Publisher interface {
	Publish(ctx context.Context, env Envelope)
}

func newEnvelope(eventType, key string, payload any) Envelope {
	b, err := json.Marshal(payload)
	if err != nil {
		// payload types above always marshal
		zap.S().Errorw("event payload marshal failed", "type", eventType, "error", err)
	}
	return Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     producerName,
		Key:          key,
		Payload:      b,
	}
}

// SaleEvent builds a sale envelope keyed by product so one product's events
// stay ordered.
func SaleEvent(eventType string, s *models.Sale) Envelope {
	return newEnvelope(eventType, productKey(s.ProductID), SalePayload{
		SaleID:      s.ID,
		ProductID:   s.ProductID,
		ProductName: s.ProductName,
		Quantity:    s.Quantity,
		Total:       s.Total,
		Location:    s.Location,
		CreatedBy:   s.CreatedBy,
	})
}

func LowStockEvent(p *models.Product, location string, available int) Envelope {
	return newEnvelope(EventLowStock, productKey(p.ID), LowStockPayload{
		ProductID:   p.ID,
		ProductName: p.Name,
		Location:    location,
		Available:   available,
		Threshold:   p.LowStockThreshold,
	})
}

// CrossedThreshold reports whether a move from before to after went below
// threshold. A zero threshold disables alerts.
func CrossedThreshold(before, after, threshold int) bool {
	return threshold > 0 && after < threshold && before >= threshold
}

func productKey(id uint) string {
	return "product:" + strconv.FormatUint(uint64(id), 10)
}

// LogPublisher only logs; used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, env Envelope) {
	zap.S().Debugw("event", "type", env.EventType, "id", env.EventID, "payload", string(env.Payload))
}

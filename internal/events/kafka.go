package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisher buffers envelopes and writes them from one goroutine.
type KafkaPublisher struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewKafkaPublisher(brokers []string, topic string, buf int) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the writer loop until Close drains the inbox.
func (p *KafkaPublisher) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.w.WriteMessages(ctx, m); err != nil {
				zap.S().Errorw("kafka write failed", "key", string(m.Key), "error", err)
			}
			cancel()
		}
		if err := p.w.Close(); err != nil {
			zap.S().Warnw("kafka writer close", "error", err)
		}
	}()
}

func (p *KafkaPublisher) Publish(_ context.Context, env Envelope) {
	b, err := encode(env)
	if err != nil {
		zap.S().Errorw("event encode failed", "type", env.EventType, "error", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(env.Key),
		Value: b,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(env.EventType)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	}
	select {
	case p.inbox <- msg:
	default:
		zap.S().Warnw("event dropped, publisher inbox full", "type", env.EventType, "id", env.EventID)
	}
}

// Close stops accepting events and waits until buffered ones are flushed.
func (p *KafkaPublisher) Close() {
	close(p.inbox)
	<-p.closeCh
}

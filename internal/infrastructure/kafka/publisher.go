// Package kafka exports domain events to a Kafka topic as JSON envelopes.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domoutbox "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/outbox"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter abstracts kafka.Writer for tests.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Envelope is the value written for every event.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

type Publisher struct {
	writer messageWriter
	source string
	now    func() time.Time
}

type WriterConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// NewPublisher writes to cfg.Topic, keyed by aggregate id so one order's
// events stay in one partition.
func NewPublisher(cfg WriterConfig, source string) *Publisher {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewPublisherWith(&kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		WriteTimeout: timeout,
		RequiredAcks: kafkago.RequireAll,
	}, source)
}

// NewPublisherWith is for tests to inject a fake writer.
func NewPublisherWith(w messageWriter, source string) *Publisher {
	return &Publisher{writer: w, source: source, now: time.Now}
}

func (p *Publisher) Publish(ctx context.Context, e domoutbox.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka: marshal %s: %w", e.EventName(), err)
	}
	env := Envelope{
		ID:         uuid.NewString(),
		Type:       e.EventName(),
		Key:        domoutbox.KeyOf(e),
		OccurredAt: p.now().UTC(),
		Data:       data,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("kafka: marshal envelope: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(env.Key),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(env.Type)},
			{Key: "event_id", Value: []byte(env.ID)},
			{Key: "source", Value: []byte(p.source)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", env.Type, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

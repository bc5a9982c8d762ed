// Package rabbitmq hands confirmation mail to a mailer service through an
// AMQP exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domnotification "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/notification"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

var _ domnotification.Sender = (*MailPublisher)(nil)

const (
	DefaultExchange   = "mail"
	DefaultRoutingKey = "mail.send"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type MailPublisher struct {
	ch         channel
	exchange   string
	routingKey string
}

// NewMailPublisher declares the durable topic exchange once at startup.
func NewMailPublisher(ch channel, exchange, routingKey string) (*MailPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if routingKey == "" {
		routingKey = DefaultRoutingKey
	}
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("rabbitmq: declare exchange %s: %w", exchange, err)
	}
	return &MailPublisher{ch: ch, exchange: exchange, routingKey: routingKey}, nil
}

func (p *MailPublisher) Send(ctx context.Context, msg domnotification.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal mail: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         "mail.send",
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, pub); err != nil {
		return fmt.Errorf("%w: %w", domnotification.ErrSenderUnavailable, err)
	}
	return nil
}

func (p *MailPublisher) Close() error {
	return p.ch.Close()
}

// Dial opens a connection and one channel. Callers close the connection on shutdown.
func Dial(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	return conn, ch, nil
}

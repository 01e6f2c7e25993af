// Package rabbitmq mirrors every dispatch event onto a topic exchange so
// reporting and billing consumers can follow orders without polling.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"courierhub/internal/core/domain/model/notification"

	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultExchange = "courierhub.events"

var ErrPublisherClosed = errors.New("rabbitmq: audit publisher is closed")

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AuditPublisher implements ports.AuditSink.
type AuditPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       Channel
	exchange string
	timeout  time.Duration
	logger   *slog.Logger
}

// Dial connects to url and declares the exchange.
func Dial(url, exchange string, logger *slog.Logger) (*AuditPublisher, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Dial:      amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	p, err := NewAuditPublisher(ch, exchange, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func NewAuditPublisher(ch Channel, exchange string, logger *slog.Logger) (*AuditPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: declare exchange %s: %w", exchange, err)
	}
	return &AuditPublisher{
		ch:       ch,
		exchange: exchange,
		timeout:  5 * time.Second,
		logger:   logger.With("component", "audit_publisher"),
	}, nil
}

// RoutingKey is "<recipient kind>.<event type>", lower case, for example
// "courier.new_order".
func RoutingKey(event notification.Event) string {
	return string(event.Recipient.Kind) + "." + strings.ToLower(string(event.Type))
}

func (p *AuditPublisher) Publish(ctx context.Context, event notification.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq: encode event %s: %w", event.ID, err)
	}

	p.mu.Lock()
	ch := p.ch
	p.mu.Unlock()
	if ch == nil {
		return ErrPublisherClosed
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, p.exchange, RoutingKey(event), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    event.ID.String(),
		Type:         string(event.Type),
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *AuditPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
		p.ch = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}

// Package events publishes payment lifecycle events to RabbitMQ so that the
// companion bot can react to settled payments without polling the database.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"telegram-storefront/internal/domain/ports/adapter"
)

const RoutingKeyPaymentSucceeded = "payment.succeeded"

var (
	_ adapter.EventPublisher = (*AMQPPublisher)(nil)
	_ adapter.EventPublisher = (*LogPublisher)(nil)
)

// AMQPPublisher publishes JSON events to a durable topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	log      *zerolog.Logger
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewAMQPPublisher dials the broker and declares the exchange once.
func NewAMQPPublisher(amqpURL, exchange string, logger *zerolog.Logger) (*AMQPPublisher, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp091.Dial(cleanURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	l := logger.With().Str("component", "amqp_publisher").Str("exchange", exchange).Logger()
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange, log: &l}, nil
}

func (p *AMQPPublisher) PublishPaymentSucceeded(ctx context.Context, ev adapter.PaymentSucceededEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, p.exchange, RoutingKeyPaymentSucceeded, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    ev.InvoiceID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return err
	}
	p.log.Debug().Str("invoice_id", ev.InvoiceID).Msg("published payment.succeeded")
	return nil
}

func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// LogPublisher stands in when no broker is configured.
type LogPublisher struct {
	log *zerolog.Logger
}

func NewLogPublisher(logger *zerolog.Logger) *LogPublisher {
	l := logger.With().Str("component", "event_publisher").Logger()
	return &LogPublisher{log: &l}
}

func (p *LogPublisher) PublishPaymentSucceeded(ctx context.Context, ev adapter.PaymentSucceededEvent) error {
	p.log.Info().
		Str("invoice_id", ev.InvoiceID).
		Int64("user_id", ev.UserID).
		Str("payment_type", ev.PaymentType).
		Str("outcome", ev.Outcome).
		Msg("payment.succeeded (no broker configured)")
	return nil
}

func (p *LogPublisher) Close() {}

package notifier

import (
	"context"
	"fmt"
	"sync"

	"advert-service/internal/infrastructure/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
)

const ConfirmedRoutingKey = "advert.confirmed"

// channel is the subset of *amqp.Channel the notifier uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitMQNotifier struct {
	conn     *amqp.Connection
	mu       sync.Mutex // amqp channels are not safe for concurrent publishing
	ch       channel
	exchange string
	instrumented
}

// NewRabbitMQNotifier dials url once and declares a durable topic exchange.
func NewRabbitMQNotifier(url, exchange string, m *metrics.NotifierMetrics) (*RabbitMQNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	n := newRabbitMQNotifier(ch, exchange, m)
	n.conn = conn
	return n, nil
}

func newRabbitMQNotifier(ch channel, exchange string, m *metrics.NotifierMetrics) *RabbitMQNotifier {
	return &RabbitMQNotifier{
		ch:       ch,
		exchange: exchange,
		instrumented: instrumented{
			backend: "rabbitmq",
			metrics: m,
			tracer:  otel.Tracer("advert-service/notifier"),
		},
	}
}

func (n *RabbitMQNotifier) PublishConfirmed(ctx context.Context, id, title string) error {
	return n.publish(ctx, id, func(ctx context.Context) error {
		body, err := encodeConfirmed(id, title)
		if err != nil {
			return err
		}

		n.mu.Lock()
		defer n.mu.Unlock()

		err = n.ch.PublishWithContext(ctx, n.exchange, ConfirmedRoutingKey, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    id,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish to exchange %s: %w", n.exchange, err)
		}
		return nil
	})
}

func (n *RabbitMQNotifier) Close() error {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"drinktea/internal/domain"
	"drinktea/internal/infra/metrics"
)

// RabbitPublisher рассылает принятые события и оценки в topic exchange RabbitMQ.
// Ключи маршрутизации: event.<type> и feedback.<action>.
type RabbitPublisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch *amqp.Channel
}

var _ domain.EventPublisher = (*RabbitPublisher)(nil)

// NewRabbitPublisher подключается к брокеру и объявляет exchange.
func NewRabbitPublisher(amqpURL, exchange string) (*RabbitPublisher, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if exchange == "" {
		return nil, errors.New("exchange name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &RabbitPublisher{conn: conn, exchange: exchange, ch: ch}, nil
}

// PublishEvent публикует событие просмотра.
func (p *RabbitPublisher) PublishEvent(ctx context.Context, ev domain.Event) error {
	return p.publish(ctx, "event."+string(ev.Type), ev)
}

// PublishFeedback публикует принятую оценку.
func (p *RabbitPublisher) PublishFeedback(ctx context.Context, fb domain.Feedback) error {
	return p.publish(ctx, "feedback."+string(fb.Action), fb)
}

func (p *RabbitPublisher) publish(ctx context.Context, routingKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	start := time.Now()
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    start.UTC(),
		Body:         body,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", routingKey, start, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	return p.conn.Close()
}

// NopPublisher используется, когда брокер не настроен.
type NopPublisher struct{}

var _ domain.EventPublisher = NopPublisher{}

func (NopPublisher) PublishEvent(context.Context, domain.Event) error       { return nil }
func (NopPublisher) PublishFeedback(context.Context, domain.Feedback) error { return nil }

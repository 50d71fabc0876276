package seatevents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"claystudio/internal/domain"
)

const (
	ExchangeName = "events"
	ExchangeKind = "topic"

	// RoutingKeySeatsChanged is the routing key of every seat availability message.
	RoutingKeySeatsChanged = "event.seats_changed"
)

// Config holds configuration for creating a seat change publisher.
type Config struct {
	Provider    string
	RabbitMQURL string
}

// Publisher announces committed seat changes and releases its connection on Close.
type Publisher interface {
	domain.SeatsChangePublisher
	Close() error
}

// NewPublisher creates a publisher from config. Provider "rabbitmq" publishes to a topic
// exchange; "noop" or unknown discards changes.
func NewPublisher(config Config) (Publisher, error) {
	switch config.Provider {
	case "rabbitmq":
		conn, err := amqp.Dial(config.RabbitMQURL)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq dial: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("rabbitmq channel: %w", err)
		}
		if err := ch.ExchangeDeclare(ExchangeName, ExchangeKind, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
		}
		return &rabbitPublisher{channel: ch, conn: conn}, nil
	case "noop":
		return noopPublisher{}, nil
	default:
		log.Printf("[SEATEVENTS] Unknown seat events provider %q, using noop", config.Provider)
		return noopPublisher{}, nil
	}
}

// amqpChannel is the subset of *amqp.Channel used for publishing.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type rabbitPublisher struct {
	mu      sync.Mutex
	channel amqpChannel
	conn    *amqp.Connection
}

func (p *rabbitPublisher) PublishSeatsChanged(ctx context.Context, change *domain.SeatsChange) error {
	body, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal seats change: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, ExchangeName, RoutingKeySeatsChanged, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    change.OccurredAt,
		Type:         change.Reason,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish seats change: %w", err)
	}
	return nil
}

func (p *rabbitPublisher) Close() error {
	var err error
	if p.channel != nil {
		err = p.channel.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

type noopPublisher struct{}

func (noopPublisher) PublishSeatsChanged(context.Context, *domain.SeatsChange) error { return nil }

func (noopPublisher) Close() error { return nil }

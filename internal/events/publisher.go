package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/reewild/foodprint/internal/carbon"
)

const (
	exchangeName = "foodprint.topic"
	routingKey   = "estimate.completed"
)

// EstimateCompletedPublisher publishes estimate.completed events.
type EstimateCompletedPublisher struct {
	conn *amqp.Connection
}

type estimateCompletedEvent struct {
	ID                uuid.UUID `json:"id"`
	Timestamp         string    `json:"timestamp"`
	Dish              string    `json:"dish"`
	EstimatedCarbonKg float64   `json:"estimated_carbon_kg"`
	Source            string    `json:"source"` // dish_name or image
}

// NewEstimateCompletedPublisher creates a RabbitMQ publisher and ensures the
// shared topic exchange exists.
func NewEstimateCompletedPublisher(rabbitmqURL string) (*EstimateCompletedPublisher, error) {
	conn, err := amqp.Dial(rabbitmqURL)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchangeName, err)
	}

	return &EstimateCompletedPublisher{conn: conn}, nil
}

// PublishEstimateCompleted announces a finished estimate. Callers only
// publish successful results; fallbacks are never announced.
func (p *EstimateCompletedPublisher) PublishEstimateCompleted(
	ctx context.Context,
	source string,
	est carbon.Estimate,
) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	event := estimateCompletedEvent{
		ID:                uuid.New(),
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		Dish:              est.Dish,
		EstimatedCarbonKg: est.EstimatedCarbonKg,
		Source:            source,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal estimate.completed event: %w", err)
	}

	if err := ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish estimate.completed: %w", err)
	}

	return nil
}

// Close closes the RabbitMQ connection.
func (p *EstimateCompletedPublisher) Close() error {
	return p.conn.Close()
}

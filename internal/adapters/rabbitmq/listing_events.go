package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/vibtellect/immo-scraper/internal/core/domain"
	"github.com/vibtellect/immo-scraper/pkg/rabbitmq/rabbitmq_producer"
)

// RabbitMQListingEventsAdapter реализует ListingEventsPort: каждое новое
// объявление публикуется отдельным событием в обменник, откуда его
// забирают внешние потребители (аналитика, экспорт).
type RabbitMQListingEventsAdapter struct {
	producer   *rabbitmq_producer.Publisher
	routingKey string
}

// NewRabbitMQListingEventsAdapter создает адаптер событий.
// producer – уже инициализированный rabbitmq_producer.Publisher.
func NewRabbitMQListingEventsAdapter(producer *rabbitmq_producer.Publisher, routingKey string) (*RabbitMQListingEventsAdapter, error) {
	if producer == nil {
		return nil, fmt.Errorf("rabbitmq adapter: producer cannot be nil")
	}
	if routingKey == "" {
		return nil, fmt.Errorf("rabbitmq adapter: routingKey cannot be empty")
	}
	return &RabbitMQListingEventsAdapter{
		producer:   producer,
		routingKey: routingKey,
	}, nil
}

// PublishNewListing публикует одно объявление как JSON-событие.
func (a *RabbitMQListingEventsAdapter) PublishNewListing(ctx context.Context, listing domain.Listing) error {
	body, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("rabbitmq adapter: failed to marshal listing %s: %w", listing.ID, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent, // события переживают перезапуск брокера
		Timestamp:    time.Now(),
	}

	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.producer.Publish(publishCtx, a.routingKey, msg); err != nil {
		return fmt.Errorf("rabbitmq adapter: failed to publish listing %s: %w", listing.ID, err)
	}
	log.Printf("RabbitMQAdapter: Published new listing event: %s\n", listing.ID)
	return nil
}

package rabbitmq_producer

import (
	"context"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/vibtellect/immo-scraper/pkg/rabbitmq/rabbitmq_common"
)

// PublisherConfig конфигурация производителя.
type PublisherConfig struct {
	rabbitmq_common.Config
	ExchangeName       string // имя обменника для публикации
	ExchangeType       string // direct, fanout, topic, headers
	DurableExchange    bool
	AutoDeleteExchange bool
	InternalExchange   bool
	ExchangeArgs       amqp.Table

	// Если false, производитель полагается на то, что обменник уже
	// объявлен кем-то другим.
	DeclareExchangeIfMissing bool
}

// Publisher управляет соединением и каналом публикации.
type Publisher struct {
	config     PublisherConfig
	connection *amqp.Connection
	channel    *amqp.Channel
}

// NewPublisher подключается к брокеру и, при необходимости, объявляет
// обменник.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid base config: %w", err)
	}
	if cfg.DeclareExchangeIfMissing && (cfg.ExchangeName == "") != (cfg.ExchangeType == "") {
		return nil, fmt.Errorf("producer: exchange name and type must be set together when DeclareExchangeIfMissing is true")
	}

	p := &Publisher{config: cfg}

	conn, err := amqp.Dial(p.config.URL)
	if err != nil {
		return nil, fmt.Errorf("producer: failed to dial RabbitMQ: %w", err)
	}
	p.connection = conn

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("producer: failed to open a channel: %w", err)
	}
	p.channel = ch

	if p.config.DeclareExchangeIfMissing && p.config.ExchangeName != "" {
		log.Printf("Producer: Declaring exchange '%s' (type: %s, durable: %v)\n",
			p.config.ExchangeName, p.config.ExchangeType, p.config.DurableExchange)
		err = ch.ExchangeDeclare(
			p.config.ExchangeName,
			p.config.ExchangeType,
			p.config.DurableExchange,
			p.config.AutoDeleteExchange,
			p.config.InternalExchange,
			false, // no-wait
			p.config.ExchangeArgs,
		)
		if err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("producer: failed to declare exchange '%s': %w", p.config.ExchangeName, err)
		}
	}

	log.Println("Producer: Successfully connected and channel opened.")
	return p, nil
}

// Publish публикует сообщение с данным ключом маршрутизации.
func (p *Publisher) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	if p.channel == nil || p.connection == nil || p.connection.IsClosed() {
		return fmt.Errorf("producer: not connected or channel/connection is closed")
	}

	err := p.channel.PublishWithContext(
		ctx,
		p.config.ExchangeName, // пустая строка – default exchange
		routingKey,
		false, // mandatory
		false, // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("producer: failed to publish message: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (p *Publisher) Close() error {
	var firstErr error

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			log.Printf("Producer: Error closing channel: %v\n", err)
			firstErr = err
		}
		p.channel = nil
	}
	if p.connection != nil {
		if err := p.connection.Close(); err != nil {
			log.Printf("Producer: Error closing connection: %v\n", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		p.connection = nil
	}
	log.Println("Producer: Closed.")
	return firstErr
}

// Package amqp connects the service to RabbitMQ for purchase events.
package amqp

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	applog "labstock/internal/log"
)

const routingKeyPurchasesImported = "purchases.imported"

type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
	logger   *applog.Logger
}

// NewClient dials RabbitMQ and declares the exchange and queue used for
// purchase import events.
func NewClient(url, exchange, queue string, logger *applog.Logger) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}

	q, err := channel.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring queue %s: %w", queue, err)
	}

	if err := channel.QueueBind(q.Name, routingKeyPurchasesImported, exchange, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("binding queue %s: %w", queue, err)
	}

	return &Client{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		queue:    queue,
		logger:   logger.WithComponent(applog.ComponentAMQP),
	}, nil
}

// PublishPurchasesImported emits an event for a batch of stored purchases.
func (c *Client) PublishPurchasesImported(ctx context.Context, msg *PurchaseImportedMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	err = c.channel.PublishWithContext(ctx,
		c.exchange,
		routingKeyPurchasesImported,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publishing purchases imported: %w", err)
	}

	c.logger.Debug("published purchases imported event",
		applog.FieldOrgID, msg.OrgID,
		"record_count", len(msg.IDs),
	)
	return nil
}

// ConsumePurchaseImports delivers import events to handler until ctx is
// cancelled. Messages are acked on success and requeued once on failure.
func (c *Client) ConsumePurchaseImports(ctx context.Context, handler func(context.Context, *PurchaseImportedMessage) error) error {
	deliveries, err := c.channel.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("starting consumer on %s: %w", c.queue, err)
	}

	c.logger.Info("consuming purchase import events", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, delivery amqp.Delivery, handler func(context.Context, *PurchaseImportedMessage) error) {
	msg, err := PurchaseImportedFromJSON(delivery.Body)
	if err != nil {
		c.logger.Error("discarding malformed message", applog.FieldError, err)
		delivery.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		c.logger.Error("handler failed, requeueing",
			applog.FieldOrgID, msg.OrgID,
			applog.FieldError, err,
		)
		delivery.Nack(false, !delivery.Redelivered)
		return
	}

	delivery.Ack(false)
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

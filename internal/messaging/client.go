package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/maraichr/docstream/internal/config"
)

// Client is a thin session over a durable topic exchange. One client owns
// one connection and one channel; per-message acknowledgement belongs to the
// worker that received the delivery.
type Client struct {
	cfg    config.RabbitConfig
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	stopped bool
}

func NewClient(cfg config.RabbitConfig, logger *slog.Logger) *Client {
	return &Client{cfg: cfg, logger: logger}
}

// Connect dials the broker, declares the durable topic exchange, and bounds
// in-flight deliveries to prefetch. Callers treat failure as fatal; there is
// no retry at this layer.
func (c *Client) Connect(prefetch int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp.Dial(c.cfg.URL())
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("declare exchange %s: %w", c.cfg.Exchange, err)
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("set prefetch %d: %w", prefetch, err)
	}

	c.conn = conn
	c.ch = ch
	c.stopped = false
	return nil
}

// DeclareQueue declares a durable queue and binds it to the exchange with
// routingKey. Safe to call repeatedly.
func (c *Client) DeclareQueue(name, routingKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch == nil {
		return fmt.Errorf("declare queue %s: not connected", name)
	}

	if _, err := c.ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	if err := c.ch.QueueBind(name, routingKey, c.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", name, routingKey, err)
	}
	return nil
}

// Consume blocks delivering messages from queue to fn until ctx is canceled
// or Stop closes the channel. In-flight processing is allowed to finish; the
// loop exits between deliveries.
func (c *Client) Consume(ctx context.Context, queue string, fn func(Delivery)) error {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("consume %s: not connected", queue)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("consume %s: channel closed", queue)
			}
			fn(wrapDelivery(d))
		}
	}
}

// Publish serializes payload to JSON and publishes it with persistent
// delivery marking.
func (c *Client) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", routingKey, err)
	}
	return c.PublishRaw(ctx, routingKey, body, nil)
}

// PublishRaw publishes a pre-serialized body, optionally with headers. Used
// by the worker runtime to republish retries with attempt counters.
func (c *Client) PublishRaw(ctx context.Context, routingKey string, body []byte, headers map[string]any) error {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("publish %s: not connected", routingKey)
	}

	err := ch.PublishWithContext(ctx, c.cfg.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Headers:      amqp.Table(headers),
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

// Stop closes the channel and connection. Idempotent.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true

	if c.ch != nil {
		if err := c.ch.Close(); err != nil {
			c.logger.Warn("close channel", slog.String("error", err.Error()))
		}
		c.ch = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("close connection", slog.String("error", err.Error()))
		}
		c.conn = nil
	}
}

func wrapDelivery(d amqp.Delivery) Delivery {
	headers := make(map[string]any, len(d.Headers))
	for k, v := range d.Headers {
		headers[k] = v
	}
	return Delivery{
		Body:        d.Body,
		RoutingKey:  d.RoutingKey,
		Redelivered: d.Redelivered,
		Headers:     headers,
		Acker:       amqpAcker{d: d},
	}
}

type amqpAcker struct {
	d amqp.Delivery
}

func (a amqpAcker) Ack() error {
	return a.d.Ack(false)
}

func (a amqpAcker) Nack(requeue bool) error {
	return a.d.Nack(false, requeue)
}

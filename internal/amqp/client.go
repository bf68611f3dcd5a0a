package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jizhang/internal/core"

	"github.com/rabbitmq/amqp091-go"
)

// channel is the subset of *amqp091.Channel the client uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Client publishes ledger events to a topic exchange. Consumers bind their
// own queues with the routing keys they care about.
type Client struct {
	conn         *amqp091.Connection
	channel      channel
	exchangeName string
	timeout      time.Duration
}

func NewClient(url, exchangeName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client, err := newClient(ch, exchangeName)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	client.conn = conn
	return client, nil
}

func newClient(ch channel, exchangeName string) (*Client, error) {
	c := &Client{channel: ch, exchangeName: exchangeName, timeout: 5 * time.Second}
	if err := c.setup(); err != nil {
		return nil, fmt.Errorf("setup exchange: %w", err)
	}
	return c, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}

// PublishEntryCreated announces an appended entry.
func (c *Client) PublishEntryCreated(ctx context.Context, e core.Entry) error {
	return c.publish(ctx, NewEntryCreated(e))
}

// PublishBudgetUpdated announces a new monthly budget.
func (c *Client) PublishBudgetUpdated(ctx context.Context, v int) error {
	return c.publish(ctx, NewBudgetUpdated(v))
}

func (c *Client) publish(ctx context.Context, ev *Event) error {
	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		ev.Type,        // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    ev.ID,
			Type:         ev.Type,
			Timestamp:    ev.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}

	slog.InfoContext(ctx, "Published event",
		"id", ev.ID,
		"type", ev.Type,
		"exchange", c.exchangeName)

	return nil
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

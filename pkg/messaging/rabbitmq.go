// pkg/messaging/rabbitmq.go
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"fileagent/internal/domain/events"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ActionExchange receives one message per completed file action so other
// systems (indexers, notifiers) can react to organized files.
const ActionExchange = "fileagent.action.events"

type RabbitMQClient struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	uri       string
	exchange  string
	connRetry chan struct{}
	closed    bool
	log       *zap.Logger
}

func NewRabbitMQClient(uri, exchange string, log *zap.Logger) (*RabbitMQClient, error) {
	if exchange == "" {
		exchange = ActionExchange
	}
	client := &RabbitMQClient{
		uri:       uri,
		exchange:  exchange,
		connRetry: make(chan struct{}, 1),
		log:       log,
	}

	if err := client.connect(); err != nil {
		return nil, err
	}

	go client.reconnectMonitor()

	return client, nil
}

func (c *RabbitMQClient) connect() error {
	conn, err := amqp.Dial(c.uri)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	c.ch = ch

	// connection monitoring, waiting for the connection to close
	go func() {
		<-c.conn.NotifyClose(make(chan *amqp.Error))
		if !c.closed {
			c.connRetry <- struct{}{}
		}
	}()

	return nil
}

// reconnectMonitor re-dials whenever the connection drops, unless the client
// was closed intentionally.
func (c *RabbitMQClient) reconnectMonitor() {
	for range c.connRetry {
		if c.closed {
			return
		}

		c.log.Warn("RabbitMQ connection lost, attempting to reconnect")

		for {
			if err := c.connect(); err != nil {
				c.log.Warn("failed to reconnect to RabbitMQ, retrying in 5 seconds", zap.Error(err))
				time.Sleep(5 * time.Second)
				continue
			}
			c.log.Info("reconnected to RabbitMQ")
			break
		}
	}
}

// SetupInfrastructure declares the action exchange and the consumer queues.
// Topic exchange: messages fan out to queues by action kind, not to
// individual workers.
func (c *RabbitMQClient) SetupInfrastructure() error {
	if err := c.ch.ExchangeDeclare(
		c.exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false,
		false,
		nil,
	); err != nil {
		return err
	}

	queues := []struct {
		name       string
		routingKey string
	}{
		{"file.routed", "file.route.*"},
		{"file.summarized", "file.summarize.*"},
	}

	for _, q := range queues {
		if _, err := c.ch.QueueDeclare(
			q.name,
			true,  // durable
			false, // auto-delete
			false,
			false,
			nil,
		); err != nil {
			return err
		}
		if err := c.ch.QueueBind(
			q.name,
			q.routingKey,
			c.exchange,
			false,
			nil,
		); err != nil {
			return err
		}
	}

	return nil
}

// PublishAction publishes one completed-action event, routed by action kind
// and file extension, e.g. "file.route.txt".
func (c *RabbitMQClient) PublishAction(ctx context.Context, ev events.FileActionEvent) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(ev.Path)), ".")
	routingKey := fmt.Sprintf("file.%s.%s", ev.Action, ext)
	return c.publish(ctx, routingKey, ev)
}

func (c *RabbitMQClient) publish(ctx context.Context, routingKey string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.ch.PublishWithContext(ctx,
		c.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

// Subscribe consumes messages from a queue and handles them in a goroutine.
// Failed handling nacks the message back onto the queue.
func (c *RabbitMQClient) Subscribe(queue string, handler func([]byte) error) error {
	msgs, err := c.ch.Consume(
		queue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			if err := handler(msg.Body); err != nil {
				c.log.Warn("error handling message", zap.String("queue", queue), zap.Error(err))
				msg.Nack(false, true)
			} else {
				msg.Ack(false)
			}
		}
	}()

	return nil
}

func (c *RabbitMQClient) Close() error {
	c.closed = true

	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

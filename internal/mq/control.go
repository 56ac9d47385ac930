package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gciolli/worker-spark/internal/signals"
)

// ControlQueue — очередь контрольных сообщений воркера.
const ControlQueue = "spark.control"

// Типы контрольных сообщений.
const (
	ControlReload    = "reload"
	ControlTerminate = "terminate"
)

// ControlMessage — контрольное сообщение.
type ControlMessage struct {
	Type string `json:"type"`
}

// ControlConsumer слушает очередь spark.control и переводит сообщения
// в флаги для основного цикла.
//
// Обработчик сообщения подчиняется тому же инварианту, что и обработчики
// OS-сигналов: только flag-and-wake, никакой работы в контексте
// уведомления.
type ControlConsumer struct {
	conn   *Connection
	flags  *signals.Flags
	logger *slog.Logger
}

// NewControlConsumer создаёт новый ControlConsumer.
func NewControlConsumer(conn *Connection, flags *signals.Flags, logger *slog.Logger) *ControlConsumer {
	return &ControlConsumer{
		conn:   conn,
		flags:  flags,
		logger: logger,
	}
}

// Start запускает потребление контрольных сообщений.
// Блокируется до отмены ctx; при разрыве соединения ждёт reconnect.
func (c *ControlConsumer) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := c.setupConsume()
		if err != nil {
			c.logger.Warn("control consume setup failed, waiting for reconnect", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				continue
			}
		}

		c.logger.Info("control consumer started", "queue", ControlQueue)

		if err := c.drain(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				continue
			}
		}
	}
}

// setupConsume объявляет очередь и начинает потребление.
func (c *ControlConsumer) setupConsume() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	if _, err := ch.QueueDeclare(
		ControlQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // args
	); err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	deliveries, err := ch.Consume(
		ControlQueue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, nil
}

// drain обрабатывает сообщения до закрытия канала доставки.
func (c *ControlConsumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}

			if err := c.handle(raw.Body); err != nil {
				c.logger.Warn("dropping control message",
					"error", err,
					"body", string(raw.Body),
				)
				raw.Nack(false, false)
				continue
			}
			raw.Ack(false)
		}
	}
}

// handle разбирает одно контрольное сообщение и устанавливает
// соответствующий флаг.
func (c *ControlConsumer) handle(body []byte) error {
	var msg ControlMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal control message: %w", err)
	}

	switch msg.Type {
	case ControlReload:
		c.logger.Info("control notice: reload")
		c.flags.RequestReload()
	case ControlTerminate:
		c.logger.Info("control notice: terminate")
		c.flags.RequestShutdown()
	default:
		return fmt.Errorf("unknown control message type %q", msg.Type)
	}
	return nil
}

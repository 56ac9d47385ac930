package mq

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// maxReconnectDelay — потолок экспоненциальной задержки переподключения.
const maxReconnectDelay = 30 * time.Second

// Connection — обёртка над AMQP-соединением с автоматическим
// переподключением. Контрольный канал воркера необязателен: если брокер
// пропал, Connection тихо переподключается в фоне, а воркер продолжает
// работать по таймеру и OS-сигналам.
type Connection struct {
	url    string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	closedCh    chan struct{}
	reconnectCh chan struct{}
}

// NewConnection устанавливает соединение с брокером.
func NewConnection(url string, logger *slog.Logger) (*Connection, error) {
	c := &Connection{
		url:         url,
		logger:      logger,
		closedCh:    make(chan struct{}),
		reconnectCh: make(chan struct{}, 1),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	go c.watch()

	return c, nil
}

// connect открывает соединение и канал.
func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn = conn
	c.channel = ch
	return nil
}

// watch следит за соединением и переподключается при разрыве
// с экспоненциальной задержкой.
func (c *Connection) watch() {
	for {
		c.mu.RLock()
		closed, conn := c.closed, c.conn
		c.mu.RUnlock()
		if closed {
			return
		}

		notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.closedCh:
			return
		case err := <-notifyClose:
			if err != nil {
				c.logger.Warn("control connection lost", "error", err)
			}
		}

		delay := time.Second
		for {
			c.mu.RLock()
			closed := c.closed
			c.mu.RUnlock()
			if closed {
				return
			}

			time.Sleep(delay)

			if err := c.connect(); err != nil {
				c.logger.Warn("control reconnect failed", "error", err, "next_delay", delay)
				delay = min(delay*2, maxReconnectDelay)
				continue
			}

			c.logger.Info("control connection restored")
			select {
			case c.reconnectCh <- struct{}{}:
			default:
			}
			break
		}
	}
}

// Channel возвращает текущий AMQP-канал.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// ReconnectNotify — уведомления об успешном переподключении.
func (c *Connection) ReconnectNotify() <-chan struct{} {
	return c.reconnectCh
}

// Close закрывает соединение.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closedCh)

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Package amqp publishes dataset events to RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"transactions/internal/core"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
	dialAttempts   = 3
)

// ErrCircuitOpen is returned while publishing is suspended after repeated
// failures.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// session is an open broker channel with the topology declared.
type session interface {
	Publish(ctx context.Context, exchange, key string, msg amqp091.Publishing) error
	IsClosed() bool
	Close() error
}

type dialFunc func(url, exchangeName, queueName string) (session, error)

type Client struct {
	url          string
	exchangeName string
	queueName    string

	dial    dialFunc
	backoff func(attempt int) time.Duration

	mu   sync.Mutex
	sess session

	state        int32
	failureCount int64
	lastFailure  time.Time
}

// NewClient dials url and declares the exchange and queue.
func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := newClient(url, exchangeName, queueName, dialBroker)

	client.mu.Lock()
	err := client.connect()
	client.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newClient(url, exchangeName, queueName string, dial dialFunc) *Client {
	return &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		dial:         dial,
		backoff:      exponentialBackoff,
	}
}

// connect must be called with c.mu held.
func (c *Client) connect() error {
	sess, err := c.dial(c.url, c.exchangeName, c.queueName)
	if err != nil {
		return err
	}
	c.sess = sess
	return nil
}

// brokerSession is the amqp091 connection and channel pair.
type brokerSession struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func dialBroker(url, exchangeName, queueName string) (session, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	s := &brokerSession{conn: conn, channel: channel}
	if err := s.declare(exchangeName, queueName); err != nil {
		s.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return s, nil
}

// declare sets up a durable topic exchange with the queue bound to
// dataset.seeded.
func (s *brokerSession) declare(exchangeName, queueName string) error {
	err := s.channel.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = s.channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := s.channel.QueueBind(queueName, RoutingKeyDatasetSeeded, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func (s *brokerSession) Publish(ctx context.Context, exchange, key string, msg amqp091.Publishing) error {
	return s.channel.PublishWithContext(ctx, exchange, key, false, false, msg)
}

func (s *brokerSession) IsClosed() bool {
	return s.channel.IsClosed()
}

func (s *brokerSession) Close() error {
	s.channel.Close()
	return s.conn.Close()
}

// ensureSession redials, at most dialAttempts times, if the broker dropped
// the connection.
func (c *Client) ensureSession(ctx context.Context) (session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil && !c.sess.IsClosed() {
		return c.sess, nil
	}
	c.closeLocked()

	var err error
	for attempt := 0; attempt < dialAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}
		if err = c.connect(); err == nil {
			slog.InfoContext(ctx, "Reconnected to AMQP broker", "attempt", attempt+1)
			return c.sess, nil
		}
	}
	return nil, err
}

// PublishDatasetSeeded publishes a dataset.seeded event for res.
func (c *Client) PublishDatasetSeeded(ctx context.Context, res core.SeedResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return ErrCircuitOpen
	}

	body, err := NewDatasetSeededMessage(res).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	sess, err := c.ensureSession(ctx)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("open channel: %w", err)
	}

	err = sess.Publish(ctx, c.exchangeName, RoutingKeyDatasetSeeded, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		MessageId:    res.BatchID,
		Body:         body,
	})
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.mu.Lock()
			c.closeLocked()
			c.mu.Unlock()
		}
		return fmt.Errorf("publish message: %w", err)
	}

	c.recordSuccess()
	slog.InfoContext(ctx, "Published dataset seeded message",
		"batch_id", res.BatchID,
		"count", res.Inserted,
		"exchange", c.exchangeName)

	return nil
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		last := c.lastFailure
		c.mu.Unlock()
		if time.Since(last) > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	n := atomic.AddInt64(&c.failureCount, 1)
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			slog.Warn("AMQP circuit breaker opened", "failures", n)
		}
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

// exponentialBackoff returns 1s, 2s, 4s... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << uint(attempt)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.sess == nil {
		return nil
	}
	err := c.sess.Close()
	c.sess = nil
	return err
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange events are published to.
const DefaultExchange = "crm.events"

// Redial backoff bounds after the broker connection drops.
const (
	minRedialWait = time.Second
	maxRedialWait = time.Minute
)

// ErrBrokerUnavailable is returned by Publish while the broker is down and
// the next redial attempt is not yet due.
var ErrBrokerUnavailable = errors.New("amqp broker unavailable")

// session is one connection plus its publishing channel.
type session interface {
	publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error
	closed() bool
	close() error
}

type dialFunc func(url, exchange string) (session, error)

// AMQPPublisher publishes JSON events to a durable topic exchange, using the
// event type as routing key. A dropped connection or channel is redialed on
// the next Publish, with exponential backoff between failed attempts.
type AMQPPublisher struct {
	url      string
	exchange string
	dial     dialFunc
	now      func() time.Time

	mu       sync.Mutex // amqp channels are not safe for concurrent publishing
	sess     session
	failures int
	retryAt  time.Time
}

// NewAMQPPublisher dials url and declares the exchange. The first dial must
// succeed; later drops are recovered from.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	return newAMQPPublisher(url, exchange, dialAMQP, time.Now)
}

func newAMQPPublisher(url, exchange string, dial dialFunc, now func() time.Time) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	sess, err := dial(url, exchange)
	if err != nil {
		return nil, err
	}
	return &AMQPPublisher{url: url, exchange: exchange, dial: dial, now: now, sess: sess}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	sess, err := p.session()
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}

	err = sess.publish(ctx, p.exchange, string(e.Type), amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    e.ID.String(),
		Timestamp:    e.OccurredAt,
		Type:         string(e.Type),
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		if sess.closed() {
			p.drop()
		}
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// session returns an open session, redialing if the current one is closed.
// Callers hold p.mu.
func (p *AMQPPublisher) session() (session, error) {
	if p.sess != nil && !p.sess.closed() {
		return p.sess, nil
	}
	if p.sess != nil {
		p.drop()
	}
	if p.now().Before(p.retryAt) {
		return nil, ErrBrokerUnavailable
	}

	sess, err := p.dial(p.url, p.exchange)
	if err != nil {
		p.failures++
		wait := redialWait(p.failures)
		p.retryAt = p.now().Add(wait)
		slog.Warn("amqp redial failed", "attempt", p.failures, "retry_in", wait, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	if p.failures > 0 {
		slog.Info("amqp reconnected", "attempts", p.failures)
	}
	p.sess, p.failures, p.retryAt = sess, 0, time.Time{}
	return sess, nil
}

func (p *AMQPPublisher) drop() {
	if err := p.sess.close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		slog.Debug("close dropped amqp session", "error", err)
	}
	p.sess = nil
}

// redialWait doubles from minRedialWait up to maxRedialWait.
func redialWait(failures int) time.Duration {
	if failures < 1 {
		return minRedialWait
	}
	if failures > 7 {
		return maxRedialWait
	}
	return min(minRedialWait<<(failures-1), maxRedialWait)
}

// Healthy reports whether the broker connection is currently open.
func (p *AMQPPublisher) Healthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess != nil && !p.sess.closed()
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess == nil {
		return nil
	}
	err := p.sess.close()
	p.sess = nil
	return err
}

type amqpSession struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func dialAMQP(url, exchange string) (session, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to amqp broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &amqpSession{conn: conn, ch: ch}, nil
}

func (s *amqpSession) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	return s.ch.PublishWithContext(ctx, exchange, key,
		false, // mandatory
		false, // immediate
		msg,
	)
}

// closed is true once either the channel or the connection has gone away;
// a channel error closes only the channel.
func (s *amqpSession) closed() bool {
	return s.conn.IsClosed() || s.ch.IsClosed()
}

func (s *amqpSession) close() error {
	if err := s.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		s.conn.Close()
		return err
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}

package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const DefaultExchange = "hfpager.events"

type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

type amqpPublisher struct {
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger
}

// NewAMQPPublisher connects to url and declares a durable topic exchange.
func NewAMQPPublisher(url, exchange string, logger *slog.Logger) (Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &amqpPublisher{conn: conn, exchange: exchange, log: logger}, nil
}

func (p *amqpPublisher) Publish(ctx context.Context, env Envelope) error {
	body, err := env.Encode()
	if err != nil {
		return err
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.PublishWithContext(
		ctx, p.exchange, env.RoutingKey(), false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     env.Meta.ID,
			CorrelationId: env.Meta.CorrelationKey,
			Timestamp:     env.Meta.CreatedAt,
			Body:          body,
		},
	)
	if err == nil {
		p.log.Debug("event_published", "key", env.RoutingKey(), "exchange", p.exchange)
	}
	return err
}

func (p *amqpPublisher) Close() error {
	return p.conn.Close()
}

// Mirror publishes envelopes from a bounded queue on its own goroutine so a
// slow or absent broker never holds up message routing. Envelopes that do
// not fit in the queue are dropped.
type Mirror struct {
	pub     Publisher
	queue   chan Envelope
	timeout time.Duration
	log     *slog.Logger
	done    chan struct{}
}

func NewMirror(pub Publisher, size int, logger *slog.Logger) *Mirror {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		pub:     pub,
		queue:   make(chan Envelope, size),
		timeout: 5 * time.Second,
		log:     logger,
		done:    make(chan struct{}),
	}
}

// Emit queues env without blocking. A nil Mirror discards everything.
func (m *Mirror) Emit(env Envelope) {
	if m == nil || m.pub == nil {
		return
	}
	select {
	case m.queue <- env:
	default:
		m.log.Warn("event_mirror_queue_full", "id", env.Meta.ID, "kind", env.Meta.Kind)
	}
}

// Run drains the queue until ctx is cancelled, then closes the publisher.
func (m *Mirror) Run(ctx context.Context) {
	defer close(m.done)
	defer func() {
		if err := m.pub.Close(); err != nil {
			m.log.Warn("event_mirror_close_error", "error", err.Error())
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-m.queue:
			pubCtx, cancel := context.WithTimeout(ctx, m.timeout)
			if err := m.pub.Publish(pubCtx, env); err != nil {
				m.log.Warn("event_publish_error", "id", env.Meta.ID, "key", env.RoutingKey(), "error", err.Error())
			}
			cancel()
		}
	}
}

// Done is closed once Run has returned.
func (m *Mirror) Done() <-chan struct{} {
	return m.done
}

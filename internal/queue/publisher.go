package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/grx1242064203-bit/fund-calendar/internal/model"
)

// Publisher sends operation logs as transient messages on a non-durable
// queue. Messages are lost if the broker restarts before they are consumed.
// The connection is opened lazily and reopened after a failure.
type Publisher struct {
	url   string
	queue string
	log   zerolog.Logger

	// sem guards conn and ch. Waiting for it honours the caller's context.
	sem  chan struct{}
	conn *amqp.Connection
	ch   *amqp.Channel
}

// defaultDialTimeout bounds a dial when the caller's context has no deadline.
const defaultDialTimeout = 5 * time.Second

func NewPublisher(url, queue string, log zerolog.Logger) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{
		url:   url,
		queue: queue,
		log:   log.With().Str("component", "amqp-publisher").Logger(),
		sem:   make(chan struct{}, 1),
	}
}

func (p *Publisher) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) unlock() { <-p.sem }

// Write publishes l. It satisfies audit.Sink.
func (p *Publisher) Write(ctx context.Context, l model.OperationLog) error {
	body, err := json.Marshal(eventFromLog(l, time.Now()))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.lock(ctx); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	defer p.unlock()

	ch, err := p.channelLocked(ctx)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.resetLocked()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *Publisher) channelLocked(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.resetLocked()

	timeout := defaultDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, fmt.Errorf("dial broker: %w", context.DeadlineExceeded)
		}
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := declareQueue(ch, p.queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	p.log.Info().Str("queue", p.queue).Msg("connected to broker")
	return ch, nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the broker connection. It waits for an in-flight publish.
func (p *Publisher) Close() error {
	p.sem <- struct{}{}
	defer p.unlock()
	p.resetLocked()
	return nil
}

// declareQueue declares the non-durable operation queue. Publisher and
// consumer must agree on its arguments.
func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(name, false, false, false, false, nil)
	if err != nil {
		return q, fmt.Errorf("queue declare: %w", err)
	}
	return q, nil
}

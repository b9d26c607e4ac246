package syncqueue

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

const publishTimeout = 5 * time.Second

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Tx() error
	TxCommit() error
	TxRollback() error
	Close() error
}

// AMQPPublisher publishes sync messages to a durable RabbitMQ queue.
type AMQPPublisher struct {
	conn  *amqp.Connection
	ch    channel
	queue string
	mu    sync.Mutex
}

// Dial connects to url and declares queue as durable.
func Dial(url, queue string) (*AMQPPublisher, error) {
	if url == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	logger.Info("connected to rabbitmq", slog.String("queue", q.Name))
	return &AMQPPublisher{conn: conn, ch: ch, queue: q.Name}, nil
}

func newPublisherWithChannel(ch channel, queue string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, queue: queue}
}

func publishing(msg SyncMessage) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal sync message: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.SyncEventID,
		Timestamp:    msg.ChangeTimestamp,
		Body:         body,
		Headers: amqp.Table{
			"entityType":   msg.EntityType,
			"tableName":    msg.TableName,
			"isDeleted":    msg.IsDeleted,
			"sourceRegion": msg.SourceRegion,
		},
	}, nil
}

// Send publishes one message.
func (p *AMQPPublisher) Send(ctx context.Context, msg SyncMessage) error {
	pub, err := publishing(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("publish %s: %w", msg.SyncEventID, err)
	}
	return nil
}

// SendBatch publishes msgs inside a channel transaction; either all are committed or none.
func (p *AMQPPublisher) SendBatch(ctx context.Context, msgs []SyncMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	pubs := make([]amqp.Publishing, 0, len(msgs))
	for _, m := range msgs {
		pub, err := publishing(m)
		if err != nil {
			return err
		}
		pubs = append(pubs, pub)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Tx(); err != nil {
		return fmt.Errorf("begin channel tx: %w", err)
	}
	for _, pub := range pubs {
		if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
			if rbErr := p.ch.TxRollback(); rbErr != nil {
				logger.Error("rollback channel tx", slog.Any("err", rbErr))
			}
			return fmt.Errorf("publish batch: %w", err)
		}
	}
	if err := p.ch.TxCommit(); err != nil {
		return fmt.Errorf("commit channel tx: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

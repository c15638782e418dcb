// Package reconcile retries cart clears that failed after a successful order
// creation. The order service publishes a pending-clear message; a consumer
// worker drains the queue and re-attempts the clear until it sticks, so a
// stale cart is eventually emptied instead of silently surviving checkout.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/vastrakart/vastrakart/internal/cart"
)

const (
	queueName = "cart.clear.pending"

	// requeueDelay paces redelivery of a clear that keeps failing.
	requeueDelay = 2 * time.Second
)

type pendingClear struct {
	UserID  uuid.UUID `json:"user_id"`
	OrderID uuid.UUID `json:"order_id"`
}

// Queue publishes and consumes pending cart clears over AMQP.
type Queue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewQueue(uri string) (*Queue, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("reconcile: failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("reconcile: failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("reconcile: failed to declare queue: %w", err)
	}

	return &Queue{conn: conn, ch: ch}, nil
}

func (q *Queue) Close() {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		_ = q.conn.Close()
	}
}

// PublishPendingClear enqueues a durable message recording that the cart for
// userID is still holding items already committed to orderID.
func (q *Queue) PublishPendingClear(ctx context.Context, userID, orderID uuid.UUID) error {
	body, err := json.Marshal(pendingClear{UserID: userID, OrderID: orderID})
	if err != nil {
		return fmt.Errorf("reconcile: failed to marshal pending clear: %w", err)
	}

	err = q.ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("reconcile: failed to publish pending clear: %w", err)
	}

	log.Info().Stringer("user_id", userID).Stringer("order_id", orderID).Msg("reconcile: pending cart clear queued")
	return nil
}

// Worker consumes pending clears and re-runs the cart clear. A clear that
// fails again is requeued after a short pause; the message is only acked once
// the cart is actually empty.
type Worker struct {
	queue *Queue
	carts cart.Service
}

func NewWorker(queue *Queue, carts cart.Service) *Worker {
	return &Worker{queue: queue, carts: carts}
}

// Run blocks consuming the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.queue.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("reconcile: failed to set qos: %w", err)
	}

	msgs, err := w.queue.ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("reconcile: failed to consume queue: %w", err)
	}

	log.Info().Str("queue", queueName).Msg("reconcile: worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reconcile: worker stopping")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("reconcile: delivery channel closed")
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var msg pendingClear
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		// A malformed message will never succeed; drop it.
		log.Error().Err(err).Msg("reconcile: dropping malformed pending clear")
		_ = d.Ack(false)
		return
	}

	if err := w.carts.Clear(ctx, msg.UserID); err != nil {
		log.Warn().Err(err).Stringer("user_id", msg.UserID).Stringer("order_id", msg.OrderID).Msg("reconcile: cart clear failed again, requeueing")
		sleepContext(ctx, requeueDelay)
		_ = d.Nack(false, true)
		return
	}

	log.Info().Stringer("user_id", msg.UserID).Stringer("order_id", msg.OrderID).Msg("reconcile: stale cart cleared")
	_ = d.Ack(false)
}

// sleepContext pauses for d, returning early when ctx is cancelled so a
// shutdown is never held up by a pending requeue pause.
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartOrderPaidConsumer connects to RabbitMQ, declares the order.paid queue
// (durable), and appends each message to logPath as one line.  It runs a
// reconnect loop with exponential backoff until ctx is cancelled.
// Unparseable messages are rejected without requeue so the loop never spins
// on them.
func StartOrderPaidConsumer(ctx context.Context, url, logPath string) {
	sink := &fileSink{path: logPath}
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(url)
		if err != nil {
			slog.Warn("order-consumer: failed to dial broker", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, sink)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		slog.Warn("order-consumer: consume loop ended; reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, sink *fileSink) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		slog.Warn("order-consumer: set QoS failed", "err", err)
	}
	if _, err := ch.QueueDeclare(OrderPaidQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(OrderPaidQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := sink.handle(d.Body); err != nil {
				slog.Error("order-consumer: handle message failed", "err", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// fileSink appends formatted events to a log file, creating its directory
// on first use.
type fileSink struct {
	mu   sync.Mutex
	path string
}

func (s *fileSink) handle(body []byte) error {
	var ev OrderPaidEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return s.write(FormatOrderPaid(ev))
}

func (s *fileSink) write(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatOrderPaid renders an event as a single human-friendly log line.
func FormatOrderPaid(ev OrderPaidEvent) string {
	user := "guest"
	if ev.UserID != nil {
		user = fmt.Sprintf("%d", *ev.UserID)
	}
	return fmt.Sprintf("[%s] Order paid | order_id=%d | user_id=%s | email=%q | total=%d %s | payment_intent=%s\n",
		ev.PaidAt, ev.OrderID, user, ev.Email, ev.TotalCents, ev.Currency, ev.PaymentIntentID)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartConsumer connects to the broker and consumes both notification
// queues, turning events into outbound email.  It runs a reconnect
// loop with exponential backoff and returns only when the context is
// cancelled.  A message that fails to process is rejected without
// requeue so a poison message cannot spin the consumer.
func StartConsumer(ctx context.Context, url string, mail *MailClient) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("notify-consumer: dial broker: %v; retrying in %s", err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(ctx, conn, mail); err != nil {
			log.Printf("notify-consumer: consume loop ended: %v; reconnecting", err)
			_ = conn.Close()
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, mail *MailClient) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("notify-consumer: set QoS failed: %v", err)
	}

	for _, q := range []string{QueueBookingConfirmed, QueueOTPIssued} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
	}

	confirmed, err := ch.Consume(QueueBookingConfirmed, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", QueueBookingConfirmed, err)
	}
	codes, err := ch.Consume(QueueOTPIssued, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", QueueOTPIssued, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-confirmed:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			settle(d, handleConfirmed(ctx, mail, d.Body))
		case d, ok := <-codes:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			settle(d, handleOTP(ctx, mail, d.Body))
		}
	}
}

func settle(d amqp.Delivery, err error) {
	if err != nil {
		log.Printf("notify-consumer: handle message failed: %v", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func handleConfirmed(ctx context.Context, mail *MailClient, body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := mail.SendBookingConfirmed(ctx, ev); err != nil {
		return fmt.Errorf("send confirmation for %s: %w", ev.BookingID, err)
	}
	return nil
}

func handleOTP(ctx context.Context, mail *MailClient, body []byte) error {
	var ev OTPIssuedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	// Expired codes are not worth delivering.
	if ev.IssuedAt != "" && ev.TTLSec > 0 {
		if issued, err := time.Parse(time.RFC3339, ev.IssuedAt); err == nil {
			if time.Since(issued) > ev.TTL() {
				log.Printf("notify-consumer: dropping expired code for %s", ev.Email)
				return nil
			}
		}
	}
	if err := mail.SendOTP(ctx, ev.Email, ev.Code, ev.TTL()); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	return nil
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher pushes booking lifecycle events to a topic exchange for the
// notification/chat layer. The core never depends on a consumer: publish
// failures are logged by callers and dropped, and a nil publisher is a
// valid no-op.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

const exchangeName = "timenest.bookings"

var Default *Publisher

// Connect wires the default publisher from AMQP_URL. Leaving the variable
// unset runs the service without a broker.
func Connect() {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		log.Println("⚠️  AMQP_URL not set, booking events will not be published")
		return
	}

	p, err := NewPublisher(url, exchangeName)
	if err != nil {
		log.Printf("❌ Failed to connect to rabbitmq: %v", err)
		return
	}
	Default = p
	log.Println("✅ Connected to rabbitmq, exchange:", exchangeName)
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	if p == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        b,
	})
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// BookingStatusChanged is the event body consumers receive for every
// successful transition, routed as booking.<new_status>.
type BookingStatusChanged struct {
	BookingID string    `json:"booking_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	At        time.Time `json:"at"`
}

// PublishBookingStatus is fire-and-forget: a broker outage never fails the
// transition that already committed.
func PublishBookingStatus(ctx context.Context, ev BookingStatusChanged) {
	if Default == nil {
		return
	}
	if err := Default.PublishJSON(ctx, "booking."+ev.NewStatus, ev); err != nil {
		log.Printf("⚠️  failed to publish booking event %s -> %s for %s: %v",
			ev.OldStatus, ev.NewStatus, ev.BookingID, err)
	}
}

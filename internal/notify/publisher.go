package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/fablab-reservation/internal/metrics"
)

// Publisher puts events on a durable RabbitMQ queue for the consumer to
// deliver.  It dials per publish; notification volume is a handful of
// messages per reservation.
type Publisher struct {
	URL   string
	Queue string
	Log   zerolog.Logger
}

func NewPublisher(url, queueName string, logger zerolog.Logger) *Publisher {
	return &Publisher{URL: url, Queue: queueName, Log: logger}
}

// Notify publishes ev.  Failures are logged and counted.
func (p *Publisher) Notify(ctx context.Context, ev Event) {
	ev = NewEvent(ev)
	if err := p.publish(ctx, ev); err != nil {
		metrics.IncNotificationFailure(string(ev.Kind))
		p.Log.Error().Err(err).
			Str("event_id", ev.ID).
			Str("kind", string(ev.Kind)).
			Str("family", ev.Family).
			Uint64("reservation_id", ev.ReservationID).
			Msg("notification publish failed")
	}
}

func (p *Publisher) publish(ctx context.Context, ev Event) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID,
			Timestamp:    ev.OccurredAt,
			Body:         body,
		})
}

package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/tournament-registration/internal/model"
	"github.com/iliyamo/tournament-registration/internal/queue"
)

// Notifier is told about ledger changes after they commit.  Delivery is
// best effort: implementations log failures and never report them to the
// caller.
type Notifier interface {
	Notify(ctx context.Context, ev queue.RegistrationEvent)
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, queue.RegistrationEvent) {}

// AMQPNotifier publishes events as persistent JSON messages to the
// registration.events queue.  Each publish dials its own connection so a
// broker outage never leaves a broken connection behind.
type AMQPNotifier struct {
	URL     string
	Timeout time.Duration
}

// NewAMQPNotifier returns a notifier publishing to the broker at url.
func NewAMQPNotifier(url string) *AMQPNotifier {
	return &AMQPNotifier{URL: url, Timeout: 5 * time.Second}
}

// Notify publishes ev, detached from the request context so a finished
// request does not abort the publish.
func (n *AMQPNotifier) Notify(ctx context.Context, ev queue.RegistrationEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.Timeout)
	defer cancel()
	if err := n.publish(ctx, ev); err != nil {
		slog.Warn("rabbitmq: publish registration event failed",
			"error", err, "type", ev.Type, "registration_id", ev.RegistrationID)
	}
}

func (n *AMQPNotifier) publish(ctx context.Context, ev queue.RegistrationEvent) error {
	// The deadline covers both the TCP dial and the AMQP handshake.
	conn, err := amqp.DialConfig(n.URL, amqp.Config{
		Locale: "en_US",
		Dial:   amqp.DefaultDial(n.Timeout),
	})
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
	if _, err := ch.QueueDeclare(queue.RegistrationQueueName, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx,
		"",                          // default exchange
		queue.RegistrationQueueName, // routing key = queue name
		false,                       // mandatory
		false,                       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.EventID,
			Timestamp:    ev.OccurredAt,
			Body:         body,
		},
	)
}

// newEvent builds the event for a registration that just changed.
func newEvent(typ string, reg *model.Registration, reason string, at time.Time) queue.RegistrationEvent {
	return queue.RegistrationEvent{
		EventID:         uuid.NewString(),
		Type:            typ,
		RegistrationID:  reg.ID,
		TournamentID:    reg.TournamentID,
		UserID:          reg.UserID,
		Status:          string(reg.Status),
		PaymentStatus:   string(reg.PaymentStatus),
		AmountPaidCents: reg.AmountPaidCents,
		Reason:          reason,
		OccurredAt:      at.UTC(),
	}
}

// Package notify renders customer emails and hands them to a Mailer.
package notify

import (
	"context"
	"strings"

	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

const TopicNotificationEvents = "notification_events"

type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// KafkaMailer queues the rendered email for the delivery worker.
type KafkaMailer struct {
	Events service.EventPublisher
}

func (k *KafkaMailer) Send(ctx context.Context, m Message) error {
	return k.Events.PublishEvent(ctx, TopicNotificationEvents, strings.ToLower(m.To), map[string]any{
		"type":    "email_requested",
		"from":    m.From,
		"to":      m.To,
		"subject": m.Subject,
		"html":    m.HTML,
	})
}

// LogMailer only logs; used when no broker is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, m Message) error {
	logging.FromContext(ctx).Info("email_skipped", "to", m.To, "subject", m.Subject)
	return nil
}

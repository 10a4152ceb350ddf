package services

import (
	"context"

	"github.com/dmitrijs2005/gophsocial/internal/logging"
)

// Message is an outbound notification to a user.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers messages to users. Only password recovery sends any.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the log instead of delivering them. It is
// the notifier of development setups.
type LogNotifier struct {
	log logging.Logger
}

func NewLogNotifier(log logging.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("module", "notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.log.Info(ctx, "notification", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}

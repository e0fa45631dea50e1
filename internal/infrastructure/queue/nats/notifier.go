package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/docstream/internal/core/ports"
)

// Notifier publishes security events for out-of-band consumers
// (administrator alerting, uploader notification). Fire-and-forget.
type Notifier struct {
	conn    connPublisher
	subject string
}

type connPublisher interface {
	Publish(subject string, data []byte) error
}

func NewNotifier(queue *Queue, subject string) *Notifier {
	return &Notifier{conn: queue.conn, subject: subject}
}

func (n *Notifier) NotifyVirusDetected(_ context.Context, event ports.SecurityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal security event: %w", err)
	}
	if err := n.conn.Publish(n.subject, payload); err != nil {
		return wrapTemporaryIfNeeded(fmt.Errorf("publish security event: %w", err))
	}
	return nil
}

package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// Notifier delivers member-facing messages (invitations, booking receipts).
type Notifier interface {
	Notify(ctx context.Context, routingKey string, body []byte) error
}

// LogNotifier writes the notification as a structured log entry. Class
// start times are also rendered in the studio's zone when Location is set.
type LogNotifier struct {
	Location *time.Location
}

func (n LogNotifier) Notify(ctx context.Context, routingKey string, body []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		fields = map[string]any{"body": string(body)}
	}
	if n.Location != nil {
		if raw, ok := fields["class_starts_at"].(string); ok {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				fields["class_starts_local"] = t.In(n.Location).Format("Mon 2 Jan 15:04 MST")
			}
		}
	}
	logrus.WithFields(logrus.Fields(fields)).WithField("routing_key", routingKey).Info("notification")
	return nil
}

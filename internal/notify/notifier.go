// Package notify is the boundary to the push-notification dispatcher.
// Delivery is best-effort: callers log and swallow errors so a failed
// notification can never fail a ledger mutation.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

type Notification struct {
	UserIDs []string       `json:"user_ids"`
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Data    map[string]any `json:"data,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier is the default sink when no push backend is configured.
type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, notification Notification) error {
	n.log.WithFields(logrus.Fields{
		"user_ids": notification.UserIDs,
		"title":    notification.Title,
		"body":     notification.Body,
	}).Info("notification dispatched")
	return nil
}

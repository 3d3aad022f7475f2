package notify

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

type Message struct {
	To      []string
	Cc      []string
	Subject string
	HTML    string
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NopNotifier only logs; used when outbound mail is disabled.
type NopNotifier struct {
	Logger *logrus.Logger
}

func (n NopNotifier) Send(_ context.Context, msg Message) error {
	if n.Logger != nil {
		n.Logger.WithFields(logrus.Fields{
			"to":      msg.To,
			"cc":      msg.Cc,
			"subject": msg.Subject,
		}).Info("mail disabled, notification skipped")
	}
	return nil
}

// CleanAddresses trims entries and drops empty ones.
func CleanAddresses(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

package notifier

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/orthoflow/orthoflow/pkg/metrics"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Event is the payload delivered to subscribers when a run ends.
type Event struct {
	ProjectKey string    `json:"project_key"`
	Status     Status    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	ResultURL  string    `json:"result_url,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Writer is the interface to be implemented by the underlying transport.
type Writer interface {
	Write(ctx context.Context, e Event) error
}

type NotifierOptions func(n *Notifier)

// Notifier stamps events and hands them to a Writer. Send is synchronous so
// callers control the ordering of notifications against their own writes.
type Notifier struct {
	writer   Writer
	location *time.Location
	now      func() time.Time
}

func NewNotifier(w Writer, opts ...NotifierOptions) *Notifier {
	n := &Notifier{
		writer:   w,
		location: time.UTC,
		now:      time.Now,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

func WithLocation(loc *time.Location) NotifierOptions {
	return func(n *Notifier) {
		if loc != nil {
			n.location = loc
		}
	}
}

func WithClock(now func() time.Time) NotifierOptions {
	return func(n *Notifier) {
		n.now = now
	}
}

func (n *Notifier) Send(ctx context.Context, projectKey string, status Status, resultURL, message string) error {
	e := Event{
		ProjectKey: projectKey,
		Status:     status,
		Timestamp:  n.now().In(n.location),
		ResultURL:  resultURL,
		Message:    message,
	}

	if err := n.writer.Write(ctx, e); err != nil {
		metrics.IncreaseNotificationsTotalMetric(string(status), "failed")
		zap.S().Named("notifier").Errorw("failed to send notification", "project_key", projectKey, "status", status, "error", err)
		return err
	}

	metrics.IncreaseNotificationsTotalMetric(string(status), "sent")
	zap.S().Named("notifier").Infow("notification sent", "project_key", projectKey, "status", status)
	return nil
}

// Package dispatch is the boundary to email/notification delivery. The
// core only needs a success/failure signal; delivery itself is an
// external collaborator.
package dispatch

import (
	"context"

	"go.uber.org/zap"
)

// Notification describes a document event to deliver to a client.
type Notification struct {
	TenantID       string
	EventType      string
	DocumentID     string
	DocumentNumber string
	ClientID       string
}

// Dispatcher delivers a notification for a billing event.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// LogDispatcher records dispatches without delivering anything. It is
// the default implementation until a mail provider is wired in.
type LogDispatcher struct {
	log *zap.Logger
}

func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	return &LogDispatcher{log: log.Named("dispatch")}
}

func (d *LogDispatcher) Dispatch(_ context.Context, n Notification) error {
	d.log.Info("dispatch",
		zap.String("tenant_id", n.TenantID),
		zap.String("event_type", n.EventType),
		zap.String("document_number", n.DocumentNumber),
		zap.String("client_id", n.ClientID),
	)
	return nil
}

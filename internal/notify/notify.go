// Package notify delivers best-effort notifications about match lifecycle
// events. Delivery failures are logged and never returned to the caller of
// the operation that triggered them.
package notify

import (
	"context"
	"errors"
	"log/slog"
)

// Notification kinds.
const (
	KindInterestReceived = "interest_received"
	KindMutualMatch      = "mutual_match"
)

// Notification is a single notice for one account.
type Notification struct {
	AccountID string
	Title     string
	Message   string
	Kind      string
	RelatedID string
}

// Notifier delivers a notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Nop discards every notification.
var Nop Notifier = NotifierFunc(func(context.Context, Notification) error { return nil })

// Dispatcher fans a notification out to every sink. A failing sink does not
// stop the others.
type Dispatcher struct {
	sinks  []Notifier
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil logger uses slog.Default.
func NewDispatcher(logger *slog.Logger, sinks ...Notifier) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sinks: sinks, logger: logger}
}

// Notify delivers n to all sinks and returns the joined sink errors.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range d.sinks {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatch delivers each notification, logging and swallowing failures.
func Dispatch(ctx context.Context, logger *slog.Logger, n Notifier, notes ...Notification) {
	if n == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	for _, note := range notes {
		if err := n.Notify(ctx, note); err != nil {
			logger.Warn("notification dropped",
				"account", note.AccountID,
				"kind", note.Kind,
				"related_id", note.RelatedID,
				"error", err,
			)
		}
	}
}

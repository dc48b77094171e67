// Package notify escalates notices outside the terminal.
package notify

import (
	"context"
	"errors"
)

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// Notification is one message to deliver.
type Notification struct {
	Title   string
	Message string
	Level   Level
	Host    string
}

// Notifier delivers notifications.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

// Send delivers n to all notifiers, even when one fails.
func (m Multi) Send(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop discards notifications.
type Noop struct{}

func (Noop) Send(context.Context, Notification) error { return nil }

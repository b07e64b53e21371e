// Package nop provides the event publisher hooks use when no kafka brokers
// are configured.
package nop

import (
	"context"

	"github.com/papercomputeco/reflex/pkg/eventstream"
)

// Publisher drops every turn summary.
type Publisher struct{}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishTurn rejects a nil event and discards the rest.
func (p *Publisher) PublishTurn(_ context.Context, event *eventstream.TurnCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	return nil
}

func (p *Publisher) Close() error {
	return nil
}

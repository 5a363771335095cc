// Package publisher defines the event publishing port and the phase
// completion events emitted as the pipeline progresses.
package publisher

import (
	"context"
	"time"
)

// Publisher sends a payload to a named topic and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// PhaseEvent announces that a pipeline phase finished for a run.
type PhaseEvent struct {
	RunID      string    `json:"run_id"`
	Phase      string    `json:"phase"`
	Complete   bool      `json:"complete"`
	Items      int       `json:"items"`
	Skipped    bool      `json:"skipped,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// NopPublisher discards every event. Used when no topic is configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, string, any) (string, error) {
	return "", nil
}

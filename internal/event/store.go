package event

import "context"

// Store persists and retrieves audit events.
type Store interface {
	// Append persists one or more events.
	Append(ctx context.Context, events ...Event) error
	// Load returns up to limit of the most recent events for a tournament,
	// newest first. A non-positive limit returns everything retained.
	Load(ctx context.Context, aggregateID string, limit int) ([]Event, error)
}

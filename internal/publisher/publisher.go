// Package publisher defines the no-op completion publisher.
//
// Provider implementations live in subpackages (memory, pubsub); all of
// them satisfy the scraper.Publisher interface.
package publisher

import "context"

// Noop drops completion events. It is the default provider.
type Noop struct{}

// Publish does nothing and returns an empty message ID.
func (Noop) Publish(_ context.Context, _ any) (string, error) {
	return "", nil
}

// README: No-op publisher for broker-less runs.
package events

import "context"

// NopPublisher discards every event. Used when the service runs without a
// broker (local development).
type NopPublisher struct{}

func (NopPublisher) PublishBestEffort(context.Context, Event) error { return nil }
func (NopPublisher) PublishDurable(context.Context, Event) error    { return nil }

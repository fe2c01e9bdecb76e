// README: Outbox relay; drains pending durable events to the bus.
package ride

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"ridewire/internal/events"
)

// Relay moves committed outbox rows onto the event bus. Delivery is
// at-least-once: a row is marked sent only after the broker confirms it, so
// a crash between publish and mark replays the event on the next pass.
type Relay struct {
	store OutboxStore
	bus   events.Publisher
	log   *slog.Logger

	interval time.Duration
	batch    int
}

func NewRelay(store OutboxStore, bus events.Publisher, log *slog.Logger, interval time.Duration, batch int) *Relay {
	return &Relay{store: store, bus: bus, log: log, interval: interval, batch: batch}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("outbox drain failed", "error", err)
			}
		}
	}
}

// Drain publishes one batch of pending rows. Rows that fail stay pending.
func (r *Relay) Drain(ctx context.Context) error {
	pending, err := r.store.PendingOutbox(ctx, r.batch)
	if err != nil {
		return err
	}
	for _, e := range pending {
		ev := events.Event{ID: e.ID, Topic: e.Topic, Payload: json.RawMessage(e.Payload)}
		if err := r.bus.PublishDurable(ctx, ev); err != nil {
			r.log.Warn("outbox publish failed, will retry", "topic", e.Topic, "id", e.ID, "error", err)
			continue
		}
		if err := r.store.MarkOutboxSent(ctx, e.ID); err != nil {
			// the event goes out again next pass; consumers dedupe on event id
			return err
		}
	}
	return nil
}

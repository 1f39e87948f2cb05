package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/easel-cloud/easel/internal/event"
	"github.com/easel-cloud/easel/internal/generation"
	"github.com/easel-cloud/easel/internal/metrics"
	"github.com/easel-cloud/easel/internal/models"
	"github.com/easel-cloud/easel/pkg/log"
	"github.com/google/uuid"
)

// Update is one progress checkpoint reported by the worker. Progress
// is fractional (0.0-1.0) at this boundary; values above 1.0 are
// assumed to already be on the stored 0-100 scale and pass through
// unchanged.
type Update struct {
	JobID    uuid.UUID               `json:"job_id"`
	BoardID  uuid.UUID               `json:"board_id,omitempty"`
	Status   models.GenerationStatus `json:"status"`
	Progress float64                 `json:"progress"`
	Phase    string                  `json:"phase,omitempty"`
	Message  string                  `json:"message,omitempty"`
}

// Broadcaster delivers a serialized update on a channel scoped to the
// job id. Delivery is fire-and-forget, many-subscriber, no
// backpressure.
type Broadcaster interface {
	Broadcast(ctx context.Context, channel string, payload []byte) error
}

// ChannelFor names the pub/sub channel carrying one job's progress.
func ChannelFor(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s:progress", jobID)
}

// Publisher is the single place where an Update becomes both a
// durable state transition and a real-time broadcast. Persistence
// happens before the broadcast, so a subscriber reacting to a
// broadcast can trust a concurrent poll of the record to reflect at
// least that state.
type Publisher struct {
	store       *generation.Store
	broadcaster Broadcaster
	bus         event.Bus
}

func NewPublisher(store *generation.Store, broadcaster Broadcaster, bus event.Bus) *Publisher {
	if store == nil {
		panic("progress publisher requires a generation store")
	}
	return &Publisher{
		store:       store,
		broadcaster: broadcaster,
		bus:         bus,
	}
}

// Publish persists the update and then broadcasts it. A persistence
// failure propagates; a broadcast failure is logged and swallowed
// because progress broadcasting is advisory.
func (p *Publisher) Publish(ctx context.Context, update Update) error {
	errMsg := ""
	if update.Status == models.GenerationStatusFailed {
		errMsg = update.Message
	}

	if err := p.store.ApplyProgress(
		ctx,
		update.JobID,
		update.Status,
		storedScale(update.Progress),
		errMsg,
	); err != nil {
		return err
	}

	p.broadcast(ctx, update)

	return nil
}

// Broadcast sends an update on the side channels without touching the
// durable record. Attempt failures that may still be redelivered use
// this so the record stays retryable; the completion broadcast uses it
// because Finalize already persisted the terminal state.
func (p *Publisher) Broadcast(ctx context.Context, update Update) {
	p.broadcast(ctx, update)
}

func (p *Publisher) broadcast(ctx context.Context, update Update) {
	payload, err := json.Marshal(update)
	if err != nil {
		metrics.ProgressBroadcastFailuresTotal.Inc()
		log.Error("failed to serialize progress update", "job_id", update.JobID, "error", err)
		return
	}

	if p.broadcaster != nil {
		if err := p.broadcaster.Broadcast(ctx, ChannelFor(update.JobID), payload); err != nil {
			metrics.ProgressBroadcastFailuresTotal.Inc()
			log.Warn("progress broadcast failed",
				"job_id", update.JobID,
				"status", update.Status,
				"error", err)
		}
	}

	if p.bus != nil {
		p.bus.Publish(event.Event{
			Type:         eventType(update.Status),
			GenerationID: update.JobID,
			BoardID:      update.BoardID,
			Timestamp:    time.Now().UTC(),
			Payload:      payload,
		})
	}
}

// storedScale rescales a fractional progress value to the persisted
// 0-100 scale.
func storedScale(progress float64) float64 {
	if progress <= 1.0 {
		return progress * 100
	}
	return progress
}

func eventType(status models.GenerationStatus) event.Type {
	switch status {
	case models.GenerationStatusCompleted:
		return event.TypeGenerationCompleted
	case models.GenerationStatusFailed:
		return event.TypeGenerationFailed
	case models.GenerationStatusCancelled:
		return event.TypeGenerationCancelled
	default:
		return event.TypeGenerationProgress
	}
}

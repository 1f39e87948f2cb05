package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/easel-cloud/easel/internal/event"
	"github.com/easel-cloud/easel/pkg/log"
	"github.com/redis/go-redis/v9"
)

// ChannelPattern matches every job progress channel.
const ChannelPattern = "job:*:progress"

// Listen bridges redis progress broadcasts onto a local event bus,
// so processes that did not produce an update can still stream it.
// It blocks until the context is cancelled.
func Listen(ctx context.Context, client *redis.Client, bus event.Bus) error {
	pubsub := client.PSubscribe(ctx, ChannelPattern)
	defer pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return nil
			}

			update := Update{}
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				log.Warn("discarding malformed progress broadcast",
					"channel", msg.Channel,
					"error", err)
				continue
			}

			bus.Publish(event.Event{
				Type:         eventType(update.Status),
				GenerationID: update.JobID,
				BoardID:      update.BoardID,
				Timestamp:    time.Now().UTC(),
				Payload:      []byte(msg.Payload),
			})
		}
	}
}

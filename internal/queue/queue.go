package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is the wire payload carried on the generation queue. Only
// the job id travels; the worker loads everything else from the
// record store, which is why enqueueing must happen strictly after
// the record's transaction commits.
type Message struct {
	JobID uuid.UUID `json:"job_id"`
}

func (m Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// attemptHeader counts deliveries, 1-based. Redeliveries republish
// with the header incremented.
const attemptHeader = "x-easel-attempt"

// Backoff returns the delay before redelivering attempt+1. The delay
// starts at base for the first retry and doubles per attempt up to
// cap.
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}

func attemptFrom(headers map[string]interface{}) int {
	raw, ok := headers[attemptHeader]
	if !ok {
		return 1
	}

	switch v := raw.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 1
	}
}

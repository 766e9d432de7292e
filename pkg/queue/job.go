package queue

import (
	"context"
	"encoding/json"
)

// Job handles every message of one type.
type Job interface {
	// Type is the message type the job consumes.
	Type() string

	// Handle processes a single payload. Returned errors schedule a retry.
	Handle(ctx context.Context, payload json.RawMessage) error
}

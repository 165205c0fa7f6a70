package model

import (
	"encoding/json"
	"time"
)

// Event is an immutable record of a feedback-domain occurrence scoped to a
// project. Events are stamped by the notification engine on publish and must
// not be modified afterwards, including the bytes of Payload.
type Event struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	ProjectID string          `json:"project_id"`
	ActorID   string          `json:"actor_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

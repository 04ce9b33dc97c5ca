package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps a domain event for transport. EntityID doubles as the
// partition key so events for one row stay ordered.
type Envelope struct {
	ID         string          `json:"id"`
	EntityID   string          `json:"entity_id"`
	EntityType string          `json:"entity_type"`
	EventType  string          `json:"event_type"`
	Data       json.RawMessage `json:"data"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewEnvelope builds an envelope around marshalled event data.
func NewEnvelope(entityID, entityType, eventType string, data any) (Envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:         uuid.New().String(),
		EntityID:   entityID,
		EntityType: entityType,
		EventType:  eventType,
		Data:       payload,
		Timestamp:  time.Now(),
	}, nil
}

// Publisher emits domain events after state changes have been persisted.
type Publisher interface {
	Publish(ctx context.Context, entityID, entityType, eventType string, data any) error
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, entityID, entityType, eventType string, data any) error {
	return nil
}

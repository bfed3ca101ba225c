// Package outbox writes domain events in the caller's transaction and relays them to Kafka.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one outbox row. The Kafka topic equals EventType.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Envelope is the JSON body every event carries.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

var now = time.Now

// NewEvent wraps data in an Envelope with a fresh event id.
func NewEvent(aggregateType, aggregateID, eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	id := uuid.NewString()
	payload, err := json.Marshal(Envelope{
		EventID:    id,
		EventType:  eventType,
		OccurredAt: now().UTC(),
		Data:       raw,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		EventID:       id,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

// Decode unwraps an envelope and decodes its data into dst.
func Decode(payload []byte, dst any) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, err
	}
	if dst != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			return Envelope{}, err
		}
	}
	return env, nil
}

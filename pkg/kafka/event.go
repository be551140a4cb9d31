package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope every published message carries.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ErrInvalidEvent is returned by Publish for an envelope missing its type or
// aggregate id.
var ErrInvalidEvent = errors.New("kafka: invalid event")

// NewEvent wraps data in a version 1 envelope stamped with a fresh id and
// the current UTC time. Metadata stays nil until WithMetadata is called.
func NewEvent(eventType, aggregateID, aggregateType, source string, data any) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return &Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       1,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Data:          payload,
	}, nil
}

// Validate reports whether the envelope can be keyed and routed.
func (e *Event) Validate() error {
	switch {
	case e.EventType == "":
		return errors.Join(ErrInvalidEvent, errors.New("missing event type"))
	case e.AggregateID == "":
		return errors.Join(ErrInvalidEvent, errors.New("missing aggregate id"))
	}
	return nil
}

func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = map[string]string{}
	}
	e.Metadata[key] = value
	return e
}

// DecodeData unmarshals the payload into target.
func (e *Event) DecodeData(target any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s event %s has no payload", e.EventType, e.EventID)
	}
	return json.Unmarshal(e.Data, target)
}

// TopicPrefix is prepended to every topic name.
const TopicPrefix = "ecommerce"

// Topic joins TopicPrefix and the given segments with dots, skipping empty
// segments: Topic("cart", "snapshot", "saved") is "ecommerce.cart.snapshot.saved".
func Topic(segments ...string) string {
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, TopicPrefix)
	for _, s := range segments {
		if s = strings.Trim(s, "."); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ".")
}

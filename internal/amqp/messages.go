package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pocketbalance/internal/core"
)

// EventKind says what happened to the ledger.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventCleared EventKind = "cleared"
)

var ErrInvalidEvent = errors.New("invalid transaction event")

// TransactionEvent is published after every ledger mutation. Added events
// carry the full transaction; cleared events carry none.
type TransactionEvent struct {
	Kind        EventKind         `json:"kind"`
	Transaction *core.Transaction `json:"transaction,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// NewAddedEvent creates the event for a freshly added transaction.
func NewAddedEvent(tx core.Transaction) *TransactionEvent {
	return &TransactionEvent{Kind: EventAdded, Transaction: &tx, Timestamp: time.Now().UTC()}
}

// NewClearedEvent creates the event for a full clear.
func NewClearedEvent() *TransactionEvent {
	return &TransactionEvent{Kind: EventCleared, Timestamp: time.Now().UTC()}
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Validate checks the kind/payload pairing.
func (e *TransactionEvent) Validate() error {
	switch e.Kind {
	case EventAdded:
		if e.Transaction == nil || e.Transaction.ID == "" {
			return fmt.Errorf("%w: added event without transaction", ErrInvalidEvent)
		}
	case EventCleared:
		if e.Transaction != nil {
			return fmt.Errorf("%w: cleared event with transaction", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	return nil
}

// EventFromJSON decodes and validates an event.
func EventFromJSON(data []byte) (*TransactionEvent, error) {
	var evt TransactionEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	return &evt, nil
}

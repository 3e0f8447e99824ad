package events

import (
	"encoding/json"
	"time"
)

// Event types emitted by the ledger services.
const (
	MovementCreated Type = "movement.created"
	MovementUpdated Type = "movement.updated"
	MovementDeleted Type = "movement.deleted"
	GoalContributed Type = "goal.contributed"
	GoalReached     Type = "goal.reached"
	GoalDeleted     Type = "goal.deleted"
)

type Type string

// Event is the message published to the ledger exchange. It carries enough
// denormalized data for consumers (notifier, exporter) to act without a
// database round trip.
type Event struct {
	Type         Type      `json:"type"`
	OwnerID      int64     `json:"owner_id"`
	MovementID   int64     `json:"movement_id,omitempty"`
	AccountID    int64     `json:"account_id,omitempty"`
	AccountName  string    `json:"account_name,omitempty"`
	CategoryName string    `json:"category_name,omitempty"`
	GoalID       int64     `json:"goal_id,omitempty"`
	GoalName     string    `json:"goal_name,omitempty"`
	Kind         string    `json:"kind,omitempty"`
	Amount       string    `json:"amount,omitempty"`
	Description  string    `json:"description,omitempty"`
	OccurredAt   time.Time `json:"occurred_at,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// New creates an event stamped with the current time.
func New(t Type, ownerID int64) Event {
	return Event{
		Type:      t,
		OwnerID:   ownerID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON creates an event from JSON bytes.
func FromJSON(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

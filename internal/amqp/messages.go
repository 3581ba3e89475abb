package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// EventType names a committed ledger mutation.
type EventType string

const (
	EventTransactionCreated   EventType = "transaction.created"
	EventTransactionUpdated   EventType = "transaction.updated"
	EventTransactionDeleted   EventType = "transaction.deleted"
	EventTransferCompleted    EventType = "transfer.completed"
	EventAccountCreated       EventType = "account.created"
	EventAccountDeleted       EventType = "account.deleted"
	EventAccountPrimaryChange EventType = "account.primary_changed"
)

// LedgerEvent is a lightweight notification of a committed mutation.
// It carries only identifiers; consumers read current state from the store.
type LedgerEvent struct {
	Type           EventType `json:"type"`
	OwnerID        string    `json:"owner_id"`
	AccountIDs     []string  `json:"account_ids"`
	TransactionIDs []string  `json:"transaction_ids,omitempty"`
	TransferID     string    `json:"transfer_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewLedgerEvent creates an event stamped with the current time
func NewLedgerEvent(eventType EventType, ownerID string, accountIDs ...string) *LedgerEvent {
	return &LedgerEvent{
		Type:       eventType,
		OwnerID:    ownerID,
		AccountIDs: accountIDs,
		OccurredAt: time.Now(),
	}
}

// WithTransactions attaches the affected transaction ids
func (e *LedgerEvent) WithTransactions(ids ...string) *LedgerEvent {
	e.TransactionIDs = append(e.TransactionIDs, ids...)
	return e
}

// Validate rejects events a consumer could not act on
func (e *LedgerEvent) Validate() error {
	if e.Type == "" {
		return errors.New("event type is required")
	}
	if e.OwnerID == "" {
		return errors.New("owner id is required")
	}
	return nil
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

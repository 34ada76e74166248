package models

// Event is a journal row for everything the core emits towards the
// observability boundary (dashboards, address books, notifications).
type Event struct {
	// ID is the unique identifier of the event row.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// Type is one of the Event* constants below.
	Type string `json:"type" gorm:"column:type;index;not null"`
	// Payload is the JSON-encoded typed payload of the event.
	Payload string `json:"payload" gorm:"column:payload"`
	// CreatedAt is the Unix timestamp the event was emitted at.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at;index"`
}

const (
	EventSubscriptionCreated        = "subscription_created"
	EventSubscriptionFunded         = "subscription_funded"
	EventSubscriptionCanceled       = "subscription_canceled"
	EventConsumerAdded              = "consumer_added"
	EventConsumerRemoved            = "consumer_removed"
	EventOwnershipTransferRequested = "ownership_transfer_requested"
	EventOwnershipTransferred       = "ownership_transferred"
	EventFundsWithdrawn             = "funds_withdrawn"
	EventFundsRecovered             = "funds_recovered"
	EventRandomWordsRequested       = "random_words_requested"
	EventRandomWordsFulfilled       = "random_words_fulfilled"
	EventRaffleEntered              = "raffle_entered"
	EventWinnerRequested            = "winner_requested"
	EventWinnerPicked               = "winner_picked"
)

// EventSink receives emitted events. The engine implements it by logging,
// journaling and dispatching notifications; tests collect events directly.
type EventSink interface {
	Emit(eventType string, payload any)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(eventType string, payload any)

func (f EventSinkFunc) Emit(eventType string, payload any) { f(eventType, payload) }

// NopSink discards every event.
var NopSink EventSink = EventSinkFunc(func(string, any) {})

// SubscriptionEventPayload is emitted for ledger lifecycle events.
type SubscriptionEventPayload struct {
	SubID    string `json:"sub_id"`
	Owner    string `json:"owner,omitempty"`
	Consumer string `json:"consumer,omitempty"`
	Amount   string `json:"amount,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// RequestEventPayload is emitted when a randomness request is opened.
type RequestEventPayload struct {
	RequestID        uint64 `json:"request_id"`
	SubID            string `json:"sub_id"`
	Sender           string `json:"sender"`
	KeyHash          string `json:"key_hash"`
	PreSeed          string `json:"pre_seed"`
	Confirmations    uint16 `json:"confirmations"`
	CallbackGasLimit uint64 `json:"callback_gas_limit"`
	NumWords         uint32 `json:"num_words"`
}

// FulfillmentEventPayload is emitted when a request is fulfilled.
type FulfillmentEventPayload struct {
	RequestID uint64 `json:"request_id"`
	SubID     string `json:"sub_id"`
	Payment   string `json:"payment"`
	Currency  string `json:"currency"`
	Success   bool   `json:"success"`
}

// RaffleEventPayload is emitted for raffle entries, winner requests and
// winner selection.
type RaffleEventPayload struct {
	Player    string `json:"player,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Winner    string `json:"winner,omitempty"`
	Prize     string `json:"prize,omitempty"`
	RequestID uint64 `json:"request_id,omitempty"`
	Entrants  int    `json:"entrants,omitempty"`
}

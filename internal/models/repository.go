package models

type Repository interface {
	RecordEvent(event *Event) error
	RecentEvents(limit int) ([]*Event, error)

	RecordWinner(winner *WinnerRecord) error
	ListWinners(limit int) ([]*WinnerRecord, error)

	Close() error
}

// WinnerRecord is the journal row for a completed raffle cycle.
type WinnerRecord struct {
	// ID is the unique identifier of the record.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// Address is the winner identity.
	Address string `json:"address" gorm:"column:address;index;not null"`
	// Prize is the paid-out amount in the smallest native unit, as a decimal string.
	Prize string `json:"prize" gorm:"column:prize"`
	// RequestID is the randomness request that decided the cycle.
	RequestID uint64 `json:"request_id" gorm:"column:request_id"`
	// Entrants is the number of entrants in the cycle.
	Entrants int `json:"entrants" gorm:"column:entrants"`
	// Timestamp is when the winner was picked.
	Timestamp int64 `json:"timestamp" gorm:"column:timestamp;index"`
}

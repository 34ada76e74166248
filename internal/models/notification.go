package models

import (
	"fmt"
	"math/big"
)

type NotificationService interface {
	SendNotification(notification *Notification)
}

// Notification announces a picked winner to the configured channels.
type Notification struct {
	Winner    string   `json:"winner"`
	Prize     *big.Int `json:"prize"`
	Currency  string   `json:"currency"`
	RequestID uint64   `json:"request_id"`
	Entrants  int      `json:"entrants"`
}

func (n *Notification) String() string {
	return fmt.Sprintf("Raffle winner picked: %s won %s %s (%d entrants, request %d)",
		n.Winner, n.Prize.String(), n.Currency, n.Entrants, n.RequestID)
}

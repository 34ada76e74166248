package repository

import (
	"sync"

	"github.com/core-coin/fortuna/internal/models"
)

// MemoryDB is an in-memory journal used in development mode and by tests,
// when no Postgres instance is configured.
type MemoryDB struct {
	mu      sync.Mutex
	nextID  int64
	events  []*models.Event
	winners []*models.WinnerRecord
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{nextID: 1}
}

func (db *MemoryDB) RecordEvent(event *models.Event) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	event.ID = db.nextID
	db.nextID++
	db.events = append(db.events, event)
	return nil
}

func (db *MemoryDB) RecentEvents(limit int) ([]*models.Event, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]*models.Event, 0, limit)
	for i := len(db.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, db.events[i])
	}
	return out, nil
}

func (db *MemoryDB) RecordWinner(winner *models.WinnerRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	winner.ID = int64(len(db.winners) + 1)
	db.winners = append(db.winners, winner)
	return nil
}

func (db *MemoryDB) ListWinners(limit int) ([]*models.WinnerRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]*models.WinnerRecord, 0, limit)
	for i := len(db.winners) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, db.winners[i])
	}
	return out, nil
}

func (db *MemoryDB) Close() error {
	return nil
}

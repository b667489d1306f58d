package storage

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry records one announced slot.
type Entry struct {
	ID           string    `json:"id"`
	At           time.Time `json:"at"`
	LocationID   string    `json:"location_id"`
	LocationName string    `json:"location_name"`
	Slot         string    `json:"slot"`
	SlotAt       time.Time `json:"slot_at"`
	Message      string    `json:"message"`
	Retained     bool      `json:"retained"`
}

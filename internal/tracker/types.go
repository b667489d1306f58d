package tracker

import (
	"context"
	"errors"
	"time"
)

// Location is a monitored site. ID is opaque (the scheduler API uses integers).
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (l Location) String() string {
	if l.Name != "" {
		return l.Name
	}
	return l.ID
}

// Slot is one candidate appointment as returned by a Source.
// It only lives for the duration of a round.
type Slot struct {
	Start    string `json:"startTimestamp"`
	End      string `json:"endTimestamp,omitempty"`
	Active   bool   `json:"active"`
	Duration int    `json:"duration,omitempty"`
}

// Source returns candidate slots for a location.
//
// ok=false means the fetch failed (transport, status, decode) or returned
// nothing. Implementations never return errors to the tracker.
type Source interface {
	Fetch(ctx context.Context, loc Location) (slots []Slot, ok bool)
}

// Notifier delivers a human-readable message. Only input validation errors
// are returned; transport failures are absorbed by the implementation.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Announcement describes one novel slot that was handed to the Notifier.
type Announcement struct {
	Location Location
	Slot     Normalized
	Message  string
	At       time.Time
	// Retained is false when History was full and the slot was not sooner
	// than the worst retained entry.
	Retained bool
}

// SkipReason labels why a slot did not produce a notification.
type SkipReason string

const (
	SkipMalformed SkipReason = "malformed"
	SkipYear      SkipReason = "year"
	SkipSeen      SkipReason = "seen"
)

// Observer receives tracker events. All methods are called synchronously from
// Process; implementations must be cheap and must not call back into the
// Tracker.
type Observer interface {
	RoundFinished(loc Location, failed bool, novel int, historySize int)
	Announced(a Announcement)
	SlotSkipped(loc Location, reason SkipReason)
}

// YearWindow selects which calendar years are eligible for notification.
type YearWindow string

const (
	YearCurrent     YearWindow = "current"
	YearCurrentNext YearWindow = "next"
)

var (
	ErrEmptyTimestamp      = errors.New("empty timestamp")
	ErrIncompleteTimestamp = errors.New("timestamp lacks a full date and time")
	ErrUnknownLocation     = errors.New("unknown location")
)

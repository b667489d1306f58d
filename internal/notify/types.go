package notify

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmptyMessage = errors.New("message cannot be empty")
	ErrMissingField = errors.New("missing required field")
)

// DefaultSubject is used by channels that carry a subject line.
const DefaultSubject = "Appointment Available"

// Channel delivers one message through one transport.
// Channels that have no notion of a subject ignore it.
type Channel interface {
	Name() string
	Send(ctx context.Context, subject, body string) error
}

// Config controls delivery policy shared by all channels.
type Config struct {
	Subject       string
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
	HistorySize   int
}

// HistoryItem records one delivered message.
type HistoryItem struct {
	At      time.Time `json:"at"`
	Channel string    `json:"channel"`
	Text    string    `json:"text"`
}

package schedapi

import (
	"context"

	logx "slotwatch/pkg/logx"

	"slotwatch/internal/tracker"
)

// Source adapts Client to tracker.Source: any failure becomes (nil, false).
type Source struct {
	client *Client
	log    logx.Logger
}

func NewSource(c *Client, log logx.Logger) *Source {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Source{client: c, log: log}
}

func (s *Source) Fetch(ctx context.Context, loc tracker.Location) ([]tracker.Slot, bool) {
	slots, err := s.client.Slots(ctx, loc.ID)
	if err != nil {
		s.log.Error("slot fetch failed", logx.String("location", loc.String()), logx.String("location_id", loc.ID), logx.Err(err))
		return nil, false
	}
	if len(slots) == 0 {
		return nil, false
	}
	return slots, true
}

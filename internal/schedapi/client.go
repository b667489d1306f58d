package schedapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	logx "slotwatch/pkg/logx"

	"slotwatch/internal/tracker"
)

var (
	ErrStatus    = errors.New("unexpected status")
	ErrBadLookup = errors.New("empty city")
)

// maxBody caps response bodies; the endpoints return small JSON arrays.
const maxBody = 4 << 20

// Client talks to the scheduler API.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
	now  func() time.Time

	// locations cache (by lower-cased city)
	locMu      sync.Mutex
	locByCity  map[string]LocationInfo
	locFetched time.Time
}

func NewClient(cfg Config, hc *http.Client, log logx.Logger) *Client {
	cfg = cfg.withDefaults()
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, http: hc, log: log, now: time.Now}
}

// Slots returns the soonest open slots for a location.
func (c *Client) Slots(ctx context.Context, locationID string) ([]tracker.Slot, error) {
	q := url.Values{}
	q.Set("orderBy", "soonest")
	q.Set("limit", strconv.Itoa(c.cfg.Limit))
	q.Set("locationId", locationID)
	q.Set("minimum", strconv.Itoa(c.cfg.Minimum))

	var raw []apiSlot
	if err := c.getJSON(ctx, "slots", q, &raw); err != nil {
		return nil, fmt.Errorf("slots for location %s: %w", locationID, err)
	}

	out := make([]tracker.Slot, 0, len(raw))
	for _, s := range raw {
		start := ""
		if s.StartTimestamp != nil {
			start = *s.StartTimestamp
		} else {
			c.log.Debug("slot without startTimestamp", logx.String("location_id", locationID))
		}
		out = append(out, tracker.Slot{Start: start, End: s.EndTimestamp, Active: s.Active, Duration: s.Duration})
	}
	return out, nil
}

// Locations returns operational locations offering the configured service,
// indexed by lower-cased city. Results are cached for LocationTTL.
func (c *Client) Locations(ctx context.Context) (map[string]LocationInfo, error) {
	c.locMu.Lock()
	defer c.locMu.Unlock()

	if c.locByCity != nil && c.now().Sub(c.locFetched) < c.cfg.LocationTTL {
		return c.locByCity, nil
	}

	q := url.Values{}
	q.Set("temporary", "false")
	q.Set("inviteOnly", "false")
	q.Set("operational", "true")
	q.Set("serviceName", c.cfg.ServiceName)

	var raw []LocationInfo
	if err := c.getJSON(ctx, "locations/", q, &raw); err != nil {
		return nil, fmt.Errorf("locations: %w", err)
	}
	byCity := make(map[string]LocationInfo, len(raw))
	for _, l := range raw {
		key := cityKey(l.City)
		if key == "" {
			continue
		}
		byCity[key] = l
	}
	c.locByCity = byCity
	c.locFetched = c.now()
	return byCity, nil
}

// LookupCity resolves a city name (case and surrounding space insensitive).
func (c *Client) LookupCity(ctx context.Context, city string) (LocationInfo, error) {
	key := cityKey(city)
	if key == "" {
		return LocationInfo{}, ErrBadLookup
	}
	locs, err := c.Locations(ctx)
	if err != nil {
		return LocationInfo{}, err
	}
	l, ok := locs[key]
	if !ok {
		return LocationInfo{}, fmt.Errorf("%w: no location found for city %q", tracker.ErrUnknownLocation, city)
	}
	return l, nil
}

func cityKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.cfg.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

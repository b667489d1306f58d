package schedapi

import (
	"encoding/json"
	"strings"
	"time"

	"slotwatch/internal/tracker"
)

const (
	DefaultBaseURL     = "https://ttp.cbp.dhs.gov/schedulerapi/"
	DefaultServiceName = "Global Entry"
	DefaultLimit       = 5
	DefaultMinimum     = 1
	DefaultTimeout     = 10 * time.Second
	DefaultLocationTTL = 15 * 24 * time.Hour
)

// Config configures the scheduler API client.
type Config struct {
	BaseURL     string
	ServiceName string
	Limit       int
	Minimum     int
	Timeout     time.Duration
	LocationTTL time.Duration
	UserAgent   string
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	if strings.TrimSpace(c.ServiceName) == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.Minimum <= 0 {
		c.Minimum = DefaultMinimum
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.LocationTTL <= 0 {
		c.LocationTTL = DefaultLocationTTL
	}
	if c.UserAgent == "" {
		c.UserAgent = "slotwatch/1.0"
	}
	return c
}

// LocationInfo is one entry of the locations endpoint.
type LocationInfo struct {
	ID          json.Number `json:"id"`
	Name        string      `json:"name"`
	ShortName   string      `json:"shortName,omitempty"`
	City        string      `json:"city"`
	State       string      `json:"state,omitempty"`
	CountryCode string      `json:"countryCode,omitempty"`
	TZData      string      `json:"tzData,omitempty"`
}

// Location converts the API record to a tracker.Location named after its city.
func (l LocationInfo) Location() tracker.Location {
	name := strings.TrimSpace(l.City)
	if name == "" {
		name = strings.TrimSpace(l.Name)
	}
	return tracker.Location{ID: l.ID.String(), Name: name}
}

// apiSlot mirrors the slots endpoint. Start is a pointer so a missing field
// can be told apart from an empty one in logs.
type apiSlot struct {
	LocationID     json.Number `json:"locationId"`
	StartTimestamp *string     `json:"startTimestamp"`
	EndTimestamp   string      `json:"endTimestamp"`
	Active         bool        `json:"active"`
	Duration       int         `json:"duration"`
}

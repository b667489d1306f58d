package tracker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DisplayLayout is the layout of Normalized.Text without the zone label.
const DisplayLayout = "2006-01-02 15:04"

// Normalized is a slot start time converted to the reference zone.
//
// Text is the identity used for dedup; At is used for ordering only.
type Normalized struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Less orders by instant, then by text so ordering stays total.
func (n Normalized) Less(o Normalized) bool {
	if !n.At.Equal(o.At) {
		return n.At.Before(o.At)
	}
	return n.Text < o.Text
}

// Layouts tried before the free-form parser. The scheduler API sends local
// wall-clock times without an offset ("2025-03-01T09:00").
var inputLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// The free-form parser fills in whatever the input leaves out, so it only
// sees input carrying a complete date (with a four digit year) and an HH:MM
// clock.
var (
	clockPattern = regexp.MustCompile(`(^|[^0-9])\d{1,2}:\d{2}`)
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(^|[^0-9])(\d{4})[-/.]\d{1,2}[-/.]\d{1,2}([^0-9]|$)`),
		regexp.MustCompile(`(^|[^0-9])\d{1,2}[-/.]\d{1,2}[-/.](\d{4})([^0-9]|$)`),
		regexp.MustCompile(`(?i)(^|[^a-z])[a-z]{3,9}\.? +\d{1,2}(st|nd|rd|th)?,? +(\d{4})([^0-9]|$)`),
		regexp.MustCompile(`(?i)(^|[^0-9])\d{1,2} +[a-z]{3,9}\.?,? +(\d{4})([^0-9]|$)`),
	}
)

// Normalizer converts raw timestamps into Normalized values.
type Normalizer struct {
	target *time.Location
	source *time.Location
	label  string
}

// NewNormalizer builds a Normalizer that formats in target. Inputs without an
// offset are read in source (nil means target). An empty label uses the
// zone abbreviation of each instant.
func NewNormalizer(target, source *time.Location, label string) *Normalizer {
	if target == nil {
		target = time.UTC
	}
	if source == nil {
		source = target
	}
	return &Normalizer{target: target, source: source, label: strings.TrimSpace(label)}
}

// LoadNormalizer resolves IANA zone names and builds a Normalizer.
func LoadNormalizer(targetZone, sourceZone, label string) (*Normalizer, error) {
	target, err := time.LoadLocation(strings.TrimSpace(targetZone))
	if err != nil {
		return nil, fmt.Errorf("target timezone %q: %w", targetZone, err)
	}
	var source *time.Location
	if s := strings.TrimSpace(sourceZone); s != "" {
		source, err = time.LoadLocation(s)
		if err != nil {
			return nil, fmt.Errorf("source timezone %q: %w", sourceZone, err)
		}
	}
	return NewNormalizer(target, source, label), nil
}

// Location returns the reference zone.
func (n *Normalizer) Location() *time.Location { return n.target }

// Normalize parses raw and formats it in the reference zone.
func (n *Normalizer) Normalize(raw string) (Normalized, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Normalized{}, ErrEmptyTimestamp
	}
	t, err := n.parse(s)
	if err != nil {
		return Normalized{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	t = t.In(n.target)
	label := n.label
	if label == "" {
		label, _ = t.Zone()
	}
	return Normalized{Text: t.Format(DisplayLayout) + " " + label, At: t}, nil
}

func (n *Normalizer) parse(s string) (time.Time, error) {
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, s, n.source); err == nil {
			return t, nil
		}
	}
	year, ok := completeDateYear(s)
	if !ok || !clockPattern.MatchString(s) {
		return time.Time{}, ErrIncompleteTimestamp
	}
	t, err := dateparse.ParseIn(s, n.source)
	if err != nil {
		return time.Time{}, err
	}
	if t.Year() != year {
		return time.Time{}, ErrIncompleteTimestamp
	}
	return t, nil
}

// completeDateYear reports the year of the first full date found in s.
func completeDateYear(s string) (int, bool) {
	for _, re := range datePatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		for _, g := range m[1:] {
			if len(g) == 4 {
				if y, err := strconv.Atoi(g); err == nil && y > 0 {
					return y, true
				}
			}
		}
	}
	return 0, false
}

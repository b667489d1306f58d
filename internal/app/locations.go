package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"slotwatch/internal/config"
	"slotwatch/internal/schedapi"
	"slotwatch/internal/tracker"
	logx "slotwatch/pkg/logx"
)

var ErrNoLocations = errors.New("no locations to watch")

// CityPicker lets an operator choose cities when none are configured.
type CityPicker func(ctx context.Context, available []schedapi.LocationInfo) ([]string, error)

type cityResolver interface {
	Locations(ctx context.Context) (map[string]schedapi.LocationInfo, error)
	LookupCity(ctx context.Context, city string) (schedapi.LocationInfo, error)
}

// resolveLocations merges configured ids with configured (or picked)
// cities. Duplicates by id keep the first occurrence.
func resolveLocations(ctx context.Context, w config.WatchConfig, api cityResolver, pick CityPicker, log logx.Logger) ([]tracker.Location, error) {
	var out []tracker.Location
	seen := map[string]bool{}
	add := func(l tracker.Location) {
		if seen[l.ID] {
			return
		}
		seen[l.ID] = true
		out = append(out, l)
	}

	for _, l := range w.Locations {
		name := strings.TrimSpace(l.Name)
		add(tracker.Location{ID: strconv.Itoa(l.ID), Name: name})
	}

	cities := w.Cities
	if len(out) == 0 && len(cities) == 0 && pick != nil {
		all, err := api.Locations(ctx)
		if err != nil {
			return nil, err
		}
		avail := make([]schedapi.LocationInfo, 0, len(all))
		for _, l := range all {
			avail = append(avail, l)
		}
		sort.Slice(avail, func(i, j int) bool { return avail[i].City < avail[j].City })
		cities, err = pick(ctx, avail)
		if err != nil {
			return nil, fmt.Errorf("pick cities: %w", err)
		}
	}

	for _, city := range cities {
		info, err := api.LookupCity(ctx, city)
		if err != nil {
			return nil, err
		}
		loc := info.Location()
		log.Info("resolved city", logx.String("city", city), logx.String("location_id", loc.ID))
		add(loc)
	}

	if len(out) == 0 {
		return nil, ErrNoLocations
	}
	return out, nil
}

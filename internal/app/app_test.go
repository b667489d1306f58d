package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"slotwatch/internal/config"
	"slotwatch/internal/poller"
	"slotwatch/internal/schedapi"
	logx "slotwatch/pkg/logx"
)

type fakeResolver struct {
	all     map[string]schedapi.LocationInfo
	lookups []string
}

func (f *fakeResolver) Locations(context.Context) (map[string]schedapi.LocationInfo, error) {
	return f.all, nil
}

func (f *fakeResolver) LookupCity(_ context.Context, city string) (schedapi.LocationInfo, error) {
	f.lookups = append(f.lookups, city)
	for _, l := range f.all {
		if l.City == city {
			return l, nil
		}
	}
	return schedapi.LocationInfo{}, errors.New("unknown city " + city)
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{all: map[string]schedapi.LocationInfo{
		"austin":  {ID: json.Number("5002"), City: "Austin", State: "TX"},
		"chicago": {ID: json.Number("5183"), City: "Chicago", State: "IL"},
	}}
}

func TestResolveLocationsMergesAndDedupes(t *testing.T) {
	api := newFakeResolver()
	w := config.WatchConfig{
		Locations: []config.LocationConfig{{ID: 5183, Name: "O'Hare"}, {ID: 7}},
		Cities:    []string{"Chicago", "Austin"},
	}
	got, err := resolveLocations(context.Background(), w, api, nil, logx.Nop())
	if err != nil {
		t.Fatalf("resolveLocations: %v", err)
	}
	want := []string{"5183", "7", "5002"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("got[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
	if got[0].Name != "O'Hare" || got[2].Name != "Austin" {
		t.Fatalf("names = %q, %q", got[0].Name, got[2].Name)
	}
}

func TestResolveLocationsUsesPickerOnlyWhenEmpty(t *testing.T) {
	api := newFakeResolver()
	var offered []schedapi.LocationInfo
	pick := func(_ context.Context, avail []schedapi.LocationInfo) ([]string, error) {
		offered = avail
		return []string{"Austin"}, nil
	}

	got, err := resolveLocations(context.Background(), config.WatchConfig{}, api, pick, logx.Nop())
	if err != nil {
		t.Fatalf("resolveLocations: %v", err)
	}
	if len(got) != 1 || got[0].ID != "5002" {
		t.Fatalf("got %v", got)
	}
	if len(offered) != 2 || offered[0].City != "Austin" {
		t.Fatalf("offered = %v", offered)
	}

	offered = nil
	w := config.WatchConfig{Locations: []config.LocationConfig{{ID: 1}}}
	if _, err := resolveLocations(context.Background(), w, api, pick, logx.Nop()); err != nil {
		t.Fatalf("resolveLocations: %v", err)
	}
	if offered != nil {
		t.Fatal("picker should not run when locations are configured")
	}
}

func TestResolveLocationsEmpty(t *testing.T) {
	_, err := resolveLocations(context.Background(), config.WatchConfig{}, newFakeResolver(), nil, logx.Nop())
	if !errors.Is(err, ErrNoLocations) {
		t.Fatalf("err = %v", err)
	}
}

func TestResolveLocationsUnknownCity(t *testing.T) {
	w := config.WatchConfig{Cities: []string{"Atlantis"}}
	if _, err := resolveLocations(context.Background(), w, newFakeResolver(), nil, logx.Nop()); err == nil {
		t.Fatal("want error for unknown city")
	}
}

func TestMapStorageConfig(t *testing.T) {
	cases := []struct {
		name    string
		in      *config.StorageConfig
		enabled bool
		driver  string
		path    string
		wantErr bool
	}{
		{name: "nil", in: nil},
		{name: "none", in: &config.StorageConfig{Driver: "none"}},
		{name: "file default path", in: &config.StorageConfig{Driver: "file"}, enabled: true, driver: "file", path: "./slotwatch"},
		{name: "sqlite", in: &config.StorageConfig{Driver: "SQLite", Path: "/tmp/x.db"}, enabled: true, driver: "sqlite", path: "/tmp/x.db"},
		{name: "sqlite3 alias", in: &config.StorageConfig{Driver: "sqlite3", Path: "/tmp/y.db"}, enabled: true, driver: "sqlite", path: "/tmp/y.db"},
		{name: "sqlite needs path", in: &config.StorageConfig{Driver: "sqlite"}, wantErr: true},
		{name: "unknown", in: &config.StorageConfig{Driver: "redis"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc, enabled, err := mapStorageConfig(&config.Config{Storage: tc.in})
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v", err)
			}
			if enabled != tc.enabled || sc.Driver != tc.driver || sc.Path != tc.path {
				t.Fatalf("got %+v enabled=%v", sc, enabled)
			}
			if tc.driver == "sqlite" && sc.BusyTimeout != time.Second {
				t.Fatalf("BusyTimeout = %s", sc.BusyTimeout)
			}
		})
	}
}

func TestMapPollConfigDefaults(t *testing.T) {
	pc, err := mapPollConfig(&config.Config{})
	if err != nil {
		t.Fatalf("mapPollConfig: %v", err)
	}
	if pc.Schedule.Kind != poller.SpecInterval || pc.Schedule.Every != poller.DefaultInterval {
		t.Fatalf("schedule = %+v", pc.Schedule)
	}
	if pc.RetryInterval != poller.DefaultRetryInterval {
		t.Fatalf("retry = %s", pc.RetryInterval)
	}

	if _, err := mapPollConfig(&config.Config{Poll: config.PollConfig{Interval: "soon"}}); err == nil {
		t.Fatal("want error for bad interval")
	}
}

func TestMapTrackerOptions(t *testing.T) {
	opts, err := mapTrackerOptions(&config.Config{})
	if err != nil {
		t.Fatalf("mapTrackerOptions: %v", err)
	}
	if len(opts) != 3 {
		t.Fatalf("len(opts) = %d", len(opts))
	}

	bad := &config.Config{Watch: config.WatchConfig{Timezone: "Mars/Olympus"}}
	if _, err := mapTrackerOptions(bad); err == nil {
		t.Fatal("want error for unknown zone")
	}
	bad = &config.Config{Watch: config.WatchConfig{YearWindow: "last"}}
	if _, err := mapTrackerOptions(bad); err == nil {
		t.Fatal("want error for unknown year window")
	}
}

func TestMapNotifierConfig(t *testing.T) {
	cfg := &config.Config{Notifier: config.NotifierConfig{
		Channels:  []string{"telegram", "Telegram"},
		RetryMax:  2,
		RetryBase: "2s",
		Telegram:  config.TelegramConfig{Token: "123:abc", ChatID: 42},
	}}
	ncfg, chans, err := mapNotifierConfig(cfg)
	if err != nil {
		t.Fatalf("mapNotifierConfig: %v", err)
	}
	if len(chans) != 1 || chans[0].Name() != "telegram" {
		t.Fatalf("channels = %v", chans)
	}
	if ncfg.RetryMax != 2 || ncfg.RetryBase != 2*time.Second {
		t.Fatalf("ncfg = %+v", ncfg)
	}

	_, chans, err = mapNotifierConfig(&config.Config{})
	if err != nil || len(chans) != 0 {
		t.Fatalf("log-only: %v %v", chans, err)
	}

	if _, _, err := mapNotifierConfig(&config.Config{Notifier: config.NotifierConfig{Channels: []string{"pager"}}}); err == nil {
		t.Fatal("want error for unknown channel")
	}
	if _, _, err := mapNotifierConfig(&config.Config{Notifier: config.NotifierConfig{Channels: []string{"email"}}}); err == nil {
		t.Fatal("want error for incomplete email config")
	}
}

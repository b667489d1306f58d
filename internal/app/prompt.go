package app

import (
	"context"
	"errors"
	"os"
	"strings"

	"slotwatch/internal/schedapi"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// Interactive reports whether stdin is a terminal.
func Interactive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// PromptCities asks the operator to pick one or more enrollment cities.
func PromptCities(ctx context.Context, available []schedapi.LocationInfo) ([]string, error) {
	if len(available) == 0 {
		return nil, errors.New("scheduler returned no locations")
	}
	opts := make([]huh.Option[string], 0, len(available))
	for _, l := range available {
		label := l.City
		if st := strings.TrimSpace(l.State); st != "" {
			label += ", " + st
		}
		if n := strings.TrimSpace(l.Name); n != "" {
			label += " (" + n + ")"
		}
		opts = append(opts, huh.NewOption(label, l.City))
	}

	var selected []string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Which cities should be watched?").
				Description("Space to toggle, enter to confirm").
				Options(opts...).
				Filterable(true).
				Validate(func(v []string) error {
					if len(v) == 0 {
						return errors.New("pick at least one city")
					}
					return nil
				}).
				Value(&selected),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return nil, err
	}
	return selected, nil
}

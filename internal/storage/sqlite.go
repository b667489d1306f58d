package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "slotwatch/pkg/logx"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var schemaSQL string

type sqliteStore struct {
	db  *sqlx.DB
	log logx.Logger
}

type entryRow struct {
	ID           string `db:"id"`
	At           string `db:"at"`
	LocationID   string `db:"location_id"`
	LocationName string `db:"location_name"`
	Slot         string `db:"slot"`
	SlotAt       string `db:"slot_at"`
	Message      string `db:"message"`
	Retained     int    `db:"retained"`
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Debug("journal opened", logx.String("driver", "sqlite"), logx.String("path", path))
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Append(ctx context.Context, e Entry) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	row := entryRow{
		ID:           e.ID,
		At:           e.At.UTC().Format(time.RFC3339Nano),
		LocationID:   e.LocationID,
		LocationName: e.LocationName,
		Slot:         e.Slot,
		Message:      e.Message,
	}
	if !e.SlotAt.IsZero() {
		row.SlotAt = e.SlotAt.Format(time.RFC3339)
	}
	if e.Retained {
		row.Retained = 1
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO announcements(id, at, location_id, location_name, slot, slot_at, message, retained)
		 VALUES(:id, :at, :location_id, :location_name, :slot, :slot_at, :message, :retained)`,
		row,
	)
	return err
}

func (s *sqliteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		return nil, nil
	}
	var rows []entryRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, at, location_id, location_name, slot, slot_at, message, retained
		 FROM announcements ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e := Entry{
			ID:           r.ID,
			LocationID:   r.LocationID,
			LocationName: r.LocationName,
			Slot:         r.Slot,
			Message:      r.Message,
			Retained:     r.Retained != 0,
		}
		e.At, _ = time.Parse(time.RFC3339Nano, r.At)
		if r.SlotAt != "" {
			e.SlotAt, _ = time.Parse(time.RFC3339, r.SlotAt)
		}
		out = append(out, e)
	}
	return out, nil
}

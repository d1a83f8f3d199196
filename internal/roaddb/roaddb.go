// Package roaddb records pipeline runs and their accepted road sections in
// a sqlite catalog next to the stage artifacts. The catalog is an
// observability layer: the pipeline keeps running when it cannot be
// opened.
package roaddb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migsqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is the run catalog handle.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the catalog at path and applies pending
// migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db := &DB{sqlDB}
	if err := db.migrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migsqlite.WithInstance(db.DB, &migsqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[roaddb] "+format, v...)
}

func (l *migrateLogger) Verbose() bool { return false }

// Run is one catalog entry per pipeline run.
type Run struct {
	ID          string
	Sector      string
	Step        string
	CloudAccess int
	PadSize     int
	BufferSize  int
	Seeds       int
	Unused      int
	Roads       int
	Duration    time.Duration
	StartedAt   time.Time
}

// Road is one accepted road section of a run.
type Road struct {
	RunID      string
	Label      int
	PixelCount int
	MinX, MinY int
	MaxX, MaxY int
	SeedX1     int
	SeedY1     int
	SeedX2     int
	SeedY2     int
}

// RecordRun inserts a run row, assigning a fresh id when none is set.
func (db *DB) RecordRun(r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := db.Exec(`
		INSERT INTO runs (
			run_id, sector, step, cloud_access, pad_size, buffer_size,
			seed_count, unused_seeds, road_count, duration_ms, started_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Sector, r.Step, r.CloudAccess, r.PadSize, r.BufferSize,
		r.Seeds, r.Unused, r.Roads, r.Duration.Milliseconds(), r.StartedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// InsertRoad inserts one road section row.
func (db *DB) InsertRoad(road *Road) error {
	_, err := db.Exec(`
		INSERT INTO roads (
			run_id, label, pixel_count, min_x, min_y, max_x, max_y,
			seed_x1, seed_y1, seed_x2, seed_y2
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		road.RunID, road.Label, road.PixelCount,
		road.MinX, road.MinY, road.MaxX, road.MaxY,
		road.SeedX1, road.SeedY1, road.SeedX2, road.SeedY2)
	if err != nil {
		return fmt.Errorf("insert road: %w", err)
	}
	return nil
}

// GetRun fetches one run by id.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT run_id, sector, step, cloud_access, pad_size, buffer_size,
		       seed_count, unused_seeds, road_count, duration_ms, started_unix_nanos
		FROM runs WHERE run_id = ?`, id)
	var r Run
	var durationMs, startedNanos int64
	err := row.Scan(&r.ID, &r.Sector, &r.Step, &r.CloudAccess, &r.PadSize,
		&r.BufferSize, &r.Seeds, &r.Unused, &r.Roads, &durationMs, &startedNanos)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	r.Duration = time.Duration(durationMs) * time.Millisecond
	r.StartedAt = time.Unix(0, startedNanos)
	return &r, nil
}

// RoadsOfRun fetches the road sections of a run, ordered by label.
func (db *DB) RoadsOfRun(id string) ([]Road, error) {
	rows, err := db.Query(`
		SELECT run_id, label, pixel_count, min_x, min_y, max_x, max_y,
		       seed_x1, seed_y1, seed_x2, seed_y2
		FROM roads WHERE run_id = ? ORDER BY label`, id)
	if err != nil {
		return nil, fmt.Errorf("query roads of %s: %w", id, err)
	}
	defer rows.Close()
	var out []Road
	for rows.Next() {
		var r Road
		if err := rows.Scan(&r.RunID, &r.Label, &r.PixelCount,
			&r.MinX, &r.MinY, &r.MaxX, &r.MaxY,
			&r.SeedX1, &r.SeedY1, &r.SeedX2, &r.SeedY2); err != nil {
			return nil, fmt.Errorf("scan road: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunCount returns the number of recorded runs.
func (db *DB) RunCount() (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

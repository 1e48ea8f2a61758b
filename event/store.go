/*
DESCRIPTION
  store.go provides Store, a Sink that records motion events in an SQLite
  database.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package event

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// schema.sql contains the statements for creating the motion event table.
//
//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned by Get when no event has the requested ID.
var ErrNotFound = errors.New("event not found")

// Store provides persistence for motion events.
type Store struct {
	db *sql.DB
}

// Open opens or creates the event database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open event db: %w", err)
	}
	// SQLite has a single writer and :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(schemaSQL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create event schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Insert records a new event. If e.ID is empty, a new UUID is generated.
func (s *Store) Insert(e *Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	query := `
		INSERT INTO motion_events (event_id, start_ns, end_ns, frames, peak_active)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, e.ID, e.Start.UnixNano(), nullTime(e.End), e.Frames, e.Peak)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Update records the end, frame count and peak of an existing event.
func (s *Store) Update(e *Event) error {
	query := `
		UPDATE motion_events
		SET end_ns = ?, frames = ?, peak_active = ?
		WHERE event_id = ?
	`
	res, err := s.db.Exec(query, nullTime(e.End), e.Frames, e.Peak, e.ID)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update event %s: %w", e.ID, ErrNotFound)
	}
	return nil
}

// Get retrieves an event by ID.
func (s *Store) Get(id string) (*Event, error) {
	query := `
		SELECT event_id, start_ns, end_ns, frames, peak_active
		FROM motion_events
		WHERE event_id = ?
	`
	e, err := scanEvent(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// List retrieves events that started at or after since, newest first. A zero
// since lists all events. If limit is greater than zero at most limit events
// are returned.
func (s *Store) List(since time.Time, limit int) ([]*Event, error) {
	query := `
		SELECT event_id, start_ns, end_ns, frames, peak_active
		FROM motion_events
		WHERE start_ns >= ?
		ORDER BY start_ns DESC
	`
	from := int64(math.MinInt64)
	if !since.IsZero() {
		from = since.UnixNano()
	}
	args := []interface{}{from}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row scanner) (*Event, error) {
	var e Event
	var start int64
	var end sql.NullInt64
	err := row.Scan(&e.ID, &start, &end, &e.Frames, &e.Peak)
	if err != nil {
		return nil, err
	}
	e.Start = time.Unix(0, start)
	if end.Valid {
		e.End = time.Unix(0, end.Int64)
	}
	return &e, nil
}

func nullTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"feedwatch/internal/model"
	"feedwatch/internal/seen"
	"feedwatch/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// LoadStates returns the persisted state of every known source.
func (s *SQLite) LoadStates(ctx context.Context) (map[string]CheckState, error) {
	states := make(map[string]CheckState)

	rows, err := s.db.QueryContext(ctx, `SELECT url, last_update FROM source_state`)
	if err != nil {
		return nil, fmt.Errorf("query source state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var url, lastStr string
		if err := rows.Scan(&url, &lastStr); err != nil {
			return nil, fmt.Errorf("scan source state: %w", err)
		}
		last, err := time.Parse(timeLayout, lastStr)
		if err != nil {
			return nil, fmt.Errorf("parse last_update for %s: %w", url, err)
		}
		states[url] = CheckState{LastUpdate: last, Seen: seen.Store{}}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source state: %w", err)
	}

	if err := s.loadSeen(ctx, states); err != nil {
		return nil, err
	}
	return states, nil
}

func (s *SQLite) loadSeen(ctx context.Context, states map[string]CheckState) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_url, entry_id, removed_at FROM seen_entries`)
	if err != nil {
		return fmt.Errorf("query seen entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var url, id string
		var removed sql.NullString
		if err := rows.Scan(&url, &id, &removed); err != nil {
			return fmt.Errorf("scan seen entry: %w", err)
		}
		st, ok := states[url]
		if !ok {
			continue
		}
		var at time.Time
		if removed.Valid {
			at, err = time.Parse(timeLayout, removed.String)
			if err != nil {
				return fmt.Errorf("parse removed_at for %s: %w", url, err)
			}
		}
		st.Seen[id] = at
	}
	return rows.Err()
}

// ReplaceState atomically replaces the persisted state of one source.
// The seen-entry set and last-update time change together or not at all.
func (s *SQLite) ReplaceState(ctx context.Context, url string, st CheckState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	last := st.LastUpdate.UTC().Format(timeLayout)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO source_state (url, last_update) VALUES (?, ?)
		 ON CONFLICT (url) DO UPDATE SET last_update = excluded.last_update`,
		url, last,
	); err != nil {
		return fmt.Errorf("upsert source state: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM seen_entries WHERE source_url = ?`, url,
	); err != nil {
		return fmt.Errorf("clear seen entries: %w", err)
	}

	for id, removed := range st.Seen {
		var removedStr *string
		if !removed.IsZero() {
			v := removed.UTC().Format(timeLayout)
			removedStr = &v
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO seen_entries (source_url, entry_id, removed_at) VALUES (?, ?, ?)`,
			url, id, removedStr,
		); err != nil {
			return fmt.Errorf("insert seen entry: %w", err)
		}
	}
	return tx.Commit()
}

// LoadUnsent returns the notifications carried over from previous runs, in
// the order they were queued.
func (s *SQLite) LoadUnsent(ctx context.Context) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sender, subject, body, destination FROM unsent_notifications ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query unsent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var notifs []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.Sender, &n.Subject, &n.Body, &n.Destination); err != nil {
			return nil, fmt.Errorf("scan unsent: %w", err)
		}
		notifs = append(notifs, n)
	}
	return notifs, rows.Err()
}

// ReplaceUnsent replaces the carried-over notification list.
func (s *SQLite) ReplaceUnsent(ctx context.Context, notifs []model.Notification) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM unsent_notifications`); err != nil {
		return fmt.Errorf("clear unsent: %w", err)
	}
	now := time.Now().UTC().Format(timeLayout)
	for _, n := range notifs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO unsent_notifications (sender, subject, body, destination, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			n.Sender, n.Subject, n.Body, n.Destination, now,
		); err != nil {
			return fmt.Errorf("insert unsent: %w", err)
		}
	}
	return tx.Commit()
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/lifetimes/internal/refgraph"
)

var (
	// ErrRunNotFound is returned when no run has the requested token.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunConflict is returned when a run token is reused for a trace with
	// a different digest.
	ErrRunConflict = errors.New("run token already recorded with a different digest")
)

// Run summarizes a stored simulator trace.
type Run struct {
	Token      string `json:"token"`
	Name       string `json:"name"`
	Digest     string `json:"digest"`
	EventCount int    `json:"event_count"`
}

// WriteRun records a run and its events in one transaction.
//
// Writing the same run twice is a no-op. Writing a different trace under an
// existing token fails with ErrRunConflict.
func (s *Store) WriteRun(ctx context.Context, run Run, events []refgraph.Event) error {
	run.EventCount = len(events)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (token, name, digest, event_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`, run.Token, run.Name, run.Digest, run.EventCount)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("write run: %w", err)
	} else if n == 0 {
		var digest string
		if err := tx.QueryRowContext(ctx, `SELECT digest FROM runs WHERE token = ?`, run.Token).Scan(&digest); err != nil {
			return fmt.Errorf("write run: %w", err)
		}
		if digest != run.Digest {
			return fmt.Errorf("write run %s: %w", run.Token, ErrRunConflict)
		}
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (run_token, seq, type, object, label, ref, kind, holder, scope, field)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write run: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		kind := ""
		if e.Kind != 0 {
			kind = e.Kind.String()
		}
		if _, err := stmt.ExecContext(ctx,
			run.Token, e.Seq, string(e.Type), int64(e.Object), e.Label,
			int64(e.Ref), kind, int64(e.Holder), e.Scope, e.Field,
		); err != nil {
			return fmt.Errorf("write event seq=%d: %w", e.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

// ReadRun returns the run stored under token.
func (s *Store) ReadRun(ctx context.Context, token string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT token, name, digest, event_count FROM runs WHERE token = ?
	`, token).Scan(&r.Token, &r.Name, &r.Digest, &r.EventCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", token, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", token, err)
	}
	return r, nil
}

// ListRuns returns every stored run ordered by token. UUIDv7 tokens sort
// in creation order.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, name, digest, event_count FROM runs
		ORDER BY token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.Token, &r.Name, &r.Digest, &r.EventCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadEvents returns a run's events in seq order. Returns an empty slice
// (not nil) when the run has no events.
func (s *Store) ReadEvents(ctx context.Context, token string) ([]refgraph.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, type, object, label, ref, kind, holder, scope, field
		FROM events
		WHERE run_token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []refgraph.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadObjectEvents returns the events of one object within a run.
func (s *Store) ReadObjectEvents(ctx context.Context, token string, object refgraph.ObjectID) ([]refgraph.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, type, object, label, ref, kind, holder, scope, field
		FROM events
		WHERE run_token = ? AND object = ?
		ORDER BY seq ASC
	`, token, int64(object))
	if err != nil {
		return nil, fmt.Errorf("query object events: %w", err)
	}
	defer rows.Close()

	events := []refgraph.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate object events: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (refgraph.Event, error) {
	var (
		e                   refgraph.Event
		typ, kind           string
		object, ref, holder int64
	)
	if err := rows.Scan(&e.Seq, &typ, &object, &e.Label, &ref, &kind, &holder, &e.Scope, &e.Field); err != nil {
		return refgraph.Event{}, fmt.Errorf("scan event: %w", err)
	}
	e.Type = refgraph.EventType(typ)
	e.Object = refgraph.ObjectID(object)
	e.Ref = refgraph.RefID(ref)
	e.Holder = refgraph.ObjectID(holder)
	if kind != "" {
		k, err := refgraph.ParseRefKind(kind)
		if err != nil {
			return refgraph.Event{}, fmt.Errorf("scan event seq=%d: %w", e.Seq, err)
		}
		e.Kind = k
	}
	return e, nil
}

package journal

import (
	"context"
	"encoding/json"
	"fmt"
)

// ReactorRecord is a row of the reactors table with its row counts.
type ReactorRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	States  int    `json:"states"`
	Signals int    `json:"signals"`
}

// StateRecord is one observed state.
type StateRecord struct {
	Reactor  string          `json:"reactor"`
	Position int64           `json:"position"`
	State    json.RawMessage `json:"state"`
}

// SignalRecord is one observed event or error.
type SignalRecord struct {
	ID       int64           `json:"id"`
	Reactor  string          `json:"reactor"`
	Kind     SignalKind      `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	Expected bool            `json:"expected"`
}

// Message returns the error message of an error signal, or "" for events.
func (r SignalRecord) Message() string {
	if r.Kind != KindError {
		return ""
	}
	var p errorPayload
	if err := json.Unmarshal(r.Payload, &p); err != nil {
		return ""
	}
	return p.Message
}

// ListReactors returns every recorded reactor ordered by id.
// Returns an empty slice (not nil) when there are none.
func (j *Journal) ListReactors(ctx context.Context) ([]ReactorRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT r.id, r.name,
			(SELECT COUNT(*) FROM states s WHERE s.reactor = r.id),
			(SELECT COUNT(*) FROM signals g WHERE g.reactor = r.id)
		FROM reactors r
		ORDER BY r.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query reactors: %w", err)
	}
	defer rows.Close()

	out := []ReactorRecord{}
	for rows.Next() {
		var r ReactorRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.States, &r.Signals); err != nil {
			return nil, fmt.Errorf("scan reactor: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactors: %w", err)
	}
	return out, nil
}

// ReadStates returns a reactor's states ordered by position.
func (j *Journal) ReadStates(ctx context.Context, reactorID string) ([]StateRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT reactor, position, state
		FROM states
		WHERE reactor = ?
		ORDER BY position ASC
	`, reactorID)
	if err != nil {
		return nil, fmt.Errorf("query states: %w", err)
	}
	defer rows.Close()

	out := []StateRecord{}
	for rows.Next() {
		var r StateRecord
		var state string
		if err := rows.Scan(&r.Reactor, &r.Position, &state); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		r.State = json.RawMessage(state)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate states: %w", err)
	}
	return out, nil
}

// ReadSignals returns a reactor's events and errors ordered by id.
// An empty kind returns both.
func (j *Journal) ReadSignals(ctx context.Context, reactorID string, kind SignalKind) ([]SignalRecord, error) {
	query := `
		SELECT id, reactor, kind, payload, expected
		FROM signals
		WHERE reactor = ?`
	args := []any{reactorID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY id ASC`

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	out := []SignalRecord{}
	for rows.Next() {
		var r SignalRecord
		var kind, payload string
		if err := rows.Scan(&r.ID, &r.Reactor, &kind, &payload, &r.Expected); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		r.Kind = SignalKind(kind)
		r.Payload = json.RawMessage(payload)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return out, nil
}

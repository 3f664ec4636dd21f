package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/reactor/internal/reactor"
)

// SignalKind distinguishes events from errors in the signals table.
type SignalKind string

const (
	KindEvent SignalKind = "event"
	KindError SignalKind = "error"
)

// errorPayload is the stored form of an error-stream value.
type errorPayload struct {
	Message string `json:"message"`
}

// WriteReactor registers a reactor. Writing the same id twice is a no-op.
func (j *Journal) WriteReactor(ctx context.Context, id, name string) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO reactors (id, name)
		VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, name)
	if err != nil {
		return fmt.Errorf("write reactor: %w", err)
	}
	return nil
}

// WriteState records a state at position. Duplicate positions are ignored.
func (j *Journal) WriteState(ctx context.Context, reactorID string, position int64, state any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO states (reactor, position, state)
		VALUES (?, ?, ?)
		ON CONFLICT(reactor, position) DO NOTHING
	`, reactorID, position, string(data))
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// WriteEvent appends an event.
func (j *Journal) WriteEvent(ctx context.Context, reactorID string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return j.writeSignal(ctx, reactorID, KindEvent, data, false)
}

// WriteError appends an error with its expected flag.
func (j *Journal) WriteError(ctx context.Context, reactorID string, e error) error {
	data, err := json.Marshal(errorPayload{Message: e.Error()})
	if err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	return j.writeSignal(ctx, reactorID, KindError, data, reactor.IsExpected(e))
}

func (j *Journal) writeSignal(ctx context.Context, reactorID string, kind SignalKind, payload []byte, expected bool) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO signals (reactor, kind, payload, expected)
		VALUES (?, ?, ?, ?)
	`, reactorID, string(kind), string(payload), expected)
	if err != nil {
		return fmt.Errorf("write %s: %w", kind, err)
	}
	return nil
}

package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/roach88/reactor/internal/reactor"
)

// SSE event names written by GET /stream.
const (
	StreamState = "state"
	StreamEvent = "event"
	StreamError = "error"
)

// ErrorPayload is the data of an "error" stream message.
type ErrorPayload struct {
	Message  string `json:"message"`
	Expected bool   `json:"expected"`
}

// stream relays all three reactor streams as server-sent events until the
// client goes away or the reactor is destroyed. The first message is always
// the current state.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	states := s.reactor.SubscribeState()
	defer states.Close()
	events := s.reactor.SubscribeEvents()
	defer events.Close()
	errs := s.reactor.SubscribeErrors()
	defer errs.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.log.Debug("stream opened", "subscription", states.ID())
	defer s.log.Debug("stream closed", "subscription", states.ID())

	ctx := r.Context()
	for {
		var (
			name string
			data any
		)
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states.C():
			if !ok {
				return
			}
			name, data = StreamState, st
		case ev, ok := <-events.C():
			if !ok {
				return
			}
			name, data = StreamEvent, ev
		case err, ok := <-errs.C():
			if !ok {
				return
			}
			name, data = StreamError, ErrorPayload{Message: err.Error(), Expected: reactor.IsExpected(err)}
		}

		if err := writeSSE(w, name, data); err != nil {
			s.log.Warn("stream write failed", "error", err)
			return
		}
		flusher.Flush()
	}
}

func writeSSE(w http.ResponseWriter, name string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, b)
	return err
}

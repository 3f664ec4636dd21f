package httpapi

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reactor/internal/reactor"
	"github.com/roach88/reactor/internal/textfield"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, opts ...Option) (*textfield.Reactor, http.Handler) {
	t.Helper()
	r := textfield.New(textfield.State{}, reactor.WithLogger(discardLogger()))
	t.Cleanup(r.Destroy)

	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	srv, err := New(r, opts...)
	require.NoError(t, err)
	return r, srv.Handler()
}

func postJSON(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/actions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPostAction_Accepted(t *testing.T) {
	r, h := newTestServer(t)

	rec := postJSON(h, `{"kind":"set_text","text":"hello"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body AcceptedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "accepted", body.Status)
	assert.Equal(t, textfield.KindSetText, body.Kind)

	require.Eventually(t, func() bool {
		return r.CurrentState().Text == "hello"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPostAction_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        int
	}{
		{"wrong content type", "text/plain", `{"kind":"clear"}`, http.StatusUnsupportedMediaType},
		{"bad json", "application/json", `{`, http.StatusBadRequest},
		{"unknown field", "application/json", `{"kind":"clear","extra":1}`, http.StatusBadRequest},
		{"unknown kind", "application/json", `{"kind":"explode"}`, http.StatusBadRequest},
		{"negative delay", "application/json", `{"kind":"submit","delay_ms":-1}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestServer(t)
			req := httptest.NewRequest(http.MethodPost, "/actions", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestPostAction_BodyTooLarge(t *testing.T) {
	_, h := newTestServer(t, WithMaxBodyBytes(16))

	rec := postJSON(h, `{"kind":"set_text","text":"`+strings.Repeat("x", 64)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPostAction_AfterDestroy(t *testing.T) {
	r, h := newTestServer(t)
	r.Destroy()

	rec := postJSON(h, `{"kind":"clear"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetState(t *testing.T) {
	r, h := newTestServer(t)
	r.Send(textfield.SetText("abc"))
	require.Eventually(t, func() bool { return r.Snapshot().Seq == 1 }, 2*time.Second, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body StateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Seq)
	assert.Equal(t, "abc", body.State.Text)
}

func TestHealthAndReadiness(t *testing.T) {
	r, h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	r.Destroy()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, h := newTestServer(t, WithRegistry(reg))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "reactor_http_requests_total")
	assert.Contains(t, body, `path="/state"`)
}

func TestNew_DuplicateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, _ = newTestServer(t, WithRegistry(reg))

	r := textfield.New(textfield.State{}, reactor.WithLogger(discardLogger()))
	t.Cleanup(r.Destroy)
	_, err := New(r, WithRegistry(reg))
	assert.ErrorContains(t, err, "register http metrics")
}

func TestCORS_Preflight(t *testing.T) {
	_, h := newTestServer(t, WithCORSOrigins("http://example.com"))

	req := httptest.NewRequest(http.MethodOptions, "/actions", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

type sseMessage struct {
	name string
	data string
}

func readSSE(t *testing.T, sc *bufio.Scanner) sseMessage {
	t.Helper()
	var msg sseMessage
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if msg.name != "" {
				return msg
			}
		case strings.HasPrefix(line, "event: "):
			msg.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			msg.data = strings.TrimPrefix(line, "data: ")
		}
	}
	require.FailNow(t, "stream ended", "scan error: %v", sc.Err())
	return msg
}

func TestStream(t *testing.T) {
	r, h := newTestServer(t)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)

	first := readSSE(t, sc)
	assert.Equal(t, StreamState, first.name)
	assert.JSONEq(t, `{"text":"","submitting":false,"submissions":0}`, first.data)

	r.Send(textfield.Action{Kind: textfield.KindSubmit})
	msg := readSSE(t, sc)
	assert.Equal(t, StreamError, msg.name)
	assert.JSONEq(t, `{"message":"text is empty","expected":true}`, msg.data)

	r.Send(textfield.SetText("go"))
	msg = readSSE(t, sc)
	assert.Equal(t, StreamState, msg.name)
	assert.JSONEq(t, `{"text":"go","submitting":false,"submissions":0}`, msg.data)

	r.Send(textfield.Submit(0))
	var sawEvent bool
	for i := 0; i < 3; i++ {
		msg = readSSE(t, sc)
		if msg.name == StreamEvent {
			sawEvent = true
			assert.JSONEq(t, `{"kind":"submitted","text":"go"}`, msg.data)
		}
	}
	assert.True(t, sawEvent)
}

func TestStream_EndsOnDestroy(t *testing.T) {
	r, h := newTestServer(t)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	readSSE(t, sc)

	r.Destroy()

	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after destroy")
	}
}

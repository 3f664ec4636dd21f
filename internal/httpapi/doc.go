// Package httpapi exposes a textfield reactor over HTTP.
//
// Routes:
//
//	POST /actions   send one action (202 Accepted)
//	GET  /state     current committed state with its sequence number
//	GET  /stream    server-sent events for the state, event and error streams
//	GET  /healthz   liveness
//	GET  /readyz    503 once the reactor is destroyed
//	GET  /metrics   Prometheus exposition
package httpapi

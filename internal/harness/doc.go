// Package harness runs scripted scenarios against a textfield reactor.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: submit_flow
//	description: "Typing then submitting publishes one event"
//	initial: { text: "" }
//	steps:
//	  - send: { kind: set_text, text: hello }
//	  - await: { text: hello }
//	  - send: { kind: submit, delay_ms: 5 }
//	expect:
//	  state: { text: hello, submissions: 1 }
//	  events:
//	    - { kind: submitted, text: hello }
//	  errors: []
//
// Every file is checked against an embedded CUE schema before it is decoded,
// so typos and out-of-range values fail with a position.
//
// # Execution
//
// Run starts a fresh reactor, subscribes to the state, event and error
// streams before the first step, executes the steps in order and waits for
// the pipeline to go quiet. It then compares what the subscribers observed
// with the expect block:
//
//   - state: partial match against the final state
//   - events: exact, ordered list (omit the key to skip the check)
//   - errors: ordered list; each entry matches on the fields it sets
//
// An await step polls the current state until it matches or the scenario
// timeout expires.
//
// # Golden Traces
//
// RunWithGolden compares the observed trace with testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness

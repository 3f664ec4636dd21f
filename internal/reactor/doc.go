// Package reactor implements a unidirectional state container.
//
// A Reactor accepts actions, turns each one into mutations with a
// user-supplied mutate function, folds the mutations into an immutable state
// with a pure reduce function, and publishes the result. Side channels carry
// one-shot events and errors.
//
// ARCHITECTURE:
//
// Fan-out mutate, single-writer reduce:
// Mutate runs concurrently, one goroutine per action, so a slow action (I/O,
// timers) never starves a fast one. Every mutation then funnels through one
// reduce goroutine, which is the only writer of the current state. Actions
// that must not overlap share a lane.
//
// Processing flow:
//  1. Send appends to an unbounded FIFO (never blocks, never drops)
//  2. A feeder moves actions, in submission order, to the dispatcher
//  3. The dispatcher starts mutate per action (or per lane)
//  4. Mutate emits mutations, publishes events, raises errors
//  5. Reduce folds each mutation and commits the new snapshot
//  6. State subscribers receive every commit, in order
//
// Streams:
//
//	state  - latest value on subscribe, then every commit; nothing dropped
//	events - buffered until the first subscriber, then broadcast, no replay
//	errors - same as events
//
// Lifecycle:
// A reactor is Active from New until Destroy (or a fatal fault), then
// Destroyed for good. Destroy cancels the scope that every pipeline
// goroutine runs in; nothing is emitted once it returns.
//
// Failure policy:
// Mutate failures are isolated per action and routed to the error stream.
// Failures in transform stages or reduce are programming errors: the reactor
// shuts down and the FaultHandler (default: panic) is invoked.
package reactor

// Package journal records what a reactor's subscribers observe into SQLite.
//
// The journal is an audit trail, not a persistence layer: nothing in it is
// ever used to restore a reactor.
//
// Tables:
//   - reactors: id and name of every attached reactor
//   - states: observed states keyed by (reactor, position)
//   - signals: events and errors, ordered by an autoincrement id
//
// # Ordering
//
// States are numbered by delivery position within one attachment. When the
// attachment is made before the first action is sent, position equals the
// commit sequence number. Reads always ORDER BY position (states) or id
// (signals), so results are stable across runs.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//   - a single open connection; SQLite allows one writer
package journal

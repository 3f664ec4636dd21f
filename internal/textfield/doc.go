// Package textfield is a concrete reactor modelling a text input with a
// submit button.
//
// Keystrokes (set_text, clear) share the "input" ordering lane so they commit
// in the order they were typed. Submit, fail, crash and wait run unlaned; a
// slow submit never holds up typing.
//
// Actions, states and events carry JSON and YAML tags; the harness, the
// journal and the HTTP adapter all exchange them in that form.
package textfield

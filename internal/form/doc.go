// Package form is the trigger form state machine.
//
// The core is two pure functions:
//   - Reduce(state, edit) applies one edit and recomputes the derived cron text
//   - Derive(state) builds the trigger the state describes
//
// Form wraps them for a single edit session and emits a Change after every
// accepted edit. Which fields accept edits depends on the trigger kind and the
// CronMode (see State.Editable).
package form

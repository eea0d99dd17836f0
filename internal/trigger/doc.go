// Package trigger converts between the user-facing description of a recurring run
// schedule and the two encodings a scheduler accepts:
//   - a periodic schedule (interval in seconds)
//   - a six-field cron expression: minute hour day-of-month month day-of-week ?
//
// Everything here is pure. The codec and the builder never fail on bad input;
// EnsureRecurringRunParamsAreValid is the only gate.
package trigger

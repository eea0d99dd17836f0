// Package storage persists recurring runs for the trigger editor.
//
// It supports:
//   - Recurring run records (get, put, list)
//   - An append-only audit log of edit-session actions
package storage

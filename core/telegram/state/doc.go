// Package state keeps per-user conversation sessions: the current step and its scratch data.
// It is transport-agnostic; sessions are keyed by the sender id.
package state

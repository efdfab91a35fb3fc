// Package session owns per-viewer dashboard state.
//
// A Session holds the uploaded dataset, the ten filter selections and the
// options and dashboard derived from them. Events are applied one at a time
// per session; each one recomputes the derived state before returning the
// new snapshot. The Store keeps sessions in memory and expires idle ones.
package session

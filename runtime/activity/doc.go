// Package activity provides the activity variants nodes perform: no-op,
// compute-and-store, end marker, human task, intermediate event and timer.
// Activities keep no per-token state; whatever an activation needs later is
// stored in token internal variables.
package activity

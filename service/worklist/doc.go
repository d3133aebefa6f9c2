// Package worklist is the boundary between human task activities and the
// work item subsystem. A work item references the suspended token that is
// resumed when the item is completed.
package worklist

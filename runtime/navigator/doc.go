// Package navigator schedules READY tokens onto a fixed pool of workers. It
// owns the work queue, the per-token execution locks and the registry of
// suspended tokens.
package navigator

// Package clock is the single time source of the engine.
package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// AfterFunc schedules fn after d; timer manager tests replace it.
var AfterFunc = time.AfterFunc

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// Since returns the elapsed time measured with NowFunc.
func Since(t time.Time) time.Duration { return Now().Sub(t) }

// Package progress keeps aggregated token counters of a process instance.
package progress

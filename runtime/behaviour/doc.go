// Package behaviour implements node joins (simple, AND barrier, event race)
// and splits (take all, exclusive, event race).
package behaviour

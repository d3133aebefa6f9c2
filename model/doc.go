// Package model contains the in-memory representation of process
// definitions: the node graph and capability contracts in graph, flow
// guards in condition and instance input parameters in state.
package model

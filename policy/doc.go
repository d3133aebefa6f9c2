// Package policy holds the declarative rules the navigator applies when a
// token fails or when a token is resumed outside of the WAITING state.
package policy

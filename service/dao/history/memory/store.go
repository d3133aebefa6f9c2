// Package memory provides an in-memory history store.
package memory

import (
	"github.com/viant/tokenflow/service/dao/history"
	"github.com/viant/tokenflow/service/dao/store"
)

// New creates an in-memory history store.
func New() *store.MemoryStore[string, history.Summary] {
	return store.NewMemoryStore[string, history.Summary](history.Key)
}

var _ history.Store = (*store.MemoryStore[string, history.Summary])(nil)

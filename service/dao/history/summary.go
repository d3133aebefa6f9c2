// Package history archives ended process instances.
package history

import (
	"time"

	"github.com/viant/tokenflow/runtime/execution"
	"github.com/viant/tokenflow/service/dao"
	"github.com/viant/tokenflow/service/dao/criteria"
)

// Summary is the archived record of an ended instance.
type Summary struct {
	InstanceID      string                 `json:"instanceId"`
	DefinitionID    string                 `json:"definitionId"`
	State           string                 `json:"state"`
	Error           string                 `json:"error,omitempty"`
	StartedAt       time.Time              `json:"startedAt"`
	EndedAt         time.Time              `json:"endedAt"`
	CreatedTokens   int                    `json:"createdTokens"`
	CompletedTokens int                    `json:"completedTokens"`
	AbortedTokens   int                    `json:"abortedTokens"`
	Variables       map[string]interface{} `json:"variables,omitempty"`
}

// Store persists summaries keyed by instance id.
type Store = dao.Service[string, Summary]

// NewSummary snapshots an ended instance.
func NewSummary(instance *execution.Instance) *Summary {
	counters := instance.Progress().Snapshot()
	summary := &Summary{
		InstanceID:      instance.ID,
		State:           string(instance.State()),
		StartedAt:       instance.StartedAt,
		EndedAt:         instance.EndedAt(),
		CreatedTokens:   counters.CreatedTokens,
		CompletedTokens: counters.CompletedTokens,
		AbortedTokens:   counters.AbortedTokens,
		Variables:       instance.Variables().All(),
	}
	if instance.Definition != nil {
		summary.DefinitionID = instance.Definition.ID
	}
	if err := instance.Err(); err != nil {
		summary.Error = err.Error()
	}
	return summary
}

// Matches filters by "state" or "definition".
func (s *Summary) Matches(p *dao.Parameter) bool {
	switch p.Name {
	case "state":
		return criteria.Equals(s.State, p.Value)
	case "definition":
		return criteria.Equals(s.DefinitionID, p.Value)
	}
	return true
}

// Key returns the store key of a summary.
func Key(s *Summary) string { return s.InstanceID }

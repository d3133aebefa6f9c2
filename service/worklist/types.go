package worklist

import (
	"context"
	"time"

	"github.com/viant/tokenflow/service/dao"
	"github.com/viant/tokenflow/service/dao/criteria"
	"github.com/viant/tokenflow/service/messaging"
)

// ItemState is a work item lifecycle state.
type ItemState string

const (
	ItemOffered   ItemState = "offered"
	ItemCompleted ItemState = "completed"
	ItemCancelled ItemState = "cancelled"
)

// Topics published on the event queue.
const (
	TopicItemCreated   = "item.created"
	TopicItemCompleted = "item.completed"
	TopicItemCancelled = "item.cancelled"
)

// Item is a unit of human work bound to a suspended token.
type Item struct {
	ID          string                 `json:"id" yaml:"id"`
	TokenID     string                 `json:"tokenId" yaml:"tokenId"`
	InstanceID  string                 `json:"instanceId" yaml:"instanceId"`
	NodeID      string                 `json:"nodeId" yaml:"nodeId"`
	Subject     string                 `json:"subject,omitempty" yaml:"subject,omitempty"`
	Role        string                 `json:"role,omitempty" yaml:"role,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty" yaml:"context,omitempty"`
	State       ItemState              `json:"state" yaml:"state"`
	Result      interface{}            `json:"result,omitempty" yaml:"result,omitempty"`
	CreatedAt   time.Time              `json:"createdAt" yaml:"createdAt"`
	CompletedAt *time.Time             `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
}

// Matches filters items by "state", "role" or "instance".
func (i *Item) Matches(p *dao.Parameter) bool {
	switch p.Name {
	case "state":
		return criteria.Equals(string(i.State), p.Value)
	case "role":
		return criteria.Equals(i.Role, p.Value)
	case "instance":
		return criteria.Equals(i.InstanceID, p.Value)
	}
	return true
}

// Event is published on every item change.
type Event struct {
	Topic string
	Item  *Item
}

// Resumer resumes a suspended token with a payload.
type Resumer interface {
	Resume(tokenID string, payload interface{}) error
}

// Service manages work items.
type Service interface {
	// Create offers a new item.
	Create(ctx context.Context, item *Item) error
	// Load returns an item by id.
	Load(ctx context.Context, id string) (*Item, error)
	// Pending returns offered items, optionally filtered.
	Pending(ctx context.Context, parameters ...*dao.Parameter) ([]*Item, error)
	// Complete records result and resumes the token of the item.
	Complete(ctx context.Context, id string, result interface{}) (*Item, error)
	// Cancel withdraws an offered item; cancelling a closed item is a no-op.
	Cancel(ctx context.Context, id string) error
	// Queue exposes item events; nil when events are not published.
	Queue() messaging.Queue[Event]
}

package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/tokenflow/model/graph"
	"github.com/viant/tokenflow/service/worklist"
)

// Token internal variables used by waiting activities.
const (
	WorkItemKey     = "tokenflow.workItem"
	SubscriptionKey = "tokenflow.subscription"
	TimerJobKey     = "tokenflow.timerJob"
)

// Subscriber is the trigger adapter registry used by IntermediateEvent.
type Subscriber interface {
	Subscribe(adapter, tokenID string) string
	Unsubscribe(id string) bool
}

// Timers is the timer manager used by Timer.
type Timers interface {
	RegisterNonRecurring(delay time.Duration, tokenID string) string
	Unregister(id string) bool
}

// HumanTask offers a work item and suspends until it is completed. The
// completion result is stored in ResultVariable when set; with NewResult the
// result is first decoded into the value it returns.
type HumanTask struct {
	Subject        string
	Role           string
	ResultVariable string
	NewResult      func() interface{}
	Worklist       worklist.Service
}

// payloadDecoder is implemented by tokens that convert their resume payload.
type payloadDecoder interface {
	DecodePayload(dest interface{}) error
}

// Execute implements graph.Activity.
func (h *HumanTask) Execute(token graph.Token) error {
	if err := token.Suspend(); err != nil {
		return err
	}
	item := &worklist.Item{
		TokenID:    token.ID(),
		InstanceID: token.InstanceID(),
		NodeID:     token.Node().ID,
		Subject:    h.Subject,
		Role:       h.Role,
		Context:    token.Variables().All(),
	}
	if err := h.Worklist.Create(context.Background(), item); err != nil {
		return err
	}
	token.SetInternal(WorkItemKey, item.ID)
	return nil
}

// Resume implements graph.Resumer.
func (h *HumanTask) Resume(token graph.Token, payload interface{}) error {
	token.DeleteInternal(WorkItemKey)
	if h.NewResult != nil {
		decoder, ok := token.(payloadDecoder)
		if !ok {
			return fmt.Errorf("token %v cannot decode work item result", token.ID())
		}
		result := h.NewResult()
		if err := decoder.DecodePayload(result); err != nil {
			return fmt.Errorf("invalid result of work item for token %v: %w", token.ID(), err)
		}
		payload = result
	}
	if h.ResultVariable != "" {
		token.Variables().Set(h.ResultVariable, payload)
	}
	return nil
}

// Cancel withdraws the offered work item.
func (h *HumanTask) Cancel(token graph.Token) {
	id, ok := token.Internal(WorkItemKey)
	if !ok {
		return
	}
	token.DeleteInternal(WorkItemKey)
	if itemID, _ := id.(string); itemID != "" {
		_ = h.Worklist.Cancel(context.Background(), itemID)
	}
}

// IntermediateEvent waits for a manual trigger adapter to fire.
type IntermediateEvent struct {
	Adapter        string
	ResultVariable string
	Triggers       Subscriber
}

// Execute implements graph.Activity.
func (e *IntermediateEvent) Execute(token graph.Token) error {
	if err := token.Suspend(); err != nil {
		return err
	}
	token.SetInternal(SubscriptionKey, e.Triggers.Subscribe(e.Adapter, token.ID()))
	return nil
}

// Resume implements graph.Resumer.
func (e *IntermediateEvent) Resume(token graph.Token, payload interface{}) error {
	token.DeleteInternal(SubscriptionKey)
	if e.ResultVariable != "" {
		token.Variables().Set(e.ResultVariable, payload)
	}
	return nil
}

// Cancel unregisters the pending subscription.
func (e *IntermediateEvent) Cancel(token graph.Token) {
	if id, ok := token.Internal(SubscriptionKey); ok {
		token.DeleteInternal(SubscriptionKey)
		e.Triggers.Unsubscribe(id.(string))
	}
}

// Timer suspends the token for Delay.
type Timer struct {
	Delay  time.Duration
	Timers Timers
}

// Execute implements graph.Activity.
func (t *Timer) Execute(token graph.Token) error {
	if err := token.Suspend(); err != nil {
		return err
	}
	token.SetInternal(TimerJobKey, t.Timers.RegisterNonRecurring(t.Delay, token.ID()))
	return nil
}

// Resume implements graph.Resumer.
func (t *Timer) Resume(token graph.Token, _ interface{}) error {
	token.DeleteInternal(TimerJobKey)
	return nil
}

// Cancel unregisters the pending timer job.
func (t *Timer) Cancel(token graph.Token) {
	if id, ok := token.Internal(TimerJobKey); ok {
		token.DeleteInternal(TimerJobKey)
		t.Timers.Unregister(id.(string))
	}
}

var (
	_ graph.Resumer = (*HumanTask)(nil)
	_ graph.Resumer = (*IntermediateEvent)(nil)
	_ graph.Resumer = (*Timer)(nil)
)

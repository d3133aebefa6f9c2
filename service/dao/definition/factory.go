package definition

import (
	"fmt"
	"time"

	"github.com/viant/tokenflow/model/graph"
	"github.com/viant/tokenflow/runtime/activity"
	"github.com/viant/tokenflow/runtime/behaviour"
)

// Factory creates an activity from its document attributes.
type Factory func(attributes map[string]interface{}) (graph.Activity, error)

func (s *Service) builtins() map[string]Factory {
	return map[string]Factory{
		"nop": func(map[string]interface{}) (graph.Activity, error) { return activity.Nop{}, nil },
		"end": func(map[string]interface{}) (graph.Activity, error) { return activity.NewEnd(), nil },
		"set": func(attributes map[string]interface{}) (graph.Activity, error) {
			values, _ := attributes["values"].(map[string]interface{})
			return &activity.SetVariables{Values: values}, nil
		},
		"add": func(attributes map[string]interface{}) (graph.Activity, error) {
			variable := text(attributes, "variable")
			if variable == "" {
				return nil, fmt.Errorf("add: variable was empty")
			}
			var names []string
			raw, _ := attributes["names"].([]interface{})
			for _, name := range raw {
				names = append(names, fmt.Sprint(name))
			}
			return activity.AddVariables(variable, names...), nil
		},
		"human": func(attributes map[string]interface{}) (graph.Activity, error) {
			if s.worklist == nil {
				return nil, fmt.Errorf("human: worklist was not configured")
			}
			return &activity.HumanTask{
				Subject:        text(attributes, "subject"),
				Role:           text(attributes, "role"),
				ResultVariable: text(attributes, "result"),
				Worklist:       s.worklist,
			}, nil
		},
		"event": func(attributes map[string]interface{}) (graph.Activity, error) {
			if s.triggers == nil {
				return nil, fmt.Errorf("event: triggers were not configured")
			}
			adapter := text(attributes, "adapter")
			if adapter == "" {
				return nil, fmt.Errorf("event: adapter was empty")
			}
			return &activity.IntermediateEvent{Adapter: adapter, ResultVariable: text(attributes, "result"), Triggers: s.triggers}, nil
		},
		"timer": func(attributes map[string]interface{}) (graph.Activity, error) {
			if s.timers == nil {
				return nil, fmt.Errorf("timer: timers were not configured")
			}
			delay, err := time.ParseDuration(text(attributes, "delay"))
			if err != nil {
				return nil, fmt.Errorf("timer: %w", err)
			}
			return &activity.Timer{Delay: delay, Timers: s.timers}, nil
		},
	}
}

func join(kind string) (graph.IncomingBehaviour, error) {
	switch kind {
	case "", "simple":
		return behaviour.Simple{}, nil
	case "and":
		return behaviour.NewAndJoin(), nil
	case "race":
		return behaviour.EventRace{}, nil
	}
	return nil, fmt.Errorf("unsupported join %q", kind)
}

func split(kind string) (graph.OutgoingBehaviour, error) {
	switch kind {
	case "", "all":
		return behaviour.TakeAll{}, nil
	case "xor":
		return behaviour.Exclusive{}, nil
	case "race":
		return behaviour.NewEventRaceSplit(), nil
	}
	return nil, fmt.Errorf("unsupported split %q", kind)
}

func text(attributes map[string]interface{}, key string) string {
	value, ok := attributes[key]
	if !ok || value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

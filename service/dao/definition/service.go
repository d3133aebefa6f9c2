// Package definition decodes YAML process documents into graph definitions.
package definition

import (
	"context"
	"fmt"

	"github.com/viant/tokenflow/internal/yml"
	"github.com/viant/tokenflow/model/condition"
	"github.com/viant/tokenflow/model/graph"
	"github.com/viant/tokenflow/model/state"
	"github.com/viant/tokenflow/runtime/activity"
	"github.com/viant/tokenflow/service/meta"
	"github.com/viant/tokenflow/service/worklist"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Service loads definitions
type Service struct {
	meta     *meta.Service
	worklist worklist.Service
	triggers activity.Subscriber
	timers   activity.Timers
	custom   map[string]Factory
}

// Load loads a definition document from URL
func (s *Service) Load(ctx context.Context, URL string) (*graph.Definition, error) {
	var node yaml.Node
	if err := s.meta.Load(ctx, URL, &node); err != nil {
		return nil, fmt.Errorf("failed to load definition from %s: %w", URL, err)
	}
	return s.Parse((*yml.Node)(&node))
}

// DecodeYAML decodes a definition document
func (s *Service) DecodeYAML(encoded []byte) (*graph.Definition, error) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(meta.ExpandEnv(string(encoded))), &node); err != nil {
		return nil, err
	}
	return s.Parse((*yml.Node)(&node))
}

// Parse builds a definition from a document node. Node declaration order
// defines start node order.
func (s *Service) Parse(node *yml.Node) (*graph.Definition, error) {
	root := node.Root()
	id := root.Lookup("id").Text()
	if id == "" {
		return nil, fmt.Errorf("definition id was empty")
	}
	builder := graph.NewBuilder(id).Name(root.Lookup("name").Text())

	var errs error
	if initNode := root.Lookup("init"); initNode != nil {
		params, err := parameters(initNode)
		errs = multierr.Append(errs, err)
		builder.Init(params)
	}
	if nodes := root.Lookup("nodes"); nodes != nil {
		_ = nodes.Pairs(func(nodeID string, spec *yml.Node) error {
			options, start, err := s.nodeOptions(nodeID, spec)
			if err != nil {
				errs = multierr.Append(errs, err)
				return nil
			}
			if start {
				builder.StartNode(nodeID, options...)
			} else {
				builder.Node(nodeID, options...)
			}
			return nil
		})
	}
	if flows := root.Lookup("flows"); flows != nil {
		_ = flows.Items(func(index int, spec *yml.Node) error {
			from, to := spec.Lookup("from").Text(), spec.Lookup("to").Text()
			var cond graph.Condition
			if when := spec.Lookup("when").Text(); when != "" {
				expr, err := condition.NewExpression(when)
				if err != nil {
					errs = multierr.Append(errs, fmt.Errorf("flow %v %v->%v: %w", index, from, to, err))
					return nil
				}
				cond = expr
			}
			builder.Connect(from, to, cond)
			return nil
		})
	}
	if errs != nil {
		return nil, &graph.DefinitionError{DefinitionID: id, Err: errs}
	}
	return builder.Build()
}

func (s *Service) nodeOptions(nodeID string, spec *yml.Node) ([]graph.NodeOption, bool, error) {
	start := spec.Lookup("start").Text() == "true"
	options := []graph.NodeOption{graph.WithName(spec.Lookup("name").Text())}

	kind := "nop"
	attributes := map[string]interface{}{}
	if activityNode := spec.Lookup("activity"); activityNode != nil {
		attributes, _ = activityNode.Interface().(map[string]interface{})
		if value := text(attributes, "type"); value != "" {
			kind = value
		}
	}
	factory, ok := s.custom[kind]
	if !ok {
		return nil, false, fmt.Errorf("node %v: unsupported activity %q", nodeID, kind)
	}
	a, err := factory(attributes)
	if err != nil {
		return nil, false, fmt.Errorf("node %v: %w", nodeID, err)
	}
	in, err := join(spec.Lookup("join").Text())
	if err != nil {
		return nil, false, fmt.Errorf("node %v: %w", nodeID, err)
	}
	out, err := split(spec.Lookup("split").Text())
	if err != nil {
		return nil, false, fmt.Errorf("node %v: %w", nodeID, err)
	}
	return append(options, graph.WithActivity(a), graph.WithJoin(in), graph.WithSplit(out)), start, nil
}

func parameters(node *yml.Node) (state.Parameters, error) {
	var result state.Parameters
	err := node.Items(func(index int, item *yml.Node) error {
		name := item.Lookup("name").Text()
		if name == "" {
			return fmt.Errorf("init parameter %v: name was empty", index)
		}
		param := &state.Parameter{Name: name, Required: item.Lookup("required").Text() == "true"}
		if value := item.Lookup("value"); value != nil {
			param.Value = value.Interface()
		}
		if value := item.Lookup("default"); value != nil {
			param.Default = value.Interface()
		}
		result = append(result, param)
		return nil
	})
	return result, err
}

// New creates a definition loader
func New(options ...Option) *Service {
	s := &Service{custom: map[string]Factory{}}
	for _, option := range options {
		option(s)
	}
	if s.meta == nil {
		s.meta = meta.New(nil)
	}
	for kind, factory := range s.builtins() {
		if _, ok := s.custom[kind]; !ok {
			s.custom[kind] = factory
		}
	}
	return s
}

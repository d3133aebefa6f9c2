package tokenflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/viant/tokenflow/model/graph"
	"github.com/viant/tokenflow/runtime/execution"
	"github.com/viant/tokenflow/runtime/navigator"
	"github.com/viant/tokenflow/service/dao"
	"github.com/viant/tokenflow/service/dao/definition"
	"github.com/viant/tokenflow/service/dao/history"
	"github.com/viant/tokenflow/service/debugger"
	"github.com/viant/tokenflow/service/timer"
	"github.com/viant/tokenflow/service/trigger"
	"github.com/viant/tokenflow/service/worklist"
	"go.uber.org/zap"
)

// Runtime represents a process engine runtime
type Runtime struct {
	navigator   *navigator.Service
	definitions *definition.Service
	history     history.Store
	worklist    worklist.Service
	triggers    *trigger.Service
	timers      *timer.Service
	debugger    *debugger.Service
	logger      *zap.Logger
	// forgetArchived drops ended instances from the registry once archived
	forgetArchived bool

	mu              sync.RWMutex
	definitionsByID map[string]*graph.Definition
}

// Deploy registers a definition under its id, replacing any previous one.
// Running instances keep the definition they started with.
func (r *Runtime) Deploy(def *graph.Definition) {
	r.mu.Lock()
	r.definitionsByID[def.ID] = def
	r.mu.Unlock()
}

// LoadDefinition loads a definition document from URL and deploys it
func (r *Runtime) LoadDefinition(ctx context.Context, URL string) (*graph.Definition, error) {
	def, err := r.definitions.Load(ctx, URL)
	if err != nil {
		return nil, err
	}
	r.Deploy(def)
	return def, nil
}

// DecodeYAMLDefinition decodes a definition document and deploys it
func (r *Runtime) DecodeYAMLDefinition(data []byte) (*graph.Definition, error) {
	def, err := r.definitions.DecodeYAML(data)
	if err != nil {
		return nil, err
	}
	r.Deploy(def)
	return def, nil
}

// Definition returns a deployed definition
func (r *Runtime) Definition(id string) (*graph.Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitionsByID[id]
	return def, ok
}

// Definitions returns ids of deployed definitions
func (r *Runtime) Definitions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]string, 0, len(r.definitionsByID))
	for id := range r.definitionsByID {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// StartInstance starts an instance of a deployed definition on its first
// start node.
func (r *Runtime) StartInstance(ctx context.Context, definitionID string, vars map[string]interface{}) (*execution.Instance, error) {
	return r.StartInstanceAt(ctx, definitionID, "", vars)
}

// StartInstanceAt starts an instance on the given start node.
func (r *Runtime) StartInstanceAt(ctx context.Context, definitionID, startNodeID string, vars map[string]interface{}) (*execution.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, ok := r.Definition(definitionID)
	if !ok {
		return nil, fmt.Errorf("definition %q was not deployed", definitionID)
	}
	return r.navigator.Instantiate(def, startNodeID, vars)
}

// Instance returns a running or ended instance
func (r *Runtime) Instance(id string) (*execution.Instance, bool) {
	return r.navigator.Registry().Instance(id)
}

// Instances returns running instances
func (r *Runtime) Instances() []*execution.Instance {
	return r.navigator.Registry().Running()
}

// CancelInstance cancels every token of an instance
func (r *Runtime) CancelInstance(id string) error {
	return r.navigator.CancelInstance(id)
}

// Resume resumes a suspended token with payload
func (r *Runtime) Resume(tokenID string, payload interface{}) error {
	return r.navigator.Resume(tokenID, payload)
}

// Wait blocks until the instance ended or ctx is done. With
// history.forgetArchived an instance that already ended is no longer found;
// use Summary instead.
func (r *Runtime) Wait(ctx context.Context, id string) (*execution.Instance, error) {
	return r.navigator.Wait(ctx, id)
}

// History lists archived instances
func (r *Runtime) History(ctx context.Context, parameters ...*dao.Parameter) ([]*history.Summary, error) {
	return r.history.List(ctx, parameters...)
}

// Summary loads an archived instance
func (r *Runtime) Summary(ctx context.Context, id string) (*history.Summary, error) {
	return r.history.Load(ctx, id)
}

// Worklist returns the work item service of human tasks
func (r *Runtime) Worklist() worklist.Service { return r.worklist }

// Triggers returns the manual adapter registry
func (r *Runtime) Triggers() *trigger.Service { return r.triggers }

// Timers returns the timer manager
func (r *Runtime) Timers() *timer.Service { return r.timers }

// Debugger returns the breakpoint service
func (r *Runtime) Debugger() *debugger.Service { return r.debugger }

// Navigator returns the token navigator
func (r *Runtime) Navigator() *navigator.Service { return r.navigator }

// Start starts runtime
func (r *Runtime) Start(ctx context.Context) error {
	return r.navigator.Start(ctx)
}

// Shutdown shutdowns runtime; parked breakpoints are released first.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.debugger.ReleaseAll()
	r.timers.Shutdown()
	return r.navigator.Shutdown(ctx)
}

func (r *Runtime) archive(instance *execution.Instance) {
	summary := history.NewSummary(instance)
	if err := r.history.Save(context.Background(), summary); err != nil {
		r.logger.Error("failed to archive instance", zap.String("instance", instance.ID), zap.Error(err))
		return
	}
	r.logger.Debug("instance ended", zap.String("instance", instance.ID), zap.String("state", summary.State))
	if r.forgetArchived {
		r.navigator.Registry().Forget(instance.ID)
	}
}

package navigator_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/tokenflow/model/condition"
	"github.com/viant/tokenflow/model/graph"
	"github.com/viant/tokenflow/policy"
	"github.com/viant/tokenflow/runtime/activity"
	"github.com/viant/tokenflow/runtime/behaviour"
	"github.com/viant/tokenflow/runtime/execution"
	"github.com/viant/tokenflow/runtime/navigator"
	"github.com/viant/tokenflow/service/timer"
	"github.com/viant/tokenflow/service/trigger"
	wlmem "github.com/viant/tokenflow/service/worklist/memory"
)

func options(a graph.Activity, join graph.IncomingBehaviour, split graph.OutgoingBehaviour) []graph.NodeOption {
	return []graph.NodeOption{graph.WithActivity(a), graph.WithJoin(join), graph.WithSplit(split)}
}

func plain(a graph.Activity) []graph.NodeOption {
	return options(a, behaviour.Simple{}, behaviour.TakeAll{})
}

func startNavigator(t *testing.T, opts ...navigator.Option) *navigator.Service {
	srv, err := navigator.New(opts...)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func wait(t *testing.T, srv *navigator.Service, instance *execution.Instance) *execution.Instance {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ended, err := srv.Wait(ctx, instance.ID)
	require.NoError(t, err)
	return ended
}

// visits counts activations per node.
type visits struct {
	mu     sync.Mutex
	counts map[string]int
}

func (v *visits) Execute(token graph.Token) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.counts == nil {
		v.counts = map[string]int{}
	}
	v.counts[token.Node().ID]++
	return nil
}

func (v *visits) Cancel(graph.Token) {}

func (v *visits) count(nodeID string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.counts[nodeID]
}

func TestNavigator_AndSplitAndJoin(t *testing.T) {
	for _, k := range []int{2, 3, 5} {
		recorder := &visits{}
		end := activity.NewEnd()
		b := graph.NewBuilder("and")
		start := b.StartNode("start", plain(activity.Nop{})...)
		join := b.Node("join", options(recorder, behaviour.NewAndJoin(), behaviour.TakeAll{})...)
		finish := b.Node("end", plain(end)...)
		var branches []string
		for i := 0; i < k; i++ {
			branch := b.Node(string(rune('a'+i)), plain(recorder)...)
			branches = append(branches, branch.ID)
			b.Flow(start, branch)
			b.Flow(branch, join)
		}
		b.Flow(join, finish)
		def, err := b.Build()
		require.NoError(t, err)

		srv := startNavigator(t)
		instance, err := srv.Instantiate(def, "", nil)
		require.NoError(t, err)
		ended := wait(t, srv, instance)

		assert.Equal(t, execution.InstanceCompleted, ended.State())
		for _, id := range branches {
			assert.Equal(t, 1, recorder.count(id), "branch %v visited once", id)
		}
		assert.Equal(t, 1, recorder.count("join"), "barrier releases once")
		assert.Len(t, end.Reached(instance.ID), 1, "exactly one end token")
		snapshot := ended.Progress().Snapshot()
		assert.Equal(t, k, snapshot.CreatedTokens)
		assert.Equal(t, 0, snapshot.RunningTokens)
		assert.Empty(t, srv.Registry().Tokens(instance.ID))
	}
}

func TestNavigator_ExclusiveRouting(t *testing.T) {
	testCases := []struct {
		description string
		a           int
		withDefault bool
		expect      string
		expectState execution.InstanceState
	}{
		{description: "a>0 routes to X", a: 5, withDefault: true, expect: "X", expectState: execution.InstanceCompleted},
		{description: "else routes to Y", a: -1, withDefault: true, expect: "Y", expectState: execution.InstanceCompleted},
		{description: "no valid path", a: -1, withDefault: false, expectState: execution.InstanceCompleted},
	}
	for _, testCase := range testCases {
		recorder := &visits{}
		b := graph.NewBuilder("xor")
		start := b.StartNode("start", options(activity.Nop{}, behaviour.Simple{}, behaviour.Exclusive{})...)
		b.ConditionalFlow(start, b.Node("X", plain(recorder)...), condition.MustExpression("a > 0"))
		if testCase.withDefault {
			b.Flow(start, b.Node("Y", plain(recorder)...))
		}
		def, err := b.Build()
		require.NoError(t, err, testCase.description)

		srv := startNavigator(t)
		instance, err := srv.Instantiate(def, "", map[string]interface{}{"a": testCase.a})
		require.NoError(t, err, testCase.description)
		ended := wait(t, srv, instance)
		assert.Equal(t, testCase.expectState, ended.State(), testCase.description)
		if testCase.expect == "" {
			var noPath *execution.NoValidPathError
			assert.True(t, errors.As(ended.Err(), &noPath), testCase.description)
			assert.Equal(t, 1, ended.Progress().Snapshot().AbortedTokens, testCase.description)
			continue
		}
		assert.NoError(t, ended.Err(), testCase.description)
		assert.Equal(t, 1, recorder.count(testCase.expect), testCase.description)
	}
}

// payloadProbe suspends on first activation and records the payload it is
// resumed with.
type payloadProbe struct {
	mu       sync.Mutex
	observed []interface{}
}

func (p *payloadProbe) Execute(token graph.Token) error { return token.Suspend() }
func (p *payloadProbe) Cancel(graph.Token)              {}
func (p *payloadProbe) Resume(token graph.Token, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	current, ok := token.ResumePayload()
	if !ok || current != payload {
		return errors.New("payload mismatch")
	}
	p.observed = append(p.observed, payload)
	return nil
}

func waitingToken(t *testing.T, srv *navigator.Service, instanceID string) *execution.Token {
	var token *execution.Token
	require.Eventually(t, func() bool {
		for _, candidate := range srv.Registry().Tokens(instanceID) {
			if candidate.State() == graph.StateWaiting {
				token = candidate
				return true
			}
		}
		return false
	}, 5*time.Second, time.Millisecond)
	return token
}

func TestNavigator_SuspendResume(t *testing.T) {
	probe := &payloadProbe{}
	end := activity.NewEnd()
	b := graph.NewBuilder("wait")
	start := b.StartNode("start", plain(probe)...)
	b.Flow(start, b.Node("end", plain(end)...))
	def, err := b.Build()
	require.NoError(t, err)

	srv := startNavigator(t)
	instance, err := srv.Instantiate(def, "", nil)
	require.NoError(t, err)

	token := waitingToken(t, srv, instance.ID)
	assert.Equal(t, []string{token.ID()}, srv.Suspended())
	payload := &struct{ Approved bool }{Approved: true}
	require.NoError(t, srv.Resume(token.ID(), payload))

	wait(t, srv, instance)
	assert.Equal(t, []interface{}{payload}, probe.observed)
	assert.Len(t, end.Reached(instance.ID), 1)
	assert.Empty(t, srv.Suspended())
}

func TestNavigator_ResumePolicy(t *testing.T) {
	testCases := []struct {
		description string
		policy      *policy.Policy
		expectErr   bool
	}{
		{description: "ignore", policy: &policy.Policy{Resume: policy.ResumeIgnore}},
		{description: "reject", policy: &policy.Policy{Resume: policy.ResumeReject}, expectErr: true},
	}
	for _, testCase := range testCases {
		b := graph.NewBuilder("wait")
		b.StartNode("start", plain(&payloadProbe{})...)
		def, err := b.Build()
		require.NoError(t, err)

		srv := startNavigator(t, navigator.WithPolicy(testCase.policy))
		instance, err := srv.Instantiate(def, "", nil)
		require.NoError(t, err)
		token := waitingToken(t, srv, instance.ID)

		require.NoError(t, token.Resume("first"), testCase.description)
		wait(t, srv, instance)
		err = token.Resume("second")
		if testCase.expectErr {
			var illegal *execution.IllegalStateError
			assert.True(t, errors.As(err, &illegal), testCase.description)
			assert.Equal(t, graph.StateCompleted, illegal.State, testCase.description)
		} else {
			assert.NoError(t, err, testCase.description)
		}
		assert.Equal(t, graph.StateCompleted, token.State(), testCase.description)
	}
}

// earlyResumer resumes its own token before returning from Execute.
type earlyResumer struct{}

func (earlyResumer) Execute(token graph.Token) error {
	if err := token.Suspend(); err != nil {
		return err
	}
	return token.Resume("early")
}
func (earlyResumer) Cancel(graph.Token) {}
func (earlyResumer) Resume(token graph.Token, payload interface{}) error {
	token.Variables().Set("resumed", payload)
	return nil
}

func TestNavigator_ResumeDuringActivation(t *testing.T) {
	b := graph.NewBuilder("early")
	b.StartNode("start", plain(earlyResumer{})...)
	def, err := b.Build()
	require.NoError(t, err)
	srv := startNavigator(t)
	instance, err := srv.Instantiate(def, "", nil)
	require.NoError(t, err)
	ended := wait(t, srv, instance)
	resumed, _ := ended.Variables().Get("resumed")
	assert.Equal(t, "early", resumed)
}

type panicking struct{}

func (panicking) Execute(graph.Token) error { panic("boom") }
func (panicking) Cancel(graph.Token)        {}

type failing struct{}

func (failing) Execute(graph.Token) error { return errors.New("failed") }
func (failing) Cancel(graph.Token)        {}

func TestNavigator_ErrorIsolation(t *testing.T) {
	end := activity.NewEnd()
	b := graph.NewBuilder("isolate")
	start := b.StartNode("start", plain(activity.Nop{})...)
	b.Flow(start, b.Node("bad", plain(panicking{})...))
	b.Flow(start, b.Node("good", plain(end)...))
	def, err := b.Build()
	require.NoError(t, err)

	srv := startNavigator(t, navigator.WithConfig(navigator.Config{WorkerCount: 1, QueueBuffer: 8, RequeueMin: time.Millisecond, RequeueMax: time.Millisecond}))
	for i := 0; i < 3; i++ {
		instance, err := srv.Instantiate(def, "", nil)
		require.NoError(t, err)
		ended := wait(t, srv, instance)
		var activityErr *execution.ActivityExecutionError
		require.True(t, errors.As(ended.Err(), &activityErr))
		assert.True(t, activityErr.Panic)
		assert.Equal(t, "bad", activityErr.NodeID)
		assert.Equal(t, execution.InstanceCompleted, ended.State(), "isolated failure keeps the instance")
		assert.Len(t, end.Reached(instance.ID), 1, "sibling branch still completes on the single worker")
	}
}

func TestNavigator_FailInstance(t *testing.T) {
	b := graph.NewBuilder("fail")
	start := b.StartNode("start", plain(activity.Nop{})...)
	b.Flow(start, b.Node("bad", plain(failing{})...))
	b.Flow(start, b.Node("wait", plain(&payloadProbe{})...))
	def, err := b.Build()
	require.NoError(t, err)

	srv := startNavigator(t, navigator.WithPolicy(&policy.Policy{Error: policy.ErrorFailInstance}))
	instance, err := srv.Instantiate(def, "", nil)
	require.NoError(t, err)
	ended := wait(t, srv, instance)
	assert.Equal(t, execution.InstanceFailed, ended.State())
	assert.True(t, ended.Cancelled())
	assert.Empty(t, srv.Suspended())
}

func TestNavigator_EventRace(t *testing.T) {
	for round := 0; round < 20; round++ {
		srv := startNavigator(t)
		triggers := trigger.New(srv, nil)
		end := activity.NewEnd()
		split := behaviour.NewEventRaceSplit()

		b := graph.NewBuilder("race")
		gateway := b.StartNode("gateway", options(activity.Nop{}, behaviour.Simple{}, split)...)
		left := b.Node("left", options(&activity.IntermediateEvent{Adapter: "left", Triggers: triggers}, behaviour.EventRace{}, behaviour.TakeAll{})...)
		right := b.Node("right", options(&activity.IntermediateEvent{Adapter: "right", Triggers: triggers}, behaviour.EventRace{}, behaviour.TakeAll{})...)
		finish := b.Node("end", plain(end)...)
		b.Flow(gateway, left)
		b.Flow(gateway, right)
		b.Flow(left, finish)
		b.Flow(right, finish)
		def, err := b.Build()
		require.NoError(t, err)

		instance, err := srv.Instantiate(def, "", nil)
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			return len(triggers.Subscriptions("left")) == 1 && len(triggers.Subscriptions("right")) == 1
		}, 5*time.Second, time.Millisecond)

		var wg sync.WaitGroup
		var fired int32
		for _, adapter := range []string{"left", "right"} {
			wg.Add(1)
			go func(adapter string) {
				defer wg.Done()
				count, _ := triggers.Trigger(adapter, adapter)
				atomic.AddInt32(&fired, int32(count))
			}(adapter)
		}
		wg.Wait()
		ended := wait(t, srv, instance)

		assert.Len(t, end.Reached(instance.ID), 1, "exactly one continuation")
		assert.Empty(t, triggers.Subscriptions("left"))
		assert.Empty(t, triggers.Subscriptions("right"))
		assert.NoError(t, ended.Err())
		assert.Equal(t, 1, ended.Progress().Snapshot().AbortedTokens, "loser aborted")
	}
}

func TestNavigator_EventRaceLoserUnregistered(t *testing.T) {
	srv := startNavigator(t)
	triggers := trigger.New(srv, nil)
	timers := timer.New(srv, nil)
	end := activity.NewEnd()

	b := graph.NewBuilder("race")
	gateway := b.StartNode("gateway", options(activity.Nop{}, behaviour.Simple{}, behaviour.NewEventRaceSplit())...)
	signal := b.Node("signal", options(&activity.IntermediateEvent{Adapter: "signal", Triggers: triggers}, behaviour.EventRace{}, behaviour.TakeAll{})...)
	timeout := b.Node("timeout", options(&activity.Timer{Delay: time.Hour, Timers: timers}, behaviour.EventRace{}, behaviour.TakeAll{})...)
	b.Flow(gateway, signal)
	b.Flow(gateway, timeout)
	b.Flow(signal, b.Node("end", plain(end)...))
	def, err := b.Build()
	require.NoError(t, err)

	instance, err := srv.Instantiate(def, "", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(triggers.Subscriptions("signal")) == 1 && timers.Count() == 1
	}, 5*time.Second, time.Millisecond)

	count, err := triggers.Trigger("signal", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	wait(t, srv, instance)
	assert.Equal(t, 0, timers.Count(), "losing timer unregistered")
	assert.Len(t, end.Reached(instance.ID), 1)
}

func TestNavigator_CancelInstance(t *testing.T) {
	srv := startNavigator(t)
	timers := timer.New(srv, nil)
	b := graph.NewBuilder("cancel")
	start := b.StartNode("start", plain(activity.Nop{})...)
	b.Flow(start, b.Node("t1", plain(&activity.Timer{Delay: time.Hour, Timers: timers})...))
	b.Flow(start, b.Node("t2", plain(&activity.Timer{Delay: time.Hour, Timers: timers})...))
	def, err := b.Build()
	require.NoError(t, err)

	instance, err := srv.Instantiate(def, "", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return timers.Count() == 2 && len(srv.Suspended()) == 2 }, 5*time.Second, time.Millisecond)

	require.NoError(t, srv.CancelInstance(instance.ID))
	require.NoError(t, srv.CancelInstance(instance.ID), "cancel twice")
	ended := wait(t, srv, instance)
	assert.Equal(t, execution.InstanceCancelled, ended.State())
	assert.Equal(t, 0, timers.Count())
	assert.Empty(t, srv.Suspended())
	assert.Empty(t, ended.LiveTokens())
	assert.Equal(t, 2, ended.Progress().Snapshot().AbortedTokens)

	err = srv.CancelInstance("missing")
	assert.True(t, errors.Is(err, execution.ErrInstanceNotFound))
}

func TestNavigator_Listener(t *testing.T) {
	var mu sync.Mutex
	var transitions []string
	listener := execution.ListenerFunc(func(token *execution.Token, from, to graph.ActivityState) {
		mu.Lock()
		transitions = append(transitions, string(from)+">"+string(to))
		mu.Unlock()
	})
	b := graph.NewBuilder("single")
	b.StartNode("start", plain(activity.Nop{})...)
	def, err := b.Build()
	require.NoError(t, err)

	srv := startNavigator(t, navigator.WithListener(listener))
	instance, err := srv.Instantiate(def, "", nil)
	require.NoError(t, err)
	wait(t, srv, instance)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"INIT>READY", "READY>ACTIVE", "ACTIVE>COMPLETED"}, transitions)
}

func TestNavigator_AddWorkTokenRequiresReady(t *testing.T) {
	b := graph.NewBuilder("wait")
	b.StartNode("start", plain(&payloadProbe{})...)
	def, err := b.Build()
	require.NoError(t, err)
	srv := startNavigator(t)
	instance, err := srv.Instantiate(def, "", nil)
	require.NoError(t, err)
	token := waitingToken(t, srv, instance.ID)

	err = srv.AddWorkToken(token)
	var illegal *execution.IllegalStateError
	require.True(t, errors.As(err, &illegal))
	assert.Equal(t, graph.StateWaiting, illegal.State)
	assert.Equal(t, graph.StateWaiting, token.State(), "rejected call leaves the token alone")
	require.NoError(t, srv.CancelInstance(instance.ID))
}

func TestNavigator_LoopThroughBarrier(t *testing.T) {
	recorder := &visits{}
	b := graph.NewBuilder("loop")
	start := b.StartNode("start", plain(&activity.SetVariables{Values: map[string]interface{}{"n": 0}})...)
	fork := b.Node("fork", plain(activity.Nop{})...)
	a := b.Node("a", plain(recorder)...)
	c := b.Node("c", plain(recorder)...)
	join := b.Node("join", options(activity.AddVariables("n", "n", "one"), behaviour.NewAndJoin(), behaviour.Exclusive{})...)
	b.Flow(start, fork)
	b.Flow(fork, a)
	b.Flow(fork, c)
	b.Flow(a, join)
	b.Flow(c, join)
	b.ConditionalFlow(join, fork, condition.MustExpression("n < 3"))
	b.ConditionalFlow(join, b.Node("done", plain(recorder)...), condition.MustExpression("n >= 3"))
	def, err := b.Build()
	require.NoError(t, err)

	srv := startNavigator(t)
	instance, err := srv.Instantiate(def, "", map[string]interface{}{"one": 1})
	require.NoError(t, err)
	ended := wait(t, srv, instance)
	require.NoError(t, ended.Err())
	assert.Equal(t, 3, recorder.count("a"))
	assert.Equal(t, 3, recorder.count("c"))
	assert.Equal(t, 1, recorder.count("done"))
}

// gatedSubscriber holds Subscribe for one adapter until the gate opens.
type gatedSubscriber struct {
	*trigger.Service
	adapter string
	entered chan struct{}
	gate    chan struct{}
}

func newGatedSubscriber(triggers *trigger.Service, adapter string) *gatedSubscriber {
	return &gatedSubscriber{Service: triggers, adapter: adapter, entered: make(chan struct{}), gate: make(chan struct{})}
}

func (g *gatedSubscriber) Subscribe(adapter, tokenID string) string {
	if adapter == g.adapter {
		close(g.entered)
		<-g.gate
	}
	return g.Service.Subscribe(adapter, tokenID)
}

func TestNavigator_CancelDuringActivation(t *testing.T) {
	srv := startNavigator(t)
	triggers := trigger.New(srv, nil)
	gated := newGatedSubscriber(triggers, "signal")

	b := graph.NewBuilder("cancel-active")
	start := b.StartNode("start", plain(activity.Nop{})...)
	b.Flow(start, b.Node("signal", plain(&activity.IntermediateEvent{Adapter: "signal", Triggers: gated})...))
	def, err := b.Build()
	require.NoError(t, err)

	instance, err := srv.Instantiate(def, "", nil)
	require.NoError(t, err)
	select {
	case <-gated.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("activity never subscribed")
	}

	require.NoError(t, srv.CancelInstance(instance.ID))
	close(gated.gate)
	ended := wait(t, srv, instance)
	assert.Equal(t, execution.InstanceCancelled, ended.State())
	assert.NoError(t, ended.Err())
	require.Eventually(t, func() bool { return len(triggers.Subscriptions("signal")) == 0 },
		5*time.Second, time.Millisecond, "subscription made after cancel is withdrawn")
	assert.Empty(t, srv.Suspended())
}

func TestNavigator_EventRaceLoserStillSubscribing(t *testing.T) {
	srv := startNavigator(t)
	triggers := trigger.New(srv, nil)
	gated := newGatedSubscriber(triggers, "slow")
	end := activity.NewEnd()

	b := graph.NewBuilder("race")
	gateway := b.StartNode("gateway", options(activity.Nop{}, behaviour.Simple{}, behaviour.NewEventRaceSplit())...)
	slow := b.Node("slow", options(&activity.IntermediateEvent{Adapter: "slow", Triggers: gated}, behaviour.EventRace{}, behaviour.TakeAll{})...)
	fast := b.Node("fast", options(&activity.IntermediateEvent{Adapter: "fast", Triggers: gated}, behaviour.EventRace{}, behaviour.TakeAll{})...)
	finish := b.Node("end", plain(end)...)
	b.Flow(gateway, slow)
	b.Flow(gateway, fast)
	b.Flow(slow, finish)
	b.Flow(fast, finish)
	def, err := b.Build()
	require.NoError(t, err)

	instance, err := srv.Instantiate(def, "", nil)
	require.NoError(t, err)
	select {
	case <-gated.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("slow branch never subscribed")
	}
	require.Eventually(t, func() bool { return len(triggers.Subscriptions("fast")) == 1 }, 5*time.Second, time.Millisecond)

	count, err := triggers.Trigger("fast", "go")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	ended := wait(t, srv, instance)
	close(gated.gate)

	assert.Len(t, end.Reached(instance.ID), 1)
	assert.NoError(t, ended.Err())
	require.Eventually(t, func() bool { return len(triggers.Subscriptions("slow")) == 0 },
		5*time.Second, time.Millisecond, "losing branch withdraws its late subscription")
}

type verdict struct {
	Approved bool
	By       string
}

func TestNavigator_HumanTaskTypedResult(t *testing.T) {
	srv := startNavigator(t)
	list := wlmem.New(srv)
	task := &activity.HumanTask{
		Subject:        "review",
		ResultVariable: "review",
		NewResult:      func() interface{} { return &verdict{} },
		Worklist:       list,
	}
	b := graph.NewBuilder("review")
	start := b.StartNode("start", plain(activity.Nop{})...)
	b.Flow(start, b.Node("review", plain(task)...))
	def, err := b.Build()
	require.NoError(t, err)

	instance, err := srv.Instantiate(def, "", nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.Eventually(t, func() bool {
		pending, _ := list.Pending(ctx)
		return len(pending) == 1
	}, 5*time.Second, time.Millisecond)
	pending, err := list.Pending(ctx)
	require.NoError(t, err)

	_, err = list.Complete(ctx, pending[0].ID, map[string]interface{}{"Approved": true, "By": "ops"})
	require.NoError(t, err)
	ended := wait(t, srv, instance)
	review, _ := ended.Variables().Get("review")
	assert.Equal(t, &verdict{Approved: true, By: "ops"}, review)
}

package navigator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/tokenflow/model/graph"
	"github.com/viant/tokenflow/runtime/activity"
	"github.com/viant/tokenflow/runtime/behaviour"
	"github.com/viant/tokenflow/runtime/execution"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLockTable(t *testing.T) {
	table := newLockTable()
	lock := table.get("t1")
	assert.True(t, lock.TryLock())
	assert.False(t, table.get("t1").TryLock(), "same token shares a lock")

	table.forget("t1")
	assert.Equal(t, 1, table.size(), "held lock survives forget")

	table.release("t1", false)
	assert.Equal(t, 1, table.size())
	assert.True(t, table.get("t1").TryLock())
	table.release("t1", true)
	assert.Equal(t, 0, table.size())

	table.get("t2")
	table.forget("t2")
	assert.Equal(t, 0, table.size(), "idle lock dropped")
	table.release("missing", true)
}

func TestSuspendedSet(t *testing.T) {
	set := newSuspendedSet()
	set.add("b", "i1")
	set.add("a", "i1")
	assert.Equal(t, []string{"a", "b"}, set.ids())
	set.remove("a")
	set.remove("a")
	assert.Equal(t, []string{"b"}, set.ids())
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		description string
		config      Config
		expectErr   bool
	}{
		{description: "default", config: DefaultConfig()},
		{description: "no workers", config: Config{QueueBuffer: 1, RequeueMin: time.Millisecond, RequeueMax: time.Millisecond}, expectErr: true},
		{description: "inverted window", config: Config{WorkerCount: 1, QueueBuffer: 1, RequeueMin: time.Second, RequeueMax: time.Millisecond}, expectErr: true},
	}
	for _, testCase := range testCases {
		err := testCase.config.Validate()
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		assert.NoError(t, err, testCase.description)
	}
}

func TestConfig_Backoff(t *testing.T) {
	config := Config{WorkerCount: 1, QueueBuffer: 1, RequeueMin: time.Millisecond, RequeueMax: 10 * time.Millisecond}
	strategy := config.Backoff()
	for attempt := uint(0); attempt < 20; attempt++ {
		delay := strategy(nil, attempt)
		assert.GreaterOrEqual(t, delay, config.RequeueMin)
		assert.LessOrEqual(t, delay, config.RequeueMax)
	}
}

func TestService_RequeuesLockedToken(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	config := DefaultConfig()
	config.WorkerCount = 1
	config.RequeueMax = 5 * time.Millisecond
	srv, err := New(WithConfig(config), WithLogger(zap.New(core)))
	require.NoError(t, err)

	b := graph.NewBuilder("locked")
	b.StartNode("start", graph.WithActivity(activity.Nop{}), graph.WithJoin(behaviour.Simple{}), graph.WithSplit(behaviour.TakeAll{}))
	def, err := b.Build()
	require.NoError(t, err)
	instance, err := srv.Instantiate(def, "", nil)
	require.NoError(t, err)
	tokens := instance.LiveTokens()
	require.Len(t, tokens, 1)

	lock := srv.locks.get(tokens[0])
	require.True(t, lock.TryLock())
	require.NoError(t, srv.Start(context.Background()))
	defer func() { _ = srv.Shutdown(context.Background()) }()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("token busy, requeueing").Len() >= 2
	}, 5*time.Second, time.Millisecond, "locked token redelivered more than once")
	lock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ended, err := srv.Wait(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.InstanceCompleted, ended.State())
}

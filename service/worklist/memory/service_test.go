package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/tokenflow/service/dao"
	qmem "github.com/viant/tokenflow/service/messaging/memory"
	"github.com/viant/tokenflow/service/worklist"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingResumer struct {
	mu      sync.Mutex
	resumed map[string]interface{}
}

func (r *recordingResumer) Resume(tokenID string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resumed == nil {
		r.resumed = map[string]interface{}{}
	}
	r.resumed[tokenID] = payload
	return nil
}

func TestService_CompleteResumesToken(t *testing.T) {
	ctx := context.Background()
	resumer := &recordingResumer{}
	srv := New(resumer)

	item := &worklist.Item{TokenID: "tok-1", InstanceID: "inst-1", Subject: "approve order", Role: "clerk"}
	require.NoError(t, srv.Create(ctx, item))
	assert.NotEmpty(t, item.ID)

	pending, err := srv.Pending(ctx, dao.NewParameter("role", "clerk"))
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	completed, err := srv.Complete(ctx, item.ID, map[string]interface{}{"approved": true})
	require.NoError(t, err)
	assert.Equal(t, worklist.ItemCompleted, completed.State)
	assert.Equal(t, map[string]interface{}{"approved": true}, resumer.resumed["tok-1"])

	_, err = srv.Complete(ctx, item.ID, nil)
	assert.Error(t, err, "item completes once")

	pending, _ = srv.Pending(ctx)
	assert.Empty(t, pending)
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()
	srv := New(&recordingResumer{})
	item := &worklist.Item{TokenID: "tok-1"}
	require.NoError(t, srv.Create(ctx, item))

	require.NoError(t, srv.Cancel(ctx, item.ID))
	require.NoError(t, srv.Cancel(ctx, item.ID), "cancel is idempotent")
	require.NoError(t, srv.Cancel(ctx, "unknown"))

	loaded, err := srv.Load(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, worklist.ItemCancelled, loaded.State)
	_, err = srv.Complete(ctx, item.ID, nil)
	assert.Error(t, err, "cancelled item cannot complete")
}

func TestService_Events(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	srv := New(&recordingResumer{}, WithEventQueue(qmem.NewQueue[worklist.Event](qmem.DefaultConfig())))
	item := &worklist.Item{TokenID: "tok-1"}
	require.NoError(t, srv.Create(ctx, item))
	_, err := srv.Complete(ctx, item.ID, "done")
	require.NoError(t, err)

	var topics []string
	for i := 0; i < 2; i++ {
		msg, err := srv.Queue().Consume(ctx)
		require.NoError(t, err)
		topics = append(topics, msg.T().Topic)
		_ = msg.Ack()
	}
	assert.Equal(t, []string{worklist.TopicItemCreated, worklist.TopicItemCompleted}, topics)
}

func TestService_NoEventQueue(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.DebugLevel)
	srv := New(&recordingResumer{}, WithLogger(zap.New(core)))
	assert.Nil(t, srv.Queue())
	for i := 0; i < 2*qmem.DefaultConfig().QueueBuffer; i++ {
		item := &worklist.Item{TokenID: "tok"}
		require.NoError(t, srv.Create(ctx, item))
		require.NoError(t, srv.Cancel(ctx, item.ID))
	}
	assert.Equal(t, 0, logs.Len(), "nothing published, nothing dropped")
}

func TestAutoCompleter(t *testing.T) {
	ctx := context.Background()
	resumer := &recordingResumer{}
	srv := New(resumer)
	require.NoError(t, srv.Create(ctx, &worklist.Item{TokenID: "tok-9"}))

	stop := worklist.AutoCompleter(ctx, srv, func(item *worklist.Item) (interface{}, bool) {
		return "auto", true
	}, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		resumer.mu.Lock()
		defer resumer.mu.Unlock()
		return resumer.resumed["tok-9"] == "auto"
	}, time.Second, 5*time.Millisecond)
	stop()
	assert.NotPanics(t, stop, "stop twice")
}

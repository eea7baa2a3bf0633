package conversations

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partselect-assistant/server/internal/agent/model"
	"github.com/partselect-assistant/server/internal/agent/repo"
)

func newManager(maxMessages int) *MessagesManager {
	cfg := model.ConversationConfig{MaxMessages: maxMessages, MaxConversations: 100}
	return NewMessagesManager(repo.NewMemoryConversationRepository(cfg), cfg)
}

func TestMessagesManager_SaveTurnAndHistory(t *testing.T) {
	ctx := context.Background()
	mm := newManager(20)

	require.NoError(t, mm.SaveTurn(ctx, "c1", "need a water filter", "Try W10295370A."))
	require.NoError(t, mm.SaveTurn(ctx, "c1", "", "ignored"))

	h, err := mm.History(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, h, 2)
	assert.Equal(t, "need a water filter", h[0].Content)
	assert.Equal(t, "Try W10295370A.", h[1].Content)

	require.NoError(t, mm.Clear(ctx, "c1"))
	h, err = mm.History(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, h)
}

func TestTrimTail(t *testing.T) {
	mm := newManager(0)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, mm.SaveTurn(ctx, "c", "q", "a"))
	}
	h, _ := mm.History(ctx, "c")
	assert.Len(t, h, 6)
	assert.Len(t, trimTail(h, 4), 4)
}

func TestMessagesManager_LockSerializesPerConversation(t *testing.T) {
	mm := newManager(20)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := mm.Lock(context.Background(), "same")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Zero(t, mm.activeLocks(), "lock entries are released")
}

func TestMessagesManager_LocksAreIndependent(t *testing.T) {
	mm := newManager(20)
	unlockA, err := mm.Lock(context.Background(), "a")
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		unlock, err := mm.Lock(context.Background(), "b")
		if assert.NoError(t, err) {
			unlock()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	unlockA()
}

func TestMessagesManager_LockGivesUpWhenContextEnds(t *testing.T) {
	mm := newManager(20)
	unlock, err := mm.Lock(context.Background(), "busy")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = mm.Lock(ctx, "busy")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Zero(t, mm.activeLocks(), "abandoned waits release their entry")

	unlock, err = mm.Lock(context.Background(), "busy")
	require.NoError(t, err)
	unlock()
}

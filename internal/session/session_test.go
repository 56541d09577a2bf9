package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfront/internal/cache"
)

func newTestMemory() *Memory {
	return New(cache.Handle("session-test", cache.Namespace{KeyPrefix: "session-test:", MaxEntries: 1000}), time.Minute)
}

func TestAppendTurnSlidingWindow(t *testing.T) {
	m := newTestMemory()
	sid := m.CreateSession()
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		m.AppendTurn(ctx, sid, "hello", "hi there")
	}

	history := m.GetHistory(ctx, sid)
	require.Len(t, history, 20)
	for i, msg := range history {
		if i%2 == 0 {
			assert.Equal(t, "user", msg.Role)
		} else {
			assert.Equal(t, "assistant", msg.Role)
		}
	}
}

func TestGetHistoryEmptyForUnknownSession(t *testing.T) {
	m := newTestMemory()
	history := m.GetHistory(context.Background(), "does-not-exist")
	assert.Empty(t, history)
}

func TestClearIsIdempotent(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()
	sid := m.CreateSession()
	m.AppendTurn(ctx, sid, "q", "a")

	assert.True(t, m.Clear(ctx, sid))
	assert.True(t, len(m.GetHistory(ctx, sid)) == 0)
	assert.False(t, m.Clear(ctx, sid), "second clear is a no-op and reports no prior session")
}

func TestBuildEnrichedQuery(t *testing.T) {
	assert.Equal(t, "hi", BuildEnrichedQuery("hi", nil))

	history := []ChatMessage{
		{Role: "user", Content: "show me phones"},
		{Role: "assistant", Content: "here are some phones"},
	}
	enriched := BuildEnrichedQuery("which is cheapest", history)
	assert.Contains(t, enriched, "[CONVERSATION HISTORY]")
	assert.Contains(t, enriched, "user: show me phones")
	assert.Contains(t, enriched, "[CURRENT QUERY]")
	assert.Contains(t, enriched, "user: which is cheapest")
}

func TestAppendTurnConcurrentSafe(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()
	sid := m.CreateSession()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.AppendTurn(ctx, sid, "q", "a")
		}()
	}
	wg.Wait()

	history := m.GetHistory(ctx, sid)
	assert.LessOrEqual(t, len(history), 20)
	assert.Equal(t, 0, len(history)%2, "pairs must remain even-aligned")
}

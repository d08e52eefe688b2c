package engage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/rag"
)

// blockingKnowledge lets a test hold workers busy to fill the queue.
type blockingKnowledge struct {
	mockKnowledge
	gate chan struct{}
}

func (b *blockingKnowledge) StoreInteraction(ctx context.Context, in *rag.Interaction) bool {
	<-b.gate
	return b.mockKnowledge.StoreInteraction(ctx, in)
}

func TestWriteback_StoresAll(t *testing.T) {
	knowledge := newMockKnowledge()
	wb := NewWriteback(knowledge, 2, 16, nil, zap.NewNop())

	for i := 0; i < 10; i++ {
		assert.True(t, wb.Enqueue(&rag.Interaction{Persona: "architect", Iteration: i}))
	}
	wb.Close()

	assert.Len(t, knowledge.stored, 10)
}

func TestWriteback_DropsOnSaturation(t *testing.T) {
	knowledge := &blockingKnowledge{mockKnowledge: *newMockKnowledge(), gate: make(chan struct{})}
	wb := NewWriteback(knowledge, 1, 2, nil, zap.NewNop())

	// One interaction occupies the worker, two fill the queue; give the
	// worker a moment to pick up the first.
	require.True(t, wb.Enqueue(&rag.Interaction{Persona: "a"}))
	time.Sleep(10 * time.Millisecond)
	require.True(t, wb.Enqueue(&rag.Interaction{Persona: "b"}))
	require.True(t, wb.Enqueue(&rag.Interaction{Persona: "c"}))

	assert.False(t, wb.Enqueue(&rag.Interaction{Persona: "overflow"}))

	close(knowledge.gate)
	wb.Close()
	assert.Len(t, knowledge.stored, 3)
}

func TestWriteback_ClosedRejects(t *testing.T) {
	wb := NewWriteback(newMockKnowledge(), 1, 4, nil, zap.NewNop())
	wb.Close()

	assert.False(t, wb.Enqueue(&rag.Interaction{Persona: "late"}))
	// Closing twice is harmless.
	wb.Close()
}

func TestWriteback_NilSafe(t *testing.T) {
	var wb *Writeback
	assert.False(t, wb.Enqueue(&rag.Interaction{}))
	wb.Close()
}

func TestSessionLocks_Serializes(t *testing.T) {
	locks := newSessionLocks()
	id := uuid.New()

	var held bool
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.acquire(id)
			defer release()

			mu.Lock()
			require.False(t, held)
			held = true
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			held = false
			mu.Unlock()
		}()
	}
	wg.Wait()

	// All holders released: the entry table empties out.
	locks.mu.Lock()
	assert.Empty(t, locks.entries)
	locks.mu.Unlock()
}

func TestSessionLocks_IndependentSessions(t *testing.T) {
	locks := newSessionLocks()

	releaseA := locks.acquire(uuid.New())
	releaseB := locks.acquire(uuid.New())

	// Different sessions never contend; both grants succeed immediately.
	releaseB()
	releaseA()
}

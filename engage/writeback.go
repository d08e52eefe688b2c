package engage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/parley-ai/parley/internal/metrics"
	"github.com/parley-ai/parley/rag"
)

const writebackTimeout = 15 * time.Second

// Writeback stores persona interactions into the knowledge gateway without
// blocking the caller's response. The queue is bounded; on saturation new
// interactions are dropped and logged rather than applying backpressure to
// the iteration path.
type Writeback struct {
	client    rag.Client
	queue     chan *rag.Interaction
	wg        sync.WaitGroup
	closed    atomic.Bool
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewWriteback starts the worker goroutines and returns the queue.
func NewWriteback(client rag.Client, workers, queueSize int, collector *metrics.Collector, logger *zap.Logger) *Writeback {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	w := &Writeback{
		client:    client,
		queue:     make(chan *rag.Interaction, queueSize),
		collector: collector,
		logger:    logger.With(zap.String("component", "writeback")),
	}

	w.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go w.worker()
	}
	return w
}

// Enqueue submits an interaction for storage. Returns false when the queue is
// saturated or closed; the interaction is dropped in that case.
func (w *Writeback) Enqueue(in *rag.Interaction) bool {
	if w == nil || w.closed.Load() {
		return false
	}

	select {
	case w.queue <- in:
		w.collector.SetWritebackDepth(len(w.queue))
		return true
	default:
		w.collector.RecordWriteback("dropped")
		w.logger.Warn("writeback queue saturated, dropping interaction",
			zap.String("persona", in.Persona),
			zap.String("session_id", in.SessionID.String()))
		return false
	}
}

// Close stops accepting new interactions and drains the queue.
func (w *Writeback) Close() {
	if w == nil || w.closed.Swap(true) {
		return
	}
	close(w.queue)
	w.wg.Wait()
}

func (w *Writeback) worker() {
	defer w.wg.Done()

	for in := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writebackTimeout)
		ok := w.client.StoreInteraction(ctx, in)
		cancel()

		w.collector.SetWritebackDepth(len(w.queue))
		if ok {
			w.collector.RecordWriteback("ok")
		} else {
			w.collector.RecordWriteback("failed")
			w.logger.Warn("interaction store failed",
				zap.String("persona", in.Persona),
				zap.String("session_id", in.SessionID.String()),
				zap.Int("iteration", in.Iteration))
		}
	}
}

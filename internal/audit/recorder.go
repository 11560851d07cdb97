package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultBuffer is the queue length used when NewRecorder gets size <= 0.
const DefaultBuffer = 256

// writeTimeout bounds a single insert.
const writeTimeout = 5 * time.Second

// Recorder queues entries and writes them serially on one goroutine, which
// suits SQLite's single-writer model. A nil *Recorder discards everything.
type Recorder struct {
	repo   Repository
	logger *slog.Logger
	ch     chan *Entry
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts the writer goroutine. Call Close to drain and stop it.
func NewRecorder(repo Repository, logger *slog.Logger, size int) *Recorder {
	if size <= 0 {
		size = DefaultBuffer
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Recorder{
		repo:   repo,
		logger: logger,
		ch:     make(chan *Entry, size),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues e without blocking. Entries are dropped with a warning
// when the queue is full or the recorder is closed.
func (r *Recorder) Record(e Entry) {
	if r == nil {
		return
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("audit recorder closed, dropping entry", "action", e.Action, "entity_type", e.EntityType)
		return
	}
	select {
	case r.ch <- &e:
	default:
		r.logger.Warn("audit queue full, dropping entry", "action", e.Action, "entity_type", e.EntityType)
	}
}

// Close stops accepting entries and waits for queued ones to be written.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()

	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.repo.Create(ctx, e); err != nil {
			r.logger.Error("audit write failed", "action", e.Action, "entity_type", e.EntityType, "error", err)
		}
		cancel()
	}
}

package ledger

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	defaultQueueSize = 1024
	writeTimeout     = 5 * time.Second
)

type job struct {
	kind string
	key  string
	run  func(ctx context.Context) error
}

// Writer applies records to a Service on a background goroutine. Records are
// applied in submission order; when the queue is full the record is dropped.
type Writer struct {
	service Service
	queue   chan job

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewWriter(service Service, queueSize int) *Writer {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	w := &Writer{
		service: service,
		queue:   make(chan job, queueSize),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Writer) run() {
	defer close(w.done)
	for j := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := j.run(ctx); err != nil {
			log.Printf("[Ledger] %s failed: %s err=%v", j.kind, j.key, err)
		}
		cancel()
	}
}

func (w *Writer) submit(j job) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.queue <- j:
	default:
		log.Printf("[Ledger] queue full, dropping %s: %s", j.kind, j.key)
	}
}

// Close stops accepting records and waits for the queue to drain.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	<-w.done
}

func (w *Writer) RecordMatch(rec MatchRecord) {
	w.submit(job{kind: "record match", key: rec.MatchID, run: func(ctx context.Context) error {
		return w.service.RecordMatch(ctx, rec)
	}})
}

func (w *Writer) RecordDeck(rec DeckRecord) {
	w.submit(job{kind: "record deck", key: rec.RoundID, run: func(ctx context.Context) error {
		return w.service.RecordDeck(ctx, rec)
	}})
}

func (w *Writer) RecordTrick(rec TrickRecord) {
	w.submit(job{kind: "record trick", key: rec.RoundID, run: func(ctx context.Context) error {
		return w.service.RecordTrick(ctx, rec)
	}})
}

func (w *Writer) RecordRound(rec RoundRecord) {
	w.submit(job{kind: "record round", key: rec.RoundID, run: func(ctx context.Context) error {
		return w.service.RecordRound(ctx, rec)
	}})
}

func (w *Writer) RecordMatchEnd(rec MatchEndRecord) {
	w.submit(job{kind: "record match end", key: rec.MatchID, run: func(ctx context.Context) error {
		return w.service.RecordMatchEnd(ctx, rec)
	}})
}

func (w *Writer) AppendEvent(rec EventRecord) {
	w.submit(job{kind: "append event", key: rec.MatchID, run: func(ctx context.Context) error {
		return w.service.AppendEvent(ctx, rec)
	}})
}

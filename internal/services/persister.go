package services

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// SnapshotFunc serializes the current document. The persister calls it
// without holding its own lock.
type SnapshotFunc func() ([]byte, error)

// Persister coalesces mutations into debounced whole-document writes.
// Any number of MarkDirty calls inside one debounce window produce one
// write. Store failures are logged and dropped; memory stays authoritative.
type Persister struct {
	store    DocumentStore
	snapshot SnapshotFunc
	debounce time.Duration

	mu      sync.Mutex
	dirty   bool
	timer   *time.Timer
	flushMu sync.Mutex
	writes  atomic.Int64
}

func NewPersister(store DocumentStore, debounce time.Duration) *Persister {
	return &Persister{store: store, debounce: debounce}
}

// Bind sets the snapshot source. It must be called before the first
// MarkDirty.
func (p *Persister) Bind(snapshot SnapshotFunc) {
	p.mu.Lock()
	p.snapshot = snapshot
	p.mu.Unlock()
}

func (p *Persister) MarkDirty() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.dirty = true
	if p.timer != nil {
		return
	}
	p.timer = time.AfterFunc(p.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p.Flush(ctx)
	})
}

// Flush writes immediately if anything is pending.
func (p *Persister) Flush(ctx context.Context) {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	dirty := p.dirty
	p.dirty = false
	snapshot := p.snapshot
	p.mu.Unlock()

	if !dirty || snapshot == nil {
		return
	}

	data, err := snapshot()
	if err != nil {
		log.Printf("Failed to snapshot document: %v", err)
		return
	}
	if err := p.store.Save(ctx, data); err != nil {
		log.Printf("Failed to persist document: %v", err)
		return
	}
	p.writes.Add(1)
}

// Writes reports how many flushes reached the store.
func (p *Persister) Writes() int64 {
	return p.writes.Load()
}

func (p *Persister) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

package server

import (
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// defaultReapInterval is how often the reaper sweeps terminated workers
// out of the set.
const defaultReapInterval = 100 * time.Millisecond

// manager owns the set of connection workers and a background reaper
// removing the ones that reached a terminal state. All set mutations
// happen under one mutex.
type manager struct {
	logger *zap.SugaredLogger
	h      *handler

	mu      sync.Mutex
	workers []*worker

	stopReaper chan struct{}
	reaperDone chan struct{}
}

func newManager(logger *zap.SugaredLogger, h *handler, reapEvery time.Duration) *manager {
	if reapEvery <= 0 {
		reapEvery = defaultReapInterval
	}
	m := &manager{
		logger:     logger,
		h:          h,
		stopReaper: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}
	go m.reap(reapEvery)
	return m
}

// enlist appends a worker for the session and starts it immediately.
func (m *manager) enlist(conn net.Conn) *worker {
	w := newWorker(conn, m.h, m.logger)

	m.mu.Lock()
	m.workers = append(m.workers, w)
	m.mu.Unlock()

	w.start()
	return w
}

// count reports the current size of the worker set.
func (m *manager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

// snapshot copies the current worker set, for iteration without holding
// the lock across worker joins.
func (m *manager) snapshot() []*worker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*worker(nil), m.workers...)
}

// stopAll requests a stop on every worker, then waits for each to
// finish. No worker is abandoned.
func (m *manager) stopAll() {
	workers := m.snapshot()
	for _, w := range workers {
		w.requestStop()
	}
	for _, w := range workers {
		<-w.done
	}
}

// close stops the reaper. Workers must have been drained beforehand.
func (m *manager) close() {
	close(m.stopReaper)
	<-m.reaperDone
}

func (m *manager) reap(every time.Duration) {
	defer close(m.reaperDone)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopReaper:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.workers[:0]
	for _, w := range m.workers {
		if w.terminated() {
			m.logger.Debugw("Reaping finished worker", "conn", w.id)
			continue
		}
		kept = append(kept, w)
	}
	// nil out the tail so reaped workers can be collected
	for i := len(kept); i < len(m.workers); i++ {
		m.workers[i] = nil
	}
	m.workers = kept
}

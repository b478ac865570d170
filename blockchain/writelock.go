package blockchain

import "sync"

// writelock.go implements the Forest-root write lock as an RAII-style token
// (spec.md §4.5, §9): before dispatching an event whose handler will mutate
// a Forest root, the Blockchain Service acquires this lock and hands the
// guard to the handler inside the event payload. The handler must call
// Release exactly once, typically via defer, which re-enables dispatch of
// the next queued write.

// writeLock serializes Forest-root mutations across every task the
// Blockchain Service dispatches, per spec.md §5 "any two that would mutate
// the same Forest root are serialized via that same lock."
type writeLock struct {
	mu       sync.Mutex
	acquired bool
	waiters  []chan struct{}
}

func newWriteLock() *writeLock {
	return &writeLock{}
}

// acquire blocks until the lock is free, then returns a guard the caller
// must Release exactly once.
func (w *writeLock) acquire() *lockGuard {
	w.mu.Lock()
	if !w.acquired {
		w.acquired = true
		w.mu.Unlock()
		return &lockGuard{lock: w}
	}
	wait := make(chan struct{})
	w.waiters = append(w.waiters, wait)
	w.mu.Unlock()
	<-wait
	return &lockGuard{lock: w}
}

func (w *writeLock) release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.waiters) == 0 {
		w.acquired = false
		return
	}
	next := w.waiters[0]
	w.waiters = w.waiters[1:]
	close(next)
}

// lockGuard is the RAII token passed to task event handlers. It implements
// types.ForestRootWriteLockGuard.
type lockGuard struct {
	lock *writeLock
	once sync.Once
}

// Release drops the write lock, re-enabling dispatch of the next queued
// Forest-root mutation. Safe to call more than once; only the first call has
// an effect.
func (g *lockGuard) Release() {
	g.once.Do(func() {
		g.lock.release()
	})
}

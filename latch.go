package pagedb

import (
	"math/rand"
	"sync"
	"time"
)

// LockMode is a page lock's granularity: shared (reader) or exclusive
// (writer). Internal translation target of the public Permissions type.
type LockMode int

const (
	Shared LockMode = iota
	Exclusive
)

func (m LockMode) String() string {
	if m == Exclusive {
		return "X"
	}
	return "S"
}

// LockTimeoutMin and LockTimeoutMax bound the randomized per-acquisition
// wait that breaks deadlocks: a blocked Acquire draws a timeout from this
// window and gives up after 90% of it rather than waiting forever. Test-only
// mutators exist below;
// production code should treat these as constants.
var (
	LockTimeoutMin = 1000 * time.Millisecond
	LockTimeoutMax = 4000 * time.Millisecond
)

// SetLockTimeoutRangeForTesting narrows the randomized wait window so tests
// don't have to wait up to 4 seconds to observe an abort. Returns a restore
// func.
func SetLockTimeoutRangeForTesting(min, max time.Duration) (restore func()) {
	prevMin, prevMax := LockTimeoutMin, LockTimeoutMax
	LockTimeoutMin, LockTimeoutMax = min, max
	return func() { LockTimeoutMin, LockTimeoutMax = prevMin, prevMax }
}

func randomLockTimeout() time.Duration {
	span := LockTimeoutMax - LockTimeoutMin
	if span <= 0 {
		return LockTimeoutMin
	}
	return LockTimeoutMin + time.Duration(rand.Int63n(int64(span)))
}

type latchWaiter struct {
	tid    TransactionId
	mode   LockMode
	signal chan struct{}
}

// PageLatch is a per-page multi-reader/single-writer lock keyed by
// transaction identity. One PageLatch guards exactly one page's
// holders/waiters; the BufferPool owns one per cached page.
type PageLatch struct {
	mu      sync.Mutex
	holders map[TransactionId]LockMode
	waiters []*latchWaiter
}

func newPageLatch() *PageLatch {
	return &PageLatch{holders: make(map[TransactionId]LockMode)}
}

// Holds reports whether tid currently holds this page in any mode.
func (l *PageLatch) Holds(tid TransactionId) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.holders[tid]
	return ok
}

// Held reports whether any transaction currently holds this page, in
// either mode.
func (l *PageLatch) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.holders) > 0
}

// compatibleLocked reports whether mode can be granted immediately given the
// current holder set. S×S is the only compatible pairing; everything else
// conflicts. Must be called with l.mu held.
func (l *PageLatch) compatibleLocked(mode LockMode) bool {
	if len(l.holders) == 0 {
		return true
	}
	if mode == Exclusive {
		return false
	}
	for _, held := range l.holders {
		if held == Exclusive {
			return false
		}
	}
	return true
}

// Acquire grants tid the requested mode on this page, blocking if
// necessary. Returns TransactionAbortedError if the wait times out; that is
// the only way Acquire can fail.
func (l *PageLatch) Acquire(tid TransactionId, pid PageId, mode LockMode) error {
	l.mu.Lock()
	if existing, ok := l.holders[tid]; ok {
		if existing == Exclusive || existing == mode {
			l.mu.Unlock()
			return nil
		}
		// existing == Shared, mode == Exclusive: upgrade.
		delete(l.holders, tid)
	}
	return l.acquireLocked(tid, pid, mode)
}

// acquireLocked performs the blocking acquire loop. Must be called with
// l.mu held and tid not already present in l.holders (the caller is
// responsible for having removed tid's S record first, for an upgrade).
func (l *PageLatch) acquireLocked(tid TransactionId, pid PageId, mode LockMode) error {
	for {
		if l.compatibleLocked(mode) {
			l.holders[tid] = mode
			l.mu.Unlock()
			return nil
		}

		w := &latchWaiter{tid: tid, mode: mode, signal: make(chan struct{})}
		l.waiters = append(l.waiters, w)
		timeout := randomLockTimeout()
		abortAfter := time.Duration(0.9 * float64(timeout))
		l.mu.Unlock()

		var timedOut bool
		select {
		case <-w.signal:
		case <-time.After(abortAfter):
			timedOut = true
		}

		l.mu.Lock()
		if timedOut {
			l.removeWaiterLocked(w)
			l.mu.Unlock()
			return TransactionAbortedError{Tid: tid, Pid: pid}
		}
		// Spurious wakeup tolerant: loop back and retry compatibility from
		// scratch rather than assuming the signal means success.
	}
}

func (l *PageLatch) removeWaiterLocked(target *latchWaiter) {
	for i, w := range l.waiters {
		if w == target {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return
		}
	}
}

// Release drops tid's holder record, if any, then wakes waiters under a
// writer-preferring policy: prefer waking a single X waiter over
// broadcasting to all S waiters, to avoid starving writers.
func (l *PageLatch) Release(tid TransactionId) {
	l.mu.Lock()
	delete(l.holders, tid)
	l.wakeLocked()
	l.mu.Unlock()
}

// forceHold installs tid as a holder in mode without going through the
// normal compatibility-checked acquire path. Used only by BufferPool when
// re-inserting a page that PageStore has just dirtied on tid's behalf: tid
// already holds the write permission that authorized the mutation, this
// just rebuilds the bookkeeping for a latch that didn't exist yet.
func (l *PageLatch) forceHold(tid TransactionId, mode LockMode) {
	l.mu.Lock()
	l.holders[tid] = mode
	l.mu.Unlock()
}

func (l *PageLatch) wakeLocked() {
	for i, w := range l.waiters {
		if w.mode == Exclusive {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			close(w.signal)
			return
		}
	}

	if len(l.waiters) == 0 {
		return
	}
	for _, w := range l.waiters {
		close(w.signal)
	}
	l.waiters = nil
}

package pagedb

import "sync"

// Permissions is what a caller asks of BufferPool.GetPage: read-only (shared
// latch) or read-write (exclusive latch).
type Permissions int

const (
	ReadOnly Permissions = iota
	ReadWrite
)

func (p Permissions) lockMode() LockMode {
	if p == ReadWrite {
		return Exclusive
	}
	return Shared
}

// bufferEntry is one cached page: the page itself, its latch, and the store
// that owns it (needed to flush it back to the right file).
type bufferEntry struct {
	page  Page
	latch *PageLatch
	store PageStore
}

// BufferPool is the bounded, shared page cache every page a transaction
// touches passes through first, under FORCE/NO-STEAL discipline (dirty
// pages of an uncommitted transaction are never evicted or written out
// early) and LRU eviction among clean pages. The pool's own mutex is locked
// only for bookkeeping and released before blocking on a page's latch, so a
// blocked Acquire never holds up unrelated pages.
type BufferPool struct {
	mu       sync.Mutex
	maxPages int
	entries  map[PageId]*bufferEntry
	lru      *lruList
}

// NewBufferPool creates an empty pool holding at most maxPages pages at
// once.
func NewBufferPool(maxPages int) *BufferPool {
	return &BufferPool{
		maxPages: maxPages,
		entries:  make(map[PageId]*bufferEntry),
		lru:      newLRUList(),
	}
}

// GetPage returns pid's page, fetching it from store on a cache miss and
// evicting a clean victim first if the pool is full. Blocks until tid can
// acquire perm's lock mode on the page, returning TransactionAbortedError if
// that wait times out.
//
// Releasing the pool mutex before blocking on the page's latch means one
// slow lock wait never stalls every other transaction's cache lookups.
// Because of that window, a page can be evicted or discarded out from under
// a waiter; once the latch is granted we re-check that the entry we fetched
// is still the one cached and retry from scratch if not.
func (bp *BufferPool) GetPage(tid TransactionId, store PageStore, pid PageId, perm Permissions) (Page, error) {
	for {
		bp.mu.Lock()
		entry, ok := bp.entries[pid]
		if !ok {
			if bp.lru.len() >= bp.maxPages {
				if err := bp.evictOneLocked(); err != nil {
					bp.mu.Unlock()
					return nil, err
				}
			}
			page, err := store.ReadPage(pid)
			if err != nil {
				bp.mu.Unlock()
				return nil, err
			}
			entry = &bufferEntry{page: page, latch: newPageLatch(), store: store}
			bp.entries[pid] = entry
		}
		bp.lru.touch(pid)
		latch := entry.latch
		bp.mu.Unlock()

		if err := latch.Acquire(tid, pid, perm.lockMode()); err != nil {
			return nil, err
		}

		bp.mu.Lock()
		current, stillCached := bp.entries[pid]
		bp.mu.Unlock()
		if stillCached && current == entry {
			return entry.page, nil
		}
		// Evicted or discarded while we waited for the lock. The grant we
		// just got is on an orphaned latch nobody else can see; drop it and
		// retry against whatever is cached now.
		latch.Release(tid)
	}
}

// ReleasePage drops tid's lock on pid early. Strict 2PL means ordinary
// transaction code should never call this — locks are released in bulk by
// TransactionComplete — but it exists for callers (tests, or operators that
// know a read lock can safely be given up) that want finer control.
func (bp *BufferPool) ReleasePage(tid TransactionId, pid PageId) {
	bp.mu.Lock()
	entry, ok := bp.entries[pid]
	bp.mu.Unlock()
	if ok {
		entry.latch.Release(tid)
	}
}

// Holds reports whether tid currently holds any lock on pid, for tests.
func (bp *BufferPool) Holds(tid TransactionId, pid PageId) bool {
	bp.mu.Lock()
	entry, ok := bp.entries[pid]
	bp.mu.Unlock()
	return ok && entry.latch.Holds(tid)
}

// InsertTuple routes t through store's insertion logic, then marks every
// page that came back dirty with tid. store.insertTuple/deleteTuple acquire
// each candidate page through this same pool, so by the time they return
// every touched page is already held under tid's exclusive lock.
func (bp *BufferPool) InsertTuple(tid TransactionId, hf *HeapFile, t *Tuple) error {
	dirtied, err := hf.insertTuple(tid, bp, t)
	if err != nil {
		return err
	}
	bp.markDirtied(tid, hf, dirtied)
	return nil
}

// DeleteTuple is InsertTuple's mirror for removal.
func (bp *BufferPool) DeleteTuple(tid TransactionId, hf *HeapFile, t *Tuple) error {
	dirtied, err := hf.deleteTuple(tid, bp, t)
	if err != nil {
		return err
	}
	bp.markDirtied(tid, hf, dirtied)
	return nil
}

func (bp *BufferPool) markDirtied(tid TransactionId, store PageStore, pages []Page) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, p := range pages {
		p.MarkDirty(tid)
		pid := p.PageId()
		if entry, ok := bp.entries[pid]; ok {
			entry.page = p
		} else {
			// Page is no longer cached: it was still clean when HeapFile
			// fetched it, so another GetPage may have evicted it since.
			// Rebuild its cache entry with tid already holding the write
			// lock that authorized the mutation.
			latch := newPageLatch()
			latch.forceHold(tid, Exclusive)
			bp.entries[pid] = &bufferEntry{page: p, latch: latch, store: store}
		}
		bp.lru.touch(pid)
	}
}

// evictOneLocked picks the least-recently-used clean page and drops it from
// the cache; flushing first is unnecessary since "clean" already means
// nothing to write. Returns BufferPoolFull if every cached page is dirty —
// NO-STEAL leaves no other option. Must be called with bp.mu held.
func (bp *BufferPool) evictOneLocked() error {
	var victim PageId
	found := false
	bp.lru.leastToMost(func(pid PageId) bool {
		entry := bp.entries[pid]
		if _, dirty := entry.page.Dirtied(); !dirty {
			victim = pid
			found = true
			return false
		}
		return true
	})
	if !found {
		return newDbError(BufferPoolFull, "no clean page available to evict (all %d pages dirty)", len(bp.entries))
	}
	delete(bp.entries, victim)
	bp.lru.remove(victim)
	return nil
}

// flushLocked writes pid's page back to its store if dirty, then marks it
// clean. Leaves the entry cached — flushing is not eviction. Must be called
// with bp.mu held.
func (bp *BufferPool) flushLocked(pid PageId) error {
	entry, ok := bp.entries[pid]
	if !ok {
		return nil
	}
	if _, dirty := entry.page.Dirtied(); !dirty {
		return nil
	}
	if err := entry.store.WritePage(entry.page); err != nil {
		return err
	}
	entry.page.MarkClean()
	return nil
}

// FlushPage writes pid back to disk if dirty. Part of the FORCE discipline:
// callers use this at commit time, never to make room (eviction never
// writes a dirty page — see evictOneLocked).
func (bp *BufferPool) FlushPage(pid PageId) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.flushLocked(pid)
}

// FlushAllPages writes every dirty cached page not currently held by any
// transaction back to disk, for a periodic checkpoint task that runs
// independent of any particular transaction's commit. NO-STEAL means a
// dirty page still held by a live transaction may belong to one that hasn't
// committed yet; writing it early would leave nothing for a later abort to
// undo, so such pages are skipped here and left for TransactionComplete to
// flush (or discard) when that transaction actually finishes.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	pids := make([]PageId, 0, len(bp.entries))
	for pid, entry := range bp.entries {
		if entry.latch.Held() {
			continue
		}
		pids = append(pids, pid)
	}
	for _, pid := range pids {
		if err := bp.flushLocked(pid); err != nil {
			return err
		}
	}
	return nil
}

// discardLocked drops pid from the cache without writing it, the abort-time
// counterpart to flushLocked. Must be called with bp.mu held.
func (bp *BufferPool) discardLocked(pid PageId) {
	delete(bp.entries, pid)
	bp.lru.remove(pid)
}

// DiscardPage removes pid from the cache without writing it back.
func (bp *BufferPool) DiscardPage(pid PageId) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.discardLocked(pid)
}

// TransactionComplete ends tid: on commit, every page it holds is flushed
// and kept cached; on abort, every page it holds is discarded uncommitted
// (NO-STEAL means none of them were ever written out, so discarding is
// enough to undo them). Either way, every lock tid held is then released.
func (bp *BufferPool) TransactionComplete(tid TransactionId, commit bool) error {
	bp.mu.Lock()
	pids := make([]PageId, 0, len(bp.entries))
	for pid, entry := range bp.entries {
		if entry.latch.Holds(tid) {
			pids = append(pids, pid)
		}
	}

	var firstErr error
	for _, pid := range pids {
		if commit {
			if err := bp.flushLocked(pid); err != nil && firstErr == nil {
				firstErr = err
			}
		} else {
			bp.discardLocked(pid)
		}
	}
	bp.mu.Unlock()

	for _, pid := range pids {
		bp.ReleasePage(tid, pid)
	}
	return firstErr
}

package pagedb

import (
	"path/filepath"
	"testing"
	"time"
)

func testSchema() TupleDesc {
	return NewTupleDesc([]FieldSpec{
		{Name: "id", Type: IntType},
		{Name: "name", Type: StringType, StrLen: 16},
	})
}

func newTestHeapFile(t *testing.T) *HeapFile {
	t.Helper()
	desc := testSchema()
	path := filepath.Join(t.TempDir(), "table.dat")
	hf, err := NewHeapFile(desc, path)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	return hf
}

// TestBufferPoolReadYourWrites covers the read-your-writes property: insert
// under one transaction, commit, then a fresh transaction's scan sees the
// row.
func TestBufferPoolReadYourWrites(t *testing.T) {
	restorePageSize := SetPageSizeForTesting(512)
	defer restorePageSize()

	hf := newTestHeapFile(t)
	bp := NewBufferPool(8)

	tid := NewTransactionId()
	tup := NewTuple(hf.Schema(), []DBValue{IntField(1), StringField("alice")})
	if err := bp.InsertTuple(tid, hf, tup); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := bp.TransactionComplete(tid, true); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tid2 := NewTransactionId()
	it := hf.Iterator(tid2, bp)
	if err := it.Open(); err != nil {
		t.Fatalf("open scan: %v", err)
	}
	rows, err := drain(it)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	it.Close()
	bp.TransactionComplete(tid2, true)

	if len(rows) != 1 {
		t.Fatalf("expected 1 row after commit, got %d", len(rows))
	}
	if rows[0].Values[1].S != "alice" {
		t.Fatalf("expected alice, got %v", rows[0].Values[1].S)
	}
}

// TestBufferPoolAbortDiscardsWrites covers the abort property: insert
// under a transaction that then aborts must leave the table empty for a
// later scan.
func TestBufferPoolAbortDiscardsWrites(t *testing.T) {
	restorePageSize := SetPageSizeForTesting(512)
	defer restorePageSize()

	hf := newTestHeapFile(t)
	bp := NewBufferPool(8)

	tid := NewTransactionId()
	tup := NewTuple(hf.Schema(), []DBValue{IntField(1), StringField("bob")})
	if err := bp.InsertTuple(tid, hf, tup); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := bp.TransactionComplete(tid, false); err != nil {
		t.Fatalf("abort: %v", err)
	}

	tid2 := NewTransactionId()
	it := hf.Iterator(tid2, bp)
	it.Open()
	rows, err := drain(it)
	it.Close()
	bp.TransactionComplete(tid2, true)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected 0 rows after abort, got %d", len(rows))
	}
}

// TestBufferPoolEvictsOnlyCleanPages is the NO-STEAL property: a pool at
// capacity with every cached page dirty must refuse a new page rather than
// evict a dirty one.
func TestBufferPoolEvictsOnlyCleanPages(t *testing.T) {
	restorePageSize := SetPageSizeForTesting(256)
	defer restorePageSize()

	hf := newTestHeapFile(t)
	bp := NewBufferPool(1)

	tid := NewTransactionId()
	tup1 := NewTuple(hf.Schema(), []DBValue{IntField(1), StringField("x")})
	if err := bp.InsertTuple(tid, hf, tup1); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	// Pool holds exactly one dirty page now (capacity 1). With PageSize 256
	// and 20-byte rows a page has 12 slots, so this second insert still fits
	// on the first page; the loop below keeps inserting until a second page
	// is needed, which must fail: the only cached page is dirty and NO-STEAL
	// forbids evicting it.
	tup2 := NewTuple(hf.Schema(), []DBValue{IntField(2), StringField("y")})
	err := bp.InsertTuple(tid, hf, tup2)
	if err == nil {
		// The first page may still have room depending on layout; that's
		// fine, this property only fires once the pool is actually full of
		// dirty pages. Force it by inserting until the page is full or the
		// pool complains.
		for i := 3; i < 50; i++ {
			tup := NewTuple(hf.Schema(), []DBValue{IntField(int32(i)), StringField("z")})
			if err := bp.InsertTuple(tid, hf, tup); err != nil {
				if dbErr, ok := err.(DbError); ok && dbErr.Kind == BufferPoolFull {
					return
				}
				t.Fatalf("unexpected error: %v", err)
			}
		}
		t.Fatal("expected BufferPoolFull once the single dirty page could hold no more and a second page was needed")
	}
	dbErr, ok := err.(DbError)
	if !ok || dbErr.Kind != BufferPoolFull {
		t.Fatalf("expected BufferPoolFull, got %v", err)
	}
}

// TestBufferPoolLocksBlockConcurrentWriters covers lock contention: a
// second transaction attempting to write the same page one transaction
// already holds exclusively must abort rather than silently corrupt state.
func TestBufferPoolLocksBlockConcurrentWriters(t *testing.T) {
	restoreTimeout := SetLockTimeoutRangeForTesting(30*time.Millisecond, 60*time.Millisecond)
	defer restoreTimeout()
	restorePageSize := SetPageSizeForTesting(512)
	defer restorePageSize()

	hf := newTestHeapFile(t)
	bp := NewBufferPool(8)

	tid1 := NewTransactionId()
	tup := NewTuple(hf.Schema(), []DBValue{IntField(1), StringField("a")})
	if err := bp.InsertTuple(tid1, hf, tup); err != nil {
		t.Fatalf("tid1 insert: %v", err)
	}

	tid2 := NewTransactionId()
	tup2 := NewTuple(hf.Schema(), []DBValue{IntField(2), StringField("b")})
	err := bp.InsertTuple(tid2, hf, tup2)
	if _, ok := err.(TransactionAbortedError); !ok {
		t.Fatalf("expected tid2 to abort contending for the same page, got %v", err)
	}
	bp.TransactionComplete(tid2, false)
	bp.TransactionComplete(tid1, true)
}

func TestBufferPoolHoldsReflectsLockState(t *testing.T) {
	restorePageSize := SetPageSizeForTesting(512)
	defer restorePageSize()

	hf := newTestHeapFile(t)
	bp := NewBufferPool(8)
	tid := NewTransactionId()

	tup := NewTuple(hf.Schema(), []DBValue{IntField(1), StringField("a")})
	if err := bp.InsertTuple(tid, hf, tup); err != nil {
		t.Fatalf("insert: %v", err)
	}
	pid := PageId{Table: hf.Id(), Index: 0}
	if !bp.Holds(tid, pid) {
		t.Fatal("tid should hold the page it just wrote")
	}
	bp.TransactionComplete(tid, true)
	if bp.Holds(tid, pid) {
		t.Fatal("lock should be released after TransactionComplete")
	}
}

// TestBufferPoolEvictsSpecificallyTheLeastRecentlyUsedPage pins eviction
// order, not just capacity: touching an older page moves it ahead of a
// newer one, so the newer one is the one evicted next.
func TestBufferPoolEvictsSpecificallyTheLeastRecentlyUsedPage(t *testing.T) {
	// 32 bytes fits exactly one 20-byte row per page, so each insert below
	// lands on a page of its own.
	restorePageSize := SetPageSizeForTesting(32)
	defer restorePageSize()

	hf := newTestHeapFile(t)
	seed := NewBufferPool(8)
	tid := NewTransactionId()
	for i := 0; i < 3; i++ {
		tup := NewTuple(hf.Schema(), []DBValue{IntField(int32(i)), StringField("v")})
		if err := seed.InsertTuple(tid, hf, tup); err != nil {
			t.Fatalf("seed insert %d: %v", i, err)
		}
	}
	if err := seed.TransactionComplete(tid, true); err != nil {
		t.Fatalf("seed commit: %v", err)
	}
	if hf.NumPages() < 3 {
		t.Fatalf("expected 3 distinct pages, got %d", hf.NumPages())
	}

	bp := NewBufferPool(2)
	tid2 := NewTransactionId()
	pid0 := PageId{Table: hf.Id(), Index: 0}
	pid1 := PageId{Table: hf.Id(), Index: 1}
	pid2 := PageId{Table: hf.Id(), Index: 2}

	if _, err := bp.GetPage(tid2, hf, pid0, ReadOnly); err != nil {
		t.Fatalf("fetch page 0: %v", err)
	}
	bp.ReleasePage(tid2, pid0)
	if _, err := bp.GetPage(tid2, hf, pid1, ReadOnly); err != nil {
		t.Fatalf("fetch page 1: %v", err)
	}
	bp.ReleasePage(tid2, pid1)

	// Re-touch page 0 so page 1 becomes the least-recently-used entry.
	if _, err := bp.GetPage(tid2, hf, pid0, ReadOnly); err != nil {
		t.Fatalf("re-fetch page 0: %v", err)
	}
	bp.ReleasePage(tid2, pid0)

	if _, err := bp.GetPage(tid2, hf, pid2, ReadOnly); err != nil {
		t.Fatalf("fetch page 2: %v", err)
	}
	bp.ReleasePage(tid2, pid2)

	bp.mu.Lock()
	_, hasPage0 := bp.entries[pid0]
	_, hasPage1 := bp.entries[pid1]
	_, hasPage2 := bp.entries[pid2]
	bp.mu.Unlock()

	if !hasPage0 {
		t.Fatal("page 0 was recently touched and should not have been evicted")
	}
	if hasPage1 {
		t.Fatal("page 1 was the least-recently-used entry and should have been evicted")
	}
	if !hasPage2 {
		t.Fatal("page 2 was just fetched and should be cached")
	}
}

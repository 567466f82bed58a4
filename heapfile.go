package pagedb

import (
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// appendStripes serializes the "extend the file by one page" step of
// insertTuple across a small table of locks rather than one per-file mutex,
// so inserts into different tables rarely contend. The race it closes is two
// transactions both observing NumPages()==n and both writing their blank
// page at index n, silently clobbering one of them.
var appendStripes [stripeCount]sync.Mutex

// PageStore is what the buffer pool needs from a table's on-disk
// representation: an identity, and the ability to read/write one page at a
// time. HeapFile is the only implementation; the interface exists so
// bufferpool.go never has to import os or know about slot layouts.
type PageStore interface {
	Id() int
	ReadPage(pid PageId) (Page, error)
	WritePage(p Page) error
}

// HeapFile is the page manager for one table: a flat file of fixed-size
// pages, grown one page at a time as rows are appended.
type HeapFile struct {
	tableId int
	desc    TupleDesc
	path    string
	file    *os.File
}

// NewHeapFile opens (creating if necessary) the backing file for a table.
// Its id is derived from the canonical absolute path rather than assigned by
// a caller, so two HeapFiles opened on the same path — whether from the
// same Catalog reloaded in a different order, or from two separate Catalog
// instances — always agree on their id.
func NewHeapFile(desc TupleDesc, path string) (*HeapFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, newDbError(InvalidPage, "opening heap file %s: %v", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		f.Close()
		return nil, newDbError(InvalidPage, "resolving absolute path for %s: %v", path, err)
	}
	h := fnv.New32a()
	h.Write([]byte(abs))
	return &HeapFile{tableId: int(h.Sum32()), desc: desc, path: path, file: f}, nil
}

func (hf *HeapFile) Id() int            { return hf.tableId }
func (hf *HeapFile) Schema() *TupleDesc { return &hf.desc }
func (hf *HeapFile) Path() string       { return hf.path }

// NumPages is ceil(fileLength / PageSize).
func (hf *HeapFile) NumPages() int {
	info, err := hf.file.Stat()
	if err != nil {
		return 0
	}
	return int((info.Size() + int64(PageSize) - 1) / int64(PageSize))
}

// ReadPage loads and deserializes one page directly from the backing file.
// Only the buffer pool calls this, on a cache miss.
func (hf *HeapFile) ReadPage(pid PageId) (Page, error) {
	if pid.Table != hf.tableId {
		return nil, newDbError(InvalidPage, "page %v does not belong to table %d", pid, hf.tableId)
	}
	if pid.Index < 0 || pid.Index >= hf.NumPages() {
		return nil, newDbError(InvalidPage, "page %v is past the end of the file", pid)
	}
	buf := make([]byte, PageSize)
	off := int64(pid.Index) * int64(PageSize)
	if _, err := hf.file.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, newDbError(InvalidPage, "reading page %v: %v", pid, err)
	}
	return HeapPageFromBytes(pid, &hf.desc, buf), nil
}

// WritePage serializes p back to its slot in the backing file. Only the
// buffer pool calls this, on flush.
func (hf *HeapFile) WritePage(p Page) error {
	hp, ok := p.(*HeapPage)
	if !ok {
		return newDbError(InvalidPage, "heap file cannot write page of type %T", p)
	}
	off := int64(hp.pid.Index) * int64(PageSize)
	_, err := hf.file.WriteAt(hp.Data(), off)
	return err
}

// insertTuple finds room for t, acquiring every probed page through bp
// (so each stays locked for the rest of tid's lifetime per strict 2PL — we
// never release early just because a page turned out full). Returns the
// pages that ended up dirtied, for the BufferPool to mark. Probes from the
// last page backward, since a freshly appended page is the most likely to
// still have room.
func (hf *HeapFile) insertTuple(tid TransactionId, bp *BufferPool, t *Tuple) ([]Page, error) {
	if err := hf.desc.Typecheck(t.Values); err != nil {
		return nil, err
	}

	n := hf.NumPages()
	for i := n - 1; i >= 0; i-- {
		pid := PageId{Table: hf.tableId, Index: i}
		page, err := bp.GetPage(tid, hf, pid, ReadWrite)
		if err != nil {
			return nil, err
		}
		hp := page.(*HeapPage)
		if hp.HasFreeSlot() {
			if _, err := hp.InsertTuple(t); err != nil {
				return nil, err
			}
			return []Page{hp}, nil
		}
	}

	// No existing page had room: extend the file with one blank page,
	// written directly (bypassing the pool, which has nothing cached for a
	// page that doesn't exist yet), then fetch it back through the pool so
	// it picks up tid's write lock like any other touched page. Two
	// transactions racing this step would both compute the same n and
	// clobber each other's blank page, so the stat-then-write sequence is
	// serialized on a striped lock keyed by the table alone.
	stripe := &appendStripes[stripeIndex(PageId{Table: hf.tableId})]
	stripe.Lock()
	n = hf.NumPages()
	pid := PageId{Table: hf.tableId, Index: n}
	if err := hf.WritePage(NewHeapPage(pid, &hf.desc)); err != nil {
		stripe.Unlock()
		return nil, err
	}
	stripe.Unlock()

	page, err := bp.GetPage(tid, hf, pid, ReadWrite)
	if err != nil {
		return nil, err
	}
	hp := page.(*HeapPage)
	if _, err := hp.InsertTuple(t); err != nil {
		return nil, err
	}
	return []Page{hp}, nil
}

// deleteTuple removes t by its RecordId, via the page that record lives on.
func (hf *HeapFile) deleteTuple(tid TransactionId, bp *BufferPool, t *Tuple) ([]Page, error) {
	if t.Rid == nil {
		return nil, newDbError(MalformedData, "tuple has no record id to delete")
	}
	page, err := bp.GetPage(tid, hf, t.Rid.PID, ReadWrite)
	if err != nil {
		return nil, err
	}
	hp := page.(*HeapPage)
	if err := hp.DeleteTuple(*t.Rid); err != nil {
		return nil, err
	}
	return []Page{hp}, nil
}

// HeapFileIterator is the leaf of every operator tree: a page-by-page scan
// of one table's live tuples under tid's read lock. It satisfies OpIterator
// directly so SeqScan can wrap it without adapting a separate interface.
type HeapFileIterator struct {
	hf  *HeapFile
	tid TransactionId
	bp  *BufferPool

	pageIdx     int
	pageFn      func() (*Tuple, bool)
	buffered    *Tuple
	hasBuffered bool
	opened      bool
}

// Iterator builds a scan over hf under tid, fetching pages through bp.
func (hf *HeapFile) Iterator(tid TransactionId, bp *BufferPool) *HeapFileIterator {
	return &HeapFileIterator{hf: hf, tid: tid, bp: bp}
}

func (it *HeapFileIterator) Open() error {
	it.pageIdx = 0
	it.pageFn = nil
	it.opened = true
	return it.fill()
}

// fill advances through pages until buffered holds the next live tuple, or
// the file is exhausted.
func (it *HeapFileIterator) fill() error {
	for {
		if it.pageFn != nil {
			if t, ok := it.pageFn(); ok {
				it.buffered, it.hasBuffered = t, true
				return nil
			}
			it.pageFn = nil
			it.pageIdx++
		}
		if it.pageIdx >= it.hf.NumPages() {
			it.buffered, it.hasBuffered = nil, false
			return nil
		}
		pid := PageId{Table: it.hf.Id(), Index: it.pageIdx}
		page, err := it.bp.GetPage(it.tid, it.hf, pid, ReadOnly)
		if err != nil {
			return err
		}
		it.pageFn = page.Tuples()
	}
}

func (it *HeapFileIterator) HasNext() (bool, error) {
	if !it.opened {
		return false, newDbError(IllegalState, "heap file iterator used before Open")
	}
	return it.hasBuffered, nil
}

func (it *HeapFileIterator) Next() (*Tuple, error) {
	if !it.opened {
		return nil, newDbError(IllegalState, "heap file iterator used before Open")
	}
	if !it.hasBuffered {
		return nil, NoSuchElementError{What: "heap file exhausted"}
	}
	t := it.buffered
	if err := it.fill(); err != nil {
		return nil, err
	}
	return t, nil
}

func (it *HeapFileIterator) Rewind() error {
	return it.Open()
}

func (it *HeapFileIterator) Close() error {
	it.opened = false
	it.pageFn = nil
	return nil
}

func (it *HeapFileIterator) GetTupleDesc() *TupleDesc { return &it.hf.desc }
func (it *HeapFileIterator) GetChildren() []OpIterator { return nil }
func (it *HeapFileIterator) SetChildren(children []OpIterator) {}

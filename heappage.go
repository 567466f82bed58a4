package pagedb

// Page is the fixed-size byte-backed container: identity, a dirty bit
// paired with the transaction that dirtied it, serialization to/from bytes,
// and an iterator over contained tuples. HeapPage is the only
// implementation the core ships; the interface exists so the buffer pool's
// cache entries don't need to know about heap-page internals.
type Page interface {
	PageId() PageId
	// Dirtied reports the transaction that last dirtied this page and
	// whether the page is dirty at all. The zero TransactionId is returned
	// alongside false when the page is clean.
	Dirtied() (TransactionId, bool)
	MarkDirty(tid TransactionId)
	MarkClean()
	// Data serializes the page to exactly PageSize bytes.
	Data() []byte
	// Tuples returns a fresh iterator function over the page's live
	// tuples; each call yields the next tuple and true, or a nil tuple and
	// false once exhausted.
	Tuples() func() (*Tuple, bool)
}

// HeapPage is a slotted page: a bitmap header marking which fixed-width
// row slots are occupied, followed by the row slots themselves. The bitmap
// (rather than a simple row count) lets delete free an arbitrary slot
// without compacting the rest of the page.
type HeapPage struct {
	pid  PageId
	desc *TupleDesc

	numSlots   int
	headerLen  int // bytes in the occupancy bitmap
	header     []byte
	rows       [][]byte // each exactly desc.RowSize() bytes

	dirtyTid TransactionId
	isDirty  bool
}

// heapPageLayout computes how many fixed-width rows fit in one page
// alongside their occupancy bitmap: each slot costs rowSize*8+1 bits
// (rowSize*8 bits of row data plus its 1 header bit), rounding the header
// up to a whole number of bytes.
func heapPageLayout(rowSize int) (numSlots, headerLen int) {
	numSlots = int(PageSize) * 8 / (rowSize*8 + 1)
	if numSlots < 0 {
		numSlots = 0
	}
	headerLen = (numSlots + 7) / 8
	return
}

// NewHeapPage builds a blank page for pid with the given schema.
func NewHeapPage(pid PageId, desc *TupleDesc) *HeapPage {
	numSlots, headerLen := heapPageLayout(desc.RowSize())
	hp := &HeapPage{
		pid:       pid,
		desc:      desc,
		numSlots:  numSlots,
		headerLen: headerLen,
		header:    make([]byte, headerLen),
		rows:      make([][]byte, numSlots),
	}
	for i := range hp.rows {
		hp.rows[i] = make([]byte, desc.RowSize())
	}
	return hp
}

// HeapPageFromBytes deserializes a page previously produced by Data().
func HeapPageFromBytes(pid PageId, desc *TupleDesc, data []byte) *HeapPage {
	hp := NewHeapPage(pid, desc)
	copy(hp.header, data[:hp.headerLen])
	offset := hp.headerLen
	rowSize := desc.RowSize()
	for i := 0; i < hp.numSlots; i++ {
		copy(hp.rows[i], data[offset:offset+rowSize])
		offset += rowSize
	}
	return hp
}

func (p *HeapPage) PageId() PageId { return p.pid }

func (p *HeapPage) Dirtied() (TransactionId, bool) {
	return p.dirtyTid, p.isDirty
}

func (p *HeapPage) MarkDirty(tid TransactionId) {
	p.dirtyTid = tid
	p.isDirty = true
}

func (p *HeapPage) MarkClean() {
	p.dirtyTid = TransactionId{}
	p.isDirty = false
}

func (p *HeapPage) Data() []byte {
	buf := make([]byte, PageSize)
	copy(buf, p.header)
	offset := p.headerLen
	rowSize := p.desc.RowSize()
	for _, row := range p.rows {
		copy(buf[offset:], row)
		offset += rowSize
	}
	return buf
}

func (p *HeapPage) slotUsed(slot int) bool {
	return p.header[slot/8]&(1<<uint(slot%8)) != 0
}

func (p *HeapPage) setSlotUsed(slot int, used bool) {
	mask := byte(1 << uint(slot%8))
	if used {
		p.header[slot/8] |= mask
	} else {
		p.header[slot/8] &^= mask
	}
}

// NumSlots is the fixed slot capacity of this page.
func (p *HeapPage) NumSlots() int { return p.numSlots }

// NumUsedSlots counts occupied slots.
func (p *HeapPage) NumUsedSlots() int {
	n := 0
	for i := 0; i < p.numSlots; i++ {
		if p.slotUsed(i) {
			n++
		}
	}
	return n
}

// HasFreeSlot reports whether InsertTuple would succeed right now.
func (p *HeapPage) HasFreeSlot() bool {
	for i := 0; i < p.numSlots; i++ {
		if !p.slotUsed(i) {
			return true
		}
	}
	return false
}

// InsertTuple writes t into the first free slot, returning the RecordId it
// now lives at. Does not mark the page dirty; the BufferPool does that
// (markDirtied) once HeapFile hands the page back under tid's write lock.
func (p *HeapPage) InsertTuple(t *Tuple) (RecordId, error) {
	for slot := 0; slot < p.numSlots; slot++ {
		if p.slotUsed(slot) {
			continue
		}
		p.desc.writeRow(p.rows[slot], t.Values)
		p.setSlotUsed(slot, true)
		rid := RecordId{PID: p.pid, Slot: slot}
		t.Rid = &rid
		return rid, nil
	}
	return RecordId{}, newDbError(MalformedData, "page %v has no free slot", p.pid)
}

// DeleteTuple clears the slot rid names.
func (p *HeapPage) DeleteTuple(rid RecordId) error {
	if rid.PID != p.pid {
		return newDbError(MalformedData, "record %v does not belong to page %v", rid, p.pid)
	}
	if rid.Slot < 0 || rid.Slot >= p.numSlots || !p.slotUsed(rid.Slot) {
		return newDbError(MalformedData, "slot %d is not occupied on page %v", rid.Slot, p.pid)
	}
	p.setSlotUsed(rid.Slot, false)
	return nil
}

// Tuples iterates live slots in slot order.
func (p *HeapPage) Tuples() func() (*Tuple, bool) {
	slot := 0
	return func() (*Tuple, bool) {
		for slot < p.numSlots {
			s := slot
			slot++
			if !p.slotUsed(s) {
				continue
			}
			rid := RecordId{PID: p.pid, Slot: s}
			values := p.desc.readRow(p.rows[s])
			return &Tuple{Desc: p.desc, Values: values, Rid: &rid}, true
		}
		return nil, false
	}
}

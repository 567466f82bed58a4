package pagedb

import "fmt"

// PageId identifies a page within a table's heap file. Equality is
// structural (plain struct comparison) — a Go map already gives structural
// equality/hashing for free, so PageId carries no methods beyond String().
type PageId struct {
	Table int // PageStore.Id(), stable per backing file
	Index int // zero-based page index within that file
}

func (id PageId) String() string {
	return fmt.Sprintf("PageId(table=%d, page=%d)", id.Table, id.Index)
}

// RecordId identifies one tuple slot within one page; the core only ever
// round-trips it through Tuple.Rid.
type RecordId struct {
	PID  PageId
	Slot int
}

func (id RecordId) String() string {
	return fmt.Sprintf("RecordId(%v, slot=%d)", id.PID, id.Slot)
}

// stripeCount is the width of the lock-striping table used to pick a short
// critical section when an operation needs to briefly serialize on a page
// id without going through the full PageLatch machinery (e.g. allocating a
// new page at EOF).
const stripeCount = 1024

// stripeIndex hashes a PageId down to a stripe with an FNV-1a variant,
// a cheap, well-distributed hash for small integer pairs.
func stripeIndex(id PageId) uint32 {
	hash := uint32(2166136261)
	hash = (hash ^ uint32(id.Table)) * 16777619
	hash = (hash ^ uint32(id.Index)) * 16777619
	return hash % stripeCount
}

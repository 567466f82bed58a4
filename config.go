package pagedb

// PageSize is the process-wide size, in bytes, of every page in every heap
// file. It is read by HeapFile/HeapPage wherever page offsets
// or slot capacity are computed, and is never threaded through individual
// APIs as a parameter.
//
// Mutable only for tests: production code should treat this as a constant.
var PageSize uint32 = 4096

// DefaultPageSize is the value PageSize starts at and the value tests should
// restore it to when they're done poking at it.
const DefaultPageSize uint32 = 4096

// SetPageSizeForTesting overrides the process-wide page size. Tests must
// restore the previous value (the returned func does that) before any other
// test observes the change; PageSize is not safe to mutate concurrently
// with engine use.
func SetPageSizeForTesting(size uint32) (restore func()) {
	prev := PageSize
	PageSize = size
	return func() { PageSize = prev }
}

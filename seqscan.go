package pagedb

// SeqScan is the leaf operator that reads every live tuple of one table, in
// heap order, under tid's read locks. A thin OpIterator adapter over
// HeapFile.Iterator so it can sit in an operator tree alongside Filter,
// Project, and Join.
type SeqScan struct {
	hf    *HeapFile
	tid   TransactionId
	bp    *BufferPool
	alias string

	inner *HeapFileIterator
}

// NewSeqScan scans hf's table under tid. alias is stored on the scan but
// does not change what it reports: GetTupleDesc always returns the table's
// own schema, so field names are not prefixed or disambiguated by alias.
func NewSeqScan(hf *HeapFile, tid TransactionId, bp *BufferPool, alias string) *SeqScan {
	return &SeqScan{hf: hf, tid: tid, bp: bp, alias: alias}
}

func (s *SeqScan) Open() error {
	s.inner = s.hf.Iterator(s.tid, s.bp)
	return s.inner.Open()
}

func (s *SeqScan) Close() error {
	if s.inner == nil {
		return nil
	}
	return s.inner.Close()
}

func (s *SeqScan) Rewind() error {
	if s.inner == nil {
		return newDbError(IllegalState, "seq scan used before open")
	}
	return s.inner.Rewind()
}

func (s *SeqScan) HasNext() (bool, error) {
	if s.inner == nil {
		return false, newDbError(IllegalState, "seq scan used before open")
	}
	return s.inner.HasNext()
}

func (s *SeqScan) Next() (*Tuple, error) {
	if s.inner == nil {
		return nil, newDbError(IllegalState, "seq scan used before open")
	}
	return s.inner.Next()
}

func (s *SeqScan) GetTupleDesc() *TupleDesc { return s.hf.Schema() }
func (s *SeqScan) GetChildren() []OpIterator { return nil }
func (s *SeqScan) SetChildren(children []OpIterator) {}

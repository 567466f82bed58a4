package pagedb

// Insert consumes every tuple child produces, inserting each into hf under
// tid, then reports the count as a single result row before reporting EOF.
// The work happens eagerly in Open rather than lazily in Next, since the
// count can't be known until the child is fully drained anyway.
type Insert struct {
	tid   TransactionId
	bp    *BufferPool
	hf    *HeapFile
	child OpIterator
	desc  TupleDesc

	count   int32
	emitted bool
	opened  bool
}

func NewInsert(tid TransactionId, bp *BufferPool, hf *HeapFile, child OpIterator) *Insert {
	return &Insert{
		tid:   tid,
		bp:    bp,
		hf:    hf,
		child: child,
		desc:  NewTupleDesc([]FieldSpec{{Name: "count", Type: IntType}}),
	}
}

func (in *Insert) Open() error {
	if err := in.child.Open(); err != nil {
		return err
	}
	var n int32
	for {
		has, err := in.child.HasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		t, err := in.child.Next()
		if err != nil {
			return err
		}
		if err := in.bp.InsertTuple(in.tid, in.hf, t); err != nil {
			return err
		}
		n++
	}
	if err := in.child.Close(); err != nil {
		return err
	}
	in.count = n
	in.emitted = false
	in.opened = true
	return nil
}

func (in *Insert) Close() error {
	in.opened = false
	return nil
}

// Rewind re-exposes the already-computed count rather than re-running the
// insert (which would double-insert every row); the operator tree is a
// single-shot effect, "exactly one row then EOF".
func (in *Insert) Rewind() error {
	if !in.opened {
		return newDbError(IllegalState, "insert operator rewound before Open")
	}
	in.emitted = false
	return nil
}

func (in *Insert) HasNext() (bool, error) {
	if !in.opened {
		return false, newDbError(IllegalState, "insert operator used before Open")
	}
	return !in.emitted, nil
}

func (in *Insert) Next() (*Tuple, error) {
	if !in.opened {
		return nil, newDbError(IllegalState, "insert operator used before Open")
	}
	if in.emitted {
		return nil, NoSuchElementError{What: "insert already reported its count"}
	}
	in.emitted = true
	return NewTuple(&in.desc, []DBValue{IntField(in.count)}), nil
}

func (in *Insert) GetTupleDesc() *TupleDesc { return &in.desc }
func (in *Insert) GetChildren() []OpIterator { return []OpIterator{in.child} }
func (in *Insert) SetChildren(children []OpIterator) {
	if len(children) == 1 {
		in.child = children[0]
	}
}
